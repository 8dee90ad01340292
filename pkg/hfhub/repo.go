package hfhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RepoFile represents a file in a repository
type RepoFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Type string `json:"type"` // "file" or "directory"
}

// ListRepoFiles lists all files in a repository
func ListRepoFiles(ctx context.Context, config *DownloadConfig) ([]RepoFile, error) {
	if config.RepoID == "" {
		return nil, fmt.Errorf("repo_id cannot be empty")
	}

	// Set defaults
	repoType := config.RepoType
	if repoType == "" {
		repoType = RepoTypeModel
	}

	revision := config.Revision
	if revision == "" {
		revision = DefaultRevision
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Construct API URL for listing files (with recursive flag)
	var apiURL string
	switch repoType {
	case RepoTypeModel:
		apiURL = fmt.Sprintf("%s/api/models/%s/tree/%s?recursive=true", endpoint, config.RepoID, url.QueryEscape(revision))
	case RepoTypeDataset:
		apiURL = fmt.Sprintf("%s/api/datasets/%s/tree/%s?recursive=true", endpoint, url.PathEscape(config.RepoID), url.QueryEscape(revision))
	case RepoTypeSpace:
		apiURL = fmt.Sprintf("%s/api/spaces/%s/tree/%s?recursive=true", endpoint, url.PathEscape(config.RepoID), url.QueryEscape(revision))
	default:
		return nil, fmt.Errorf("invalid repo type: %s", repoType)
	}

	// Get retry configuration from context (HubConfig)
	maxRetries := 3                   // default
	retryInterval := 10 * time.Second // default

	if hubConfig, ok := ctx.Value(HubConfigKey).(*HubConfig); ok {
		maxRetries = hubConfig.MaxRetries
		retryInterval = hubConfig.RetryInterval
	}

	// Use exponential backoff with jitter for rate limiting
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Create request
		req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		// Add headers
		headers := BuildHeaders(config.Token, "huggingface-hub-go/1.0.0", config.Headers)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		// Use pooled client with timeout
		client := NewHTTPClientWithTimeout(DefaultRequestTimeout)

		resp, err := guardedDo(ctx, client, req)
		if err != nil {
			if _, open := err.(*CircuitOpenError); open {
				return nil, err
			}
			// Network errors are retryable
			if attempt < maxRetries {
				delay := exponentialBackoffWithJitter(attempt+1, retryInterval, 60*time.Second)
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return nil, fmt.Errorf("failed to perform request: %w", err)
		}
		defer resp.Body.Close()

		// Handle successful response
		if resp.StatusCode == http.StatusOK {
			var files []RepoFile
			if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
				return nil, fmt.Errorf("failed to decode response: %w", err)
			}
			return files, nil
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp)
			if retryAfter == 0 {
				// Use exponential backoff with jitter if no Retry-After header
				retryAfter = exponentialBackoffWithJitter(attempt+1, retryInterval, 300*time.Second) // Max 5 minutes
			}

			// Only retry if we haven't exhausted attempts
			if attempt < maxRetries {
				select {
				case <-time.After(retryAfter):
					continue
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}

		// Handle other HTTP errors with retry for server errors
		if resp.StatusCode >= 500 && attempt < maxRetries {
			delay := exponentialBackoffWithJitter(attempt+1, retryInterval, 60*time.Second)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		// Handle non-retryable error responses
		return nil, handleHTTPError(resp, config.RepoID, repoType, revision, "")
	}

	// Should not reach here
	return nil, fmt.Errorf("failed to list repository files after %d attempts", maxRetries+1)
}
