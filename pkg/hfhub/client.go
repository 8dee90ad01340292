package hfhub

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// HubClient is a configured handle onto a Hugging Face Hub endpoint. All
// downloads initiated through it share the same retry/backoff settings,
// logger, and circuit breaker state (see breaker.go).
type HubClient struct {
	config *HubConfig
}

// NewHubClient creates a new Hub client with the provided configuration.
func NewHubClient(config *HubConfig) (*HubClient, error) {
	if err := config.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid hub config: %w", err)
	}

	return &HubClient{config: config}, nil
}

// Download fetches a single file into the cache directory, returning the
// path of the cache pointer symlink.
func (c *HubClient) Download(ctx context.Context, repoID, filename string, opts ...DownloadOption) (string, error) {
	config := c.config.ToDownloadConfig()
	config.RepoID = repoID
	config.Filename = filename

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return "", fmt.Errorf("failed to apply download option: %w", err)
		}
	}

	ctx = context.WithValue(ctx, HubConfigKey, c.config)

	if c.config.Logger != nil {
		c.config.Logger.WithField("repo_id", repoID).WithField("filename", filename).Info("starting download")
	}

	result, err := HfHubDownload(ctx, config)
	if err != nil && c.config.Logger != nil {
		c.config.Logger.WithField("repo_id", repoID).WithField("filename", filename).WithError(err).Error("download failed")
	}
	return result, err
}

// ListFiles lists every file tracked in a repository at the configured
// revision.
func (c *HubClient) ListFiles(ctx context.Context, repoID string, opts ...DownloadOption) ([]RepoFile, error) {
	config := c.config.ToDownloadConfig()
	config.RepoID = repoID

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply download option: %w", err)
		}
	}

	ctx = context.WithValue(ctx, HubConfigKey, c.config)

	files, err := ListRepoFiles(ctx, config)
	if err != nil {
		if c.config.Logger != nil {
			c.config.Logger.WithField("repo_id", repoID).WithError(err).Error("listing repository files failed")
		}
		return nil, err
	}
	if c.config.Logger != nil {
		c.config.Logger.WithField("repo_id", repoID).WithField("file_count", len(files)).Info("listed repository files")
	}
	return files, nil
}

// DownloadOption customizes a single Download or ListFiles call.
type DownloadOption func(*DownloadConfig) error

// WithRevision sets the revision (branch, tag, or commit hash) to download from.
func WithRevision(revision string) DownloadOption {
	return func(config *DownloadConfig) error {
		config.Revision = revision
		return nil
	}
}

// WithForceDownload re-downloads a file even if a cached copy already exists.
func WithForceDownload(force bool) DownloadOption {
	return func(config *DownloadConfig) error {
		config.ForceDownload = force
		return nil
	}
}

// sharedHTTPClient is the shared, connection-pooled client used for every request
// this package makes; guardedDo (breaker.go) wraps calls through it with
// rate limiting and circuit breaking.
var (
	sharedHTTPClient *http.Client
	sharedClientOnce sync.Once
)

// GetHTTPClient returns the shared connection-pooled HTTP client.
func GetHTTPClient() *http.Client {
	sharedClientOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		}

		sharedHTTPClient = &http.Client{
			Transport: transport,
			Timeout:   0,
		}
	})

	return sharedHTTPClient
}

// NewHTTPClientWithTimeout returns a client sharing the pooled transport but
// with its own per-request timeout.
func NewHTTPClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: GetHTTPClient().Transport,
		Timeout:   timeout,
	}
}
