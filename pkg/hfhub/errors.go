package hfhub

import (
	"fmt"
	"net/http"
	"time"
)

// HubError represents a generic Hub error
type HubError struct {
	Message string
	Cause   error
}

func (e *HubError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *HubError) Unwrap() error {
	return e.Cause
}

// HTTPError represents an HTTP error from the Hub
type HTTPError struct {
	*HubError
	StatusCode int
	Response   *http.Response
}

func NewHTTPError(message string, statusCode int, response *http.Response) *HTTPError {
	return &HTTPError{
		HubError:   &HubError{Message: message},
		StatusCode: statusCode,
		Response:   response,
	}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// RepositoryNotFoundError is raised when a repository is not found
type RepositoryNotFoundError struct {
	*HTTPError
	RepoID   string
	RepoType string
}

func NewRepositoryNotFoundError(repoID, repoType string, response *http.Response) *RepositoryNotFoundError {
	message := fmt.Sprintf("Repository '%s' not found", repoID)
	if repoType != "" && repoType != RepoTypeModel {
		message = fmt.Sprintf("%s repository '%s' not found", repoType, repoID)
	}

	statusCode := 404
	if response != nil {
		statusCode = response.StatusCode
	}

	return &RepositoryNotFoundError{
		HTTPError: NewHTTPError(message, statusCode, response),
		RepoID:    repoID,
		RepoType:  repoType,
	}
}

// GatedRepoError is raised when trying to access a gated repository
type GatedRepoError struct {
	*RepositoryNotFoundError
}

func NewGatedRepoError(repoID, repoType string, response *http.Response) *GatedRepoError {
	base := NewRepositoryNotFoundError(repoID, repoType, response)
	base.Message = fmt.Sprintf("Repository '%s' is gated and requires authentication", repoID)
	if repoType != "" && repoType != RepoTypeModel {
		base.Message = fmt.Sprintf("%s repository '%s' is gated and requires authentication", repoType, repoID)
	}

	return &GatedRepoError{
		RepositoryNotFoundError: base,
	}
}

// EntryNotFoundError is raised when a file or directory is not found
type EntryNotFoundError struct {
	*HTTPError
	RepoID   string
	RepoType string
	Revision string
	Path     string
}

func NewEntryNotFoundError(repoID, repoType, revision, path string, response *http.Response) *EntryNotFoundError {
	message := fmt.Sprintf("Entry '%s' not found in repository '%s'", path, repoID)
	if revision != "" && revision != DefaultRevision {
		message = fmt.Sprintf("Entry '%s' not found in repository '%s' at revision '%s'", path, repoID, revision)
	}
	if repoType != "" && repoType != RepoTypeModel {
		message = fmt.Sprintf("Entry '%s' not found in %s repository '%s'", path, repoType, repoID)
		if revision != "" && revision != DefaultRevision {
			message = fmt.Sprintf("Entry '%s' not found in %s repository '%s' at revision '%s'", path, repoType, repoID, revision)
		}
	}

	statusCode := 404
	if response != nil {
		statusCode = response.StatusCode
	}

	return &EntryNotFoundError{
		HTTPError: NewHTTPError(message, statusCode, response),
		RepoID:    repoID,
		RepoType:  repoType,
		Revision:  revision,
		Path:      path,
	}
}

// FileMetadataError is raised when file metadata is invalid or missing
type FileMetadataError struct {
	*HubError
	Path string
}

func NewFileMetadataError(path, message string) *FileMetadataError {
	return &FileMetadataError{
		HubError: &HubError{Message: message},
		Path:     path,
	}
}

// OfflineModeIsEnabledError is raised when offline mode is enabled but network is required
type OfflineModeIsEnabledError struct {
	*HubError
}

func NewOfflineModeIsEnabledError(message string) *OfflineModeIsEnabledError {
	return &OfflineModeIsEnabledError{
		HubError: &HubError{Message: message},
	}
}

// RateLimitError is raised on HTTP 429 responses. RetryAfter is the
// server-advised wait, or 0 if the response carried no Retry-After header
// (callers fall back to the default blackout window in that case).
type RateLimitError struct {
	*HTTPError
	RetryAfter time.Duration
}

func NewRateLimitError(response *http.Response, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		HTTPError:  NewHTTPError("rate limited by Hugging Face Hub", http.StatusTooManyRequests, response),
		RetryAfter: retryAfter,
	}
}

// CircuitOpenError is returned in place of a network call while the host's
// circuit breaker is open, after consecutive failures tripped it.
type CircuitOpenError struct {
	*HubError
	Host string
}

func NewCircuitOpenError(host string) *CircuitOpenError {
	return &CircuitOpenError{
		HubError: &HubError{Message: fmt.Sprintf("circuit open for host %s, refusing request", host)},
		Host:     host,
	}
}
