package hfhub

import (
	"time"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// HubConfigKey is the context key for storing HubConfig
	HubConfigKey contextKey = "hubConfig"
	// WorkerIDKey is the context key for storing worker ID in concurrent downloads
	WorkerIDKey contextKey = "workerID"
)

// LFSInfo contains LFS metadata for large files
type LFSInfo struct {
	OID         string `json:"oid"`         // SHA256 hash of the file
	Size        int64  `json:"size"`        // Size in bytes
	PointerSize int    `json:"pointerSize"` // Size of the LFS pointer file
}

// LastCommitInfo contains information about the last commit that modified a file
type LastCommitInfo struct {
	OID   string    `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// RepoInfo contains metadata about a repository
type RepoInfo struct {
	ID           string        `json:"id"`
	Author       *string       `json:"author,omitempty"`
	SHA          *string       `json:"sha,omitempty"`
	CreatedAt    *time.Time    `json:"createdAt,omitempty"`
	LastModified *time.Time    `json:"lastModified,omitempty"`
	Private      *bool         `json:"private,omitempty"`
	Disabled     *bool         `json:"disabled,omitempty"`
	Downloads    *int          `json:"downloads,omitempty"`
	Likes        *int          `json:"likes,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
	PipelineTag  *string       `json:"pipeline_tag,omitempty"`
	LibraryName  *string       `json:"library_name,omitempty"`
	ModelType    *string       `json:"model_type,omitempty"`
	Gated        *string       `json:"gated,omitempty"` // "auto", "manual", or false
	Siblings     []RepoSibling `json:"siblings,omitempty"`
}

// RepoSibling contains basic information about a file in a repository
type RepoSibling struct {
	RFilename string   `json:"rfilename"`        // Relative filename
	Size      *int64   `json:"size,omitempty"`   // File size in bytes
	BlobID    *string  `json:"blobId,omitempty"` // Git object ID
	LFS       *LFSInfo `json:"lfs,omitempty"`    // LFS metadata if applicable
}

// DownloadConfig contains configuration for a single download or listing call.
type DownloadConfig struct {
	// Repository information
	RepoID    string
	RepoType  string
	Revision  string
	Filename  string
	Subfolder string

	// Authentication
	Token string

	// Destination
	CacheDir string

	// Download behavior
	ForceDownload  bool
	LocalFilesOnly bool
	ResumeDownload bool

	// Network configuration
	Proxies     map[string]string
	EtagTimeout time.Duration
	Headers     map[string]string
	Endpoint    string
}
