// Package model holds the data types shared across the library's
// components: the canonical Model record, baseline/overlay metadata,
// dependency profiles and bindings, link records, and download tickets.
package model

import "time"

// ModelType is the coarse modality bucket a model is classified into.
type ModelType string

const (
	ModelTypeLLM       ModelType = "llm"
	ModelTypeDiffusion ModelType = "diffusion"
	ModelTypeAudio     ModelType = "audio"
	ModelTypeVision    ModelType = "vision"
	ModelTypeEmbedding ModelType = "embedding"
	ModelTypeUnknown   ModelType = "unknown"
)

// Layout describes how a model's files are arranged on disk.
type Layout string

const (
	LayoutSingleFile      Layout = "single_file"
	LayoutDiffusionFolder Layout = "diffusion_folder"
	LayoutShardedSet      Layout = "sharded_set"
)

// FileRecord is one file belonging to a Model, addressed by both hashes.
type FileRecord struct {
	RelPath string `json:"rel_path"`
	Size    int64  `json:"size"`
	SHA256  string `json:"sha256"`
	BLAKE3  string `json:"blake3"`
}

// ModalityScore carries a classification value along with its provenance
// and confidence, as produced by the classifier for task/modality fields.
type ModalityScore struct {
	Value      string  `json:"value"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Model is the central entity: identity is the canonical path
// {model_type}/{family}/{name}.
type Model struct {
	ModelID            string       `json:"model_id"`
	ModelType          ModelType    `json:"model_type"`
	Family             string       `json:"family"`
	Name               string       `json:"name"`
	Layout             Layout       `json:"layout"`
	Files              []FileRecord `json:"files"`
	TotalSizeBytes     int64        `json:"total_size_bytes"`
	ArchitectureTokens []string     `json:"architecture_tokens,omitempty"`

	TaskTypePrimary  ModalityScore   `json:"task_type_primary"`
	InputModalities  []ModalityScore `json:"input_modalities"`
	OutputModalities []ModalityScore `json:"output_modalities"`

	DependencyBindings []DependencyBinding `json:"dependency_bindings,omitempty"`

	MetadataNeedsReview bool     `json:"metadata_needs_review"`
	ReviewReasons       []string `json:"review_reasons"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Baseline is the immutable metadata.json document written at import time.
type Baseline struct {
	SchemaVersion int   `json:"schema_version"`
	Model         Model `json:"model"`
}

// OverlayStatus is the lifecycle state of a Metadata Overlay.
type OverlayStatus string

const (
	OverlayActive     OverlayStatus = "active"
	OverlaySuperseded OverlayStatus = "superseded"
	OverlayReverted   OverlayStatus = "reverted"
)

// Overlay is a JSON merge-patch applied over Baseline to produce effective
// metadata. At most one overlay per model may be OverlayActive.
type Overlay struct {
	OverlayID string        `json:"overlay_id"`
	ModelID   string        `json:"model_id"`
	PatchJSON []byte        `json:"overlay_json"`
	Status    OverlayStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Reviewer  string        `json:"reviewer,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// HistoryEntry is one append-only audit row for an overlay transition.
type HistoryEntry struct {
	ModelID    string    `json:"model_id"`
	OverlayID  string    `json:"overlay_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	At         time.Time `json:"at"`
	Reviewer   string    `json:"reviewer,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// BindingKind classifies why a dependency binding is attached to a model.
type BindingKind string

const (
	BindingRequiredCore    BindingKind = "required_core"
	BindingRequiredCustom  BindingKind = "required_custom"
	BindingOptionalFeature BindingKind = "optional_feature"
	BindingOptionalAccel   BindingKind = "optional_accel"
)

// DependencyProfile is a reusable, content-hashed environment specification.
type DependencyProfile struct {
	ProfileID      string `json:"profile_id"`
	ProfileVersion string `json:"profile_version"`
	ProfileHash    string `json:"profile_hash"`
	SpecJSON       []byte `json:"spec_json"`
}

// DependencyBinding associates a model with a profile revision and context.
type DependencyBinding struct {
	BindingID        string      `json:"binding_id"`
	ModelID          string      `json:"model_id"`
	ProfileID        string      `json:"profile_id"`
	ProfileVersion   string      `json:"profile_version"`
	BindingKind      BindingKind `json:"binding_kind"`
	BackendKey       string      `json:"backend_key,omitempty"`
	PlatformSelector string      `json:"platform_selector,omitempty"`
	Priority         int         `json:"priority"`
	Status           string      `json:"status,omitempty"`
}

// LinkKind is how a materialized application-facing link is realized.
type LinkKind string

const (
	LinkSymlinkRelative LinkKind = "symlink_relative"
	LinkSymlinkAbsolute LinkKind = "symlink_absolute"
	LinkHardlink        LinkKind = "hardlink"
)

// LinkRecord tracks one materialized symlink/hardlink for cascade delete
// and self-healing.
type LinkRecord struct {
	SourceCanonicalPath string    `json:"source_canonical_path"`
	TargetAppPath       string    `json:"target_app_path"`
	LinkKind            LinkKind  `json:"link_kind"`
	AppID               string    `json:"app_id"`
	VersionTag          string    `json:"version_tag"`
	CreatedAt           time.Time `json:"created_at"`
}

// DownloadState is the lifecycle state of a Download Ticket.
type DownloadState string

const (
	DownloadQueued     DownloadState = "queued"
	DownloadInProgress DownloadState = "downloading"
	DownloadPaused     DownloadState = "paused"
	DownloadError      DownloadState = "error"
	DownloadComplete   DownloadState = "complete"
	DownloadCancelled  DownloadState = "cancelled"
)

// DownloadFile tracks per-file progress within a Download Ticket.
type DownloadFile struct {
	Path         string `json:"path"`
	TotalBytes   int64  `json:"total_bytes"`
	PartialBytes int64  `json:"partial_bytes"`
	LocalPath    string `json:"local_path,omitempty"`
}

// DownloadTicket is the persistent record for an in-flight HuggingFace
// download; it survives process restart by being read back from disk.
type DownloadTicket struct {
	DownloadID  string         `json:"download_id"`
	RepoID      string         `json:"repo_id"`
	Files       []DownloadFile `json:"files"`
	State       DownloadState  `json:"state"`
	ErrorDetail string         `json:"error_detail,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
