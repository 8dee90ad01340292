// Package liberr defines the library's stable error kinds. Kinds are typed,
// not string-matched, mirroring the hfhub error chain
// (HubError/HTTPError/RepositoryNotFoundError): a base Error carries a Kind
// and an optional Cause, and purpose-built wrappers add the fields each
// failure mode needs.
package liberr

import "fmt"

// Kind is one of the stable error categories from the error handling design.
type Kind string

const (
	KindIoError                   Kind = "IoError"
	KindHashMismatch              Kind = "HashMismatch"
	KindValidationError           Kind = "ValidationError"
	KindMetadataError             Kind = "MetadataError"
	KindIndexError                Kind = "IndexError"
	KindNetworkError              Kind = "NetworkError"
	KindRateLimited               Kind = "RateLimited"
	KindCircuitOpen               Kind = "CircuitOpen"
	KindProfileImmutable          Kind = "ProfileImmutable"
	KindUnpinnedDependency        Kind = "UnpinnedDependency"
	KindModalityResolutionUnknown Kind = "ModalityResolutionUnknown"
	KindProfileConflict           Kind = "ProfileConflict"
	KindUnknownProfile            Kind = "UnknownProfile"
	KindRequiredBindingOmitted    Kind = "RequiredBindingOmitted"
	KindConflictingLink           Kind = "ConflictingLink"
	KindCancelled                 Kind = "Cancelled"
)

// Error is the base type every library error embeds, giving all of them a
// stable Kind for callers that need to branch on error category without
// string matching, and an Unwrap chain for errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ConflictingLinkError is raised when a mapping target path exists and is
// not a link the library created.
type ConflictingLinkError struct {
	*Error
	TargetPath string
}

func NewConflictingLinkError(targetPath string) *ConflictingLinkError {
	return &ConflictingLinkError{
		Error:      New(KindConflictingLink, fmt.Sprintf("mapping target %q exists and is not library-owned", targetPath)),
		TargetPath: targetPath,
	}
}

// ProfileImmutableError is raised when a dependency profile write targets an
// existing (profile_id, profile_version) with a different canonical hash.
type ProfileImmutableError struct {
	*Error
	ProfileID      string
	ProfileVersion string
}

func NewProfileImmutableError(profileID, profileVersion string) *ProfileImmutableError {
	return &ProfileImmutableError{
		Error: New(KindProfileImmutable, fmt.Sprintf(
			"dependency profile %s@%s is immutable and cannot be rewritten with different content",
			profileID, profileVersion)),
		ProfileID:      profileID,
		ProfileVersion: profileVersion,
	}
}

// RateLimitedError is raised on HF 429 responses or a proactive throttle.
type RateLimitedError struct {
	*Error
	RetryAfterSeconds int
}

func NewRateLimitedError(retryAfterSeconds int) *RateLimitedError {
	return &RateLimitedError{
		Error:             New(KindRateLimited, "rate limited"),
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// CircuitOpenError is raised while a host's network circuit breaker is open.
type CircuitOpenError struct {
	*Error
	Host string
}

func NewCircuitOpenError(host string) *CircuitOpenError {
	return &CircuitOpenError{
		Error: New(KindCircuitOpen, fmt.Sprintf("circuit open for host %s", host)),
		Host:  host,
	}
}

// HashMismatchError is raised when a computed hash disagrees with an
// expected value (e.g. import-time duplicate detection gone wrong).
type HashMismatchError struct {
	*Error
	Expected string
	Actual   string
}

func NewHashMismatchError(expected, actual string) *HashMismatchError {
	return &HashMismatchError{
		Error:    New(KindHashMismatch, fmt.Sprintf("expected hash %s, got %s", expected, actual)),
		Expected: expected,
		Actual:   actual,
	}
}
