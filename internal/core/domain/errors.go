package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline error taxonomy. Connectors and stage processors return these so
// the orchestrator can decide between retrying a stage and failing the run.
var (
	// ErrUnreachable indicates the source host could not be reached or the
	// fetch timed out. Retryable.
	ErrUnreachable = errors.New("source unreachable")

	// ErrUnauthorized indicates the source rejected the credentials.
	// Not retryable: retrying will not fix a bad key.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedResponse indicates the source answered with content the
	// connector cannot interpret. Not retryable.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrLoadFailure indicates a transport-level failure handing records to
	// storage. Retryable at the load stage.
	ErrLoadFailure = errors.New("load failure")

	// ErrCancelled indicates the run was cancelled between stages.
	ErrCancelled = errors.New("run cancelled")

	// ErrUnknownSource indicates a create for a name that was never
	// registered.
	ErrUnknownSource = errors.New("unknown source")

	// ErrDuplicateRegistration indicates a second registration for a name.
	// The first registration wins; there is no silent overwrite.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrRunNotFound indicates no run exists for the queried source and
	// window.
	ErrRunNotFound = errors.New("run not found")
)

// UpstreamError is a non-2xx answer from the source. Only 5xx-class codes
// are retryable; a 4xx means the request itself is wrong.
type UpstreamError struct {
	Code int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d", e.Code)
}

// ValidationFailure carries the reasons a payload was rejected by the
// validate stage. Not retryable.
type ValidationFailure struct {
	Reasons []string
}

func (e *ValidationFailure) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

// TransformError indicates the per-row drop rate exceeded the configured
// threshold, or no records could be produced at all. Not retryable; it
// requires operator attention rather than a bad partial load.
type TransformError struct {
	DropRate float64
	Dropped  int
	Total    int
	Reason   string
}

func (e *TransformError) Error() string {
	if e.Reason != "" {
		return "transform failed: " + e.Reason
	}
	return fmt.Sprintf("transform failed: dropped %d of %d rows (%.1f%% > threshold)",
		e.Dropped, e.Total, e.DropRate*100)
}

// Retryable reports whether an error is transient at its originating stage.
// Unreachable sources, 5xx upstream answers and storage transport failures
// are retried; structural mismatches are not.
func Retryable(err error) bool {
	if errors.Is(err, ErrUnreachable) || errors.Is(err, ErrLoadFailure) {
		return true
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Code >= 500
	}
	return false
}
