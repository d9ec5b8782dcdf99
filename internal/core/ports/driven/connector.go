package driven

import (
	"context"

	"github.com/geih-labs/firewatch/internal/core/domain"
)

// SourceConnector is the uniform contract every data source implements.
// A connector instance is owned exclusively by the run that created it;
// instances are never shared across concurrent runs.
type SourceConnector interface {
	// Connect verifies reachability and credentials before use. Expected
	// conditions (bad key, unreachable host) are returned as typed errors
	// (domain.ErrUnauthorized, domain.ErrUnreachable), never panics.
	Connect(ctx context.Context) error

	// Fetch retrieves data constrained to the window and the source-specific
	// filters carried by the connector's configuration. It is safe to call
	// repeatedly for the same window; the source may still return different
	// results on retry while data is landing, which is accepted, not hidden.
	//
	// Failure modes: domain.ErrUnreachable (including timeouts),
	// *domain.UpstreamError, domain.ErrMalformedResponse.
	Fetch(ctx context.Context, window domain.Window) (*domain.RawPayload, error)

	// Validate performs a source-aware structural check of the payload
	// (expected header fields, expected top-level keys, non-empty binary).
	// It does not mutate its input.
	Validate(payload *domain.RawPayload) bool

	// Describe returns immutable metadata about the source.
	Describe() domain.SourceDescriptor

	// Close releases held connection state. Safe to call multiple times.
	Close() error
}

// ConnectorConstructor builds a fresh connector from per-source settings.
type ConnectorConstructor func(cfg domain.SourceConfig) (SourceConnector, error)
