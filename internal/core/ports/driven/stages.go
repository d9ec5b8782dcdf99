package driven

import "github.com/geih-labs/firewatch/internal/core/domain"

// ValidationResult is the outcome of the validate stage.
type ValidationResult struct {
	// OK reports whether the payload passed all checks.
	OK bool

	// Reasons lists why validation failed; empty when OK.
	Reasons []string
}

// PayloadValidator gates raw payloads before transformation. It combines the
// connector's structural check with pipeline-level invariants: schema
// presence, record-count lower bound and geographic sanity for the
// configured region.
type PayloadValidator interface {
	Validate(connector SourceConnector, payload *domain.RawPayload, cfg domain.SourceConfig) ValidationResult
}

// TransformResult carries the canonical records plus per-row drop
// accounting. Malformed rows are dropped and counted, never silently
// ignored.
type TransformResult struct {
	Records []domain.Hotspot
	Dropped int
	Total   int
}

// DropRate is the fraction of rows rejected during transform.
func (r TransformResult) DropRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Dropped) / float64(r.Total)
}

// PayloadTransformer parses a raw payload into canonical records. Transform
// is a pure function of the payload: re-running the same payload yields an
// equivalent record set. A transform succeeds only if at least one record is
// produced and the drop rate stays below the configured threshold;
// exceeding it returns *domain.TransformError.
type PayloadTransformer interface {
	Transform(payload *domain.RawPayload, cfg domain.SourceConfig) (TransformResult, error)
}
