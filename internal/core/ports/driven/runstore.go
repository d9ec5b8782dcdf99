package driven

import (
	"context"
	"time"

	"github.com/geih-labs/firewatch/internal/core/domain"
)

// RunStore persists pipeline run state. The orchestrator saves every status
// transition so terminal outcomes survive a restart and remain queryable
// for audit.
type RunStore interface {
	// Save creates or updates a run by ID.
	Save(ctx context.Context, run *domain.PipelineRun) error

	// Get returns the most recent run for a source and window start.
	// Returns domain.ErrRunNotFound if none exists.
	Get(ctx context.Context, sourceName string, windowStart time.Time) (*domain.PipelineRun, error)

	// List returns runs for a source, most recent first. An empty status
	// matches all statuses. An empty sourceName matches all sources.
	List(ctx context.Context, sourceName string, status domain.RunStatus) ([]domain.PipelineRun, error)
}
