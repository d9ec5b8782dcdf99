package driving

import (
	"context"
	"time"

	"github.com/geih-labs/firewatch/internal/core/domain"
)

// PipelineOrchestrator schedules and executes pipeline runs and answers
// observability queries from external collaborators.
type PipelineOrchestrator interface {
	// Start begins interval scheduling for all configured sources and
	// blocks until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop shuts the orchestrator down, waiting for in-flight runs to
	// reach a terminal state.
	Stop() error

	// RunWindow executes one run for a source and window, synchronously.
	// It returns the terminal run record; the error reports failures to
	// create or persist the run, not a failed run outcome.
	RunWindow(ctx context.Context, sourceName string, window domain.Window) (*domain.PipelineRun, error)

	// Replay re-executes a previously failed window as a new run. The
	// original terminal run is never reopened.
	Replay(ctx context.Context, sourceName string, windowStart time.Time) (*domain.PipelineRun, error)

	// GetRunStatus returns the run for a source and window start.
	GetRunStatus(ctx context.Context, sourceName string, windowStart time.Time) (*domain.PipelineRun, error)

	// ListRuns returns runs for a source, optionally filtered by status.
	ListRuns(ctx context.Context, sourceName string, status domain.RunStatus) ([]domain.PipelineRun, error)
}
