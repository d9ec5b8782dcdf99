package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage identifies one step of a pipeline run.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageValidate  Stage = "validate"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
)

// Stages lists the pipeline stages in execution order. Each stage's success
// gates the next; the dependency shape never varies per source.
var Stages = []Stage{StageFetch, StageValidate, StageTransform, StageLoad}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunRetrying  RunStatus = "retrying"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status is final. A terminal run is never
// reopened; replaying a window creates a new run.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// Window is a contiguous time interval for which one run retrieves data.
// Windows for a source are non-overlapping and derived from its interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// DateRange renders the window as the YYYY-MM-DD/YYYY-MM-DD form the
// upstream wire contract expects.
func (w Window) DateRange() string {
	return w.Start.Format("2006-01-02") + "/" + w.End.Format("2006-01-02")
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// WindowFor returns the window of the given width containing t, aligned to
// the interval so that consecutive windows are contiguous.
func WindowFor(t time.Time, interval time.Duration) Window {
	start := t.UTC().Truncate(interval)
	return Window{Start: start, End: start.Add(interval)}
}

// PipelineRun is one execution of a source's fetch→validate→transform→load
// chain for a window. It is created when the orchestrator schedules the
// window and mutated only by the orchestrator as stages progress. Terminal
// runs are retained for audit and observability queries.
type PipelineRun struct {
	// ID uniquely identifies the run.
	ID string

	// SourceName is the source this run ingests.
	SourceName string

	// Window is the time interval being ingested.
	Window Window

	// CurrentStage is the stage the run is in (or failed in).
	CurrentStage Stage

	// Attempts counts attempts per stage. Each stage has an independent
	// retry budget.
	Attempts map[Stage]int

	// Status is the lifecycle state.
	Status RunStatus

	// RecordsLoaded is the number of canonical records handed to storage.
	RecordsLoaded int

	// Warnings collects non-fatal conditions, such as per-row transform
	// drops below the failure threshold.
	Warnings []string

	// StartedAt is when execution began; zero while pending.
	StartedAt time.Time

	// FinishedAt is when the run reached a terminal status.
	FinishedAt time.Time

	// LastError holds the most recent stage error message.
	LastError string
}

// NewPipelineRun creates a pending run for a source and window.
func NewPipelineRun(sourceName string, window Window) *PipelineRun {
	return &PipelineRun{
		ID:           uuid.NewString(),
		SourceName:   sourceName,
		Window:       window,
		CurrentStage: StageFetch,
		Attempts:     make(map[Stage]int),
		Status:       RunPending,
	}
}

// Clone returns a deep copy, so stores and status queries never share the
// orchestrator's mutable state.
func (r *PipelineRun) Clone() *PipelineRun {
	cp := *r
	cp.Attempts = make(map[Stage]int, len(r.Attempts))
	for k, v := range r.Attempts {
		cp.Attempts[k] = v
	}
	cp.Warnings = append([]string(nil), r.Warnings...)
	return &cp
}
