package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
	"github.com/geih-labs/firewatch/internal/core/ports/driving"
	"github.com/geih-labs/firewatch/internal/logger"
)

// Ensure Orchestrator implements the driving port.
var _ driving.PipelineOrchestrator = (*Orchestrator)(nil)

// Orchestrator schedules pipeline runs: one worker goroutine per source, so
// runs for different sources execute in parallel while runs for the same
// source execute sequentially in window order. Windows are contiguous,
// derived from each source's interval; a failed window does not block the
// next one, and there is no automatic catch-up backfill; failed windows
// stay queryable for manual replay.
type Orchestrator struct {
	sources  map[string]domain.SourceConfig
	executor *RunExecutor
	runs     driven.RunStore

	// now is replaceable in tests.
	now func() time.Time

	// pollInterval bounds how often a source worker checks for a due
	// window. Kept well below the source interval.
	pollInterval time.Duration

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	sourceMus map[string]*sync.Mutex
}

// NewOrchestrator creates an orchestrator over the given per-source
// configurations. Configs are defaulted once here; nothing mutates them
// afterwards.
func NewOrchestrator(sources []domain.SourceConfig, executor *RunExecutor, runs driven.RunStore) *Orchestrator {
	bySource := make(map[string]domain.SourceConfig, len(sources))
	sourceMus := make(map[string]*sync.Mutex, len(sources))
	for _, cfg := range sources {
		cfg = cfg.WithDefaults()
		bySource[cfg.Name] = cfg
		sourceMus[cfg.Name] = &sync.Mutex{}
	}
	return &Orchestrator{
		sources:      bySource,
		executor:     executor,
		runs:         runs,
		now:          time.Now,
		pollInterval: time.Minute,
		sourceMus:    sourceMus,
	}
}

// Sources returns the configured source names.
func (o *Orchestrator) Sources() []string {
	names := make([]string, 0, len(o.sources))
	for name := range o.sources {
		names = append(names, name)
	}
	return names
}

// Start launches a worker per source and blocks until the context is
// cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = true
	o.stopCh = make(chan struct{})
	stopCh := o.stopCh
	o.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, cfg := range o.sources {
		o.wg.Add(1)
		go func(cfg domain.SourceConfig) {
			defer o.wg.Done()
			o.sourceLoop(runCtx, cfg, stopCh)
		}(cfg)
	}

	select {
	case <-ctx.Done():
		cancel()
		o.wg.Wait()
		return ctx.Err()
	case <-stopCh:
		cancel()
		o.wg.Wait()
		return nil
	}
}

// Stop shuts the orchestrator down and waits for in-flight runs.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	close(o.stopCh)
	o.mu.Unlock()

	o.wg.Wait()
	return nil
}

// sourceLoop processes due windows for a single source. Being the only
// goroutine for its source, it preserves window order naturally.
func (o *Orchestrator) sourceLoop(ctx context.Context, cfg domain.SourceConfig, stopCh <-chan struct{}) {
	poll := o.pollInterval
	if cfg.Interval < poll {
		poll = cfg.Interval
	}

	o.processDue(ctx, cfg)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			o.processDue(ctx, cfg)
		}
	}
}

// processDue runs the most recently completed window if no run exists for
// it yet. Older missed windows are deliberately skipped: under sustained
// upstream failure the backlog must not grow without bound.
func (o *Orchestrator) processDue(ctx context.Context, cfg domain.SourceConfig) {
	window := domain.WindowFor(o.now().Add(-cfg.Interval), cfg.Interval)

	if _, err := o.runs.Get(ctx, cfg.Name, window.Start); err == nil {
		return // window already has a run, terminal or in flight
	} else if !errors.Is(err, domain.ErrRunNotFound) {
		logger.Warn("Scheduler: query run for %s %s: %v", cfg.Name, window, err)
		return
	}

	if _, err := o.RunWindow(ctx, cfg.Name, window); err != nil {
		logger.Warn("Scheduler: run %s %s: %v", cfg.Name, window, err)
	}
}

// RunWindow executes one run for a source and window, synchronously. No
// run record is created for an unconfigured source.
func (o *Orchestrator) RunWindow(ctx context.Context, sourceName string, window domain.Window) (*domain.PipelineRun, error) {
	cfg, ok := o.sources[sourceName]
	if !ok {
		return nil, fmt.Errorf("run window for %q: %w", sourceName, domain.ErrUnknownSource)
	}

	// Serialise manual and scheduled runs for the same source.
	mu := o.sourceMus[sourceName]
	mu.Lock()
	defer mu.Unlock()

	run := domain.NewPipelineRun(sourceName, window)
	if err := o.executor.Execute(ctx, run, cfg); err != nil {
		return run, err
	}
	return run, nil
}

// Replay re-executes a previously failed window as a new run. The original
// run stays untouched; terminal runs are never reopened.
func (o *Orchestrator) Replay(ctx context.Context, sourceName string, windowStart time.Time) (*domain.PipelineRun, error) {
	prior, err := o.runs.Get(ctx, sourceName, windowStart)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", sourceName, err)
	}
	if !prior.Status.Terminal() {
		return nil, fmt.Errorf("replay %s %s: run %s still in progress", sourceName, prior.Window, prior.ID)
	}
	return o.RunWindow(ctx, sourceName, prior.Window)
}

// GetRunStatus returns the run for a source and window start.
func (o *Orchestrator) GetRunStatus(ctx context.Context, sourceName string, windowStart time.Time) (*domain.PipelineRun, error) {
	return o.runs.Get(ctx, sourceName, windowStart)
}

// ListRuns returns runs for a source, optionally filtered by status.
func (o *Orchestrator) ListRuns(ctx context.Context, sourceName string, status domain.RunStatus) ([]domain.PipelineRun, error) {
	return o.runs.List(ctx, sourceName, status)
}
