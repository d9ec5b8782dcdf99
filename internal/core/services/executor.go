package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
	"github.com/geih-labs/firewatch/internal/logger"
)

// RunExecutor drives a single pipeline run through the fixed
// fetch→validate→transform→load state machine. Each stage has an
// independent attempt counter and shares the source's retry budget;
// retryable errors loop back to the same stage after an exponential
// backoff, non-retryable errors fail the run immediately.
type RunExecutor struct {
	registry    *ConnectorRegistry
	validator   driven.PayloadValidator
	transformer driven.PayloadTransformer
	runs        driven.RunStore
	hotspots    driven.HotspotStore

	// sleep is replaceable in tests so backoff does not wall-clock wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunExecutor wires the executor with its collaborators.
func NewRunExecutor(
	registry *ConnectorRegistry,
	validator driven.PayloadValidator,
	transformer driven.PayloadTransformer,
	runs driven.RunStore,
	hotspots driven.HotspotStore,
) *RunExecutor {
	return &RunExecutor{
		registry:    registry,
		validator:   validator,
		transformer: transformer,
		runs:        runs,
		hotspots:    hotspots,
		sleep:       sleepContext,
	}
}

// Execute runs the state machine for a pending run until it reaches a
// terminal status. The returned error reports infrastructure problems
// (e.g., persisting run state); a failed run is a normal outcome recorded
// on the run itself.
func (e *RunExecutor) Execute(ctx context.Context, run *domain.PipelineRun, cfg domain.SourceConfig) error {
	cfg = cfg.WithDefaults()

	run.Status = domain.RunRunning
	run.StartedAt = time.Now().UTC()
	if err := e.runs.Save(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	logger.Info("Run %s: source %s window %s", run.ID, run.SourceName, run.Window)

	connector, err := e.registry.Create(cfg.Name, cfg)
	if err != nil {
		return e.finish(ctx, run, err)
	}
	defer connector.Close()

	var (
		payload *domain.RawPayload
		records []domain.Hotspot
	)

	err = e.runStage(ctx, run, cfg, domain.StageFetch, func(ctx context.Context) error {
		if err := connector.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		fetched, err := connector.Fetch(ctx, run.Window)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		payload = fetched
		return nil
	})
	if err != nil {
		return e.finish(ctx, run, err)
	}

	err = e.runStage(ctx, run, cfg, domain.StageValidate, func(ctx context.Context) error {
		result := e.validator.Validate(connector, payload, cfg)
		if !result.OK {
			return &domain.ValidationFailure{Reasons: result.Reasons}
		}
		return nil
	})
	if err != nil {
		return e.finish(ctx, run, err)
	}

	err = e.runStage(ctx, run, cfg, domain.StageTransform, func(ctx context.Context) error {
		result, err := e.transformer.Transform(payload, cfg)
		if err != nil {
			return err
		}
		if result.Dropped > 0 {
			run.Warnings = append(run.Warnings,
				fmt.Sprintf("transform dropped %d of %d rows", result.Dropped, result.Total))
		}
		records = result.Records
		return nil
	})
	if err != nil {
		return e.finish(ctx, run, err)
	}
	payload = nil // consumed; raw payloads are not retained past transform

	err = e.runStage(ctx, run, cfg, domain.StageLoad, func(ctx context.Context) error {
		result, err := e.hotspots.Load(ctx, records)
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		run.RecordsLoaded = result.Inserted
		if result.Rejected > 0 {
			run.Warnings = append(run.Warnings,
				fmt.Sprintf("storage rejected %d of %d records", result.Rejected, len(records)))
		}
		return nil
	})
	return e.finish(ctx, run, err)
}

// runStage executes one stage with its retry loop. Cancellation is
// cooperative: it is observed between attempts and during backoff sleeps,
// never mid-fetch beyond the connector's own timeout.
func (e *RunExecutor) runStage(ctx context.Context, run *domain.PipelineRun, cfg domain.SourceConfig, stage domain.Stage, fn func(context.Context) error) error {
	run.CurrentStage = stage

	for {
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}

		run.Attempts[stage]++
		run.Status = domain.RunRunning
		if err := e.runs.Save(ctx, run); err != nil {
			logger.Warn("Run %s: save state: %v", run.ID, err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}

		run.LastError = err.Error()
		if !domain.Retryable(err) {
			logger.Warn("Run %s: %s stage failed (non-retryable): %v", run.ID, stage, err)
			return err
		}
		if run.Attempts[stage] >= cfg.RetryBudget {
			logger.Warn("Run %s: %s stage exhausted %d attempts: %v", run.ID, stage, cfg.RetryBudget, err)
			return err
		}

		run.Status = domain.RunRetrying
		if saveErr := e.runs.Save(ctx, run); saveErr != nil {
			logger.Warn("Run %s: save state: %v", run.ID, saveErr)
		}

		delay := Backoff(cfg.BackoffBase, cfg.BackoffCap, run.Attempts[stage])
		logger.Debug("Run %s: retrying %s in %s (attempt %d/%d)", run.ID, stage, delay, run.Attempts[stage], cfg.RetryBudget)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return domain.ErrCancelled
		}
	}
}

// finish records the terminal status. Failed and Succeeded are final; a
// run's state is never reopened.
func (e *RunExecutor) finish(ctx context.Context, run *domain.PipelineRun, stageErr error) error {
	run.FinishedAt = time.Now().UTC()
	if stageErr == nil {
		run.Status = domain.RunSucceeded
		run.LastError = ""
		logger.Info("Run %s: succeeded, %d records loaded", run.ID, run.RecordsLoaded)
	} else {
		run.Status = domain.RunFailed
		run.LastError = stageErr.Error()
		if errors.Is(stageErr, domain.ErrCancelled) {
			run.LastError = domain.ErrCancelled.Error()
		}
		logger.Warn("Run %s: failed at %s: %s", run.ID, run.CurrentStage, run.LastError)
	}

	// Persist the terminal state even when the triggering context is gone.
	saveCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := e.runs.Save(saveCtx, run); err != nil {
		return fmt.Errorf("save terminal run state: %w", err)
	}
	return nil
}

// Backoff returns the delay before the next attempt: base doubled per
// completed attempt, capped. Delays are non-decreasing across attempts.
func Backoff(base, cap time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = domain.DefaultBackoffBase
	}
	if cap <= 0 {
		cap = domain.DefaultBackoffCap
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
