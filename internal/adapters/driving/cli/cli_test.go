package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
	"github.com/geih-labs/firewatch/internal/core/services"
)

// mockOrchestrator implements driving.PipelineOrchestrator for testing.
type mockOrchestrator struct {
	runs     []domain.PipelineRun
	runErr   error
	lastRun  *domain.PipelineRun
	replayed bool
}

func (m *mockOrchestrator) Start(_ context.Context) error { return nil }
func (m *mockOrchestrator) Stop() error                   { return nil }

func (m *mockOrchestrator) RunWindow(_ context.Context, sourceName string, window domain.Window) (*domain.PipelineRun, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}
	run := domain.NewPipelineRun(sourceName, window)
	run.Status = domain.RunSucceeded
	run.CurrentStage = domain.StageLoad
	run.RecordsLoaded = 7
	m.lastRun = run
	return run, nil
}

func (m *mockOrchestrator) Replay(ctx context.Context, sourceName string, windowStart time.Time) (*domain.PipelineRun, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}
	m.replayed = true
	window := domain.Window{Start: windowStart, End: windowStart.Add(24 * time.Hour)}
	return m.RunWindow(ctx, sourceName, window)
}

func (m *mockOrchestrator) GetRunStatus(_ context.Context, sourceName string, windowStart time.Time) (*domain.PipelineRun, error) {
	for i := range m.runs {
		if m.runs[i].SourceName == sourceName && m.runs[i].Window.Start.Equal(windowStart) {
			return &m.runs[i], nil
		}
	}
	return nil, domain.ErrRunNotFound
}

func (m *mockOrchestrator) ListRuns(_ context.Context, sourceName string, status domain.RunStatus) ([]domain.PipelineRun, error) {
	var out []domain.PipelineRun
	for _, r := range m.runs {
		if sourceName != "" && r.SourceName != sourceName {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// fakeConnector implements driven.SourceConnector for the sources commands.
type fakeConnector struct {
	closed bool
}

func (f *fakeConnector) Connect(_ context.Context) error { return nil }

func (f *fakeConnector) Fetch(_ context.Context, _ domain.Window) (*domain.RawPayload, error) {
	return nil, nil
}

func (f *fakeConnector) Validate(_ *domain.RawPayload) bool { return true }

func (f *fakeConnector) Describe() domain.SourceDescriptor {
	return domain.SourceDescriptor{
		Name:               "test-source",
		Description:        "test fixture source",
		Formats:            []domain.Format{domain.FormatCSV},
		SpatialCoverage:    "global",
		TemporalResolution: "daily",
	}
}

func (f *fakeConnector) Close() error {
	f.closed = true
	return nil
}

// setupCLITest wires mock services and returns a teardown func.
func setupCLITest(orch *mockOrchestrator) func() {
	oldOrch := orchestrator
	oldDryRun := dryRunOrchestrator
	oldRegistry := registry
	oldConfigs := sourceConfigs

	reg := services.NewConnectorRegistry()
	_ = reg.Register("test-source", func(_ domain.SourceConfig) (driven.SourceConnector, error) {
		return &fakeConnector{}, nil
	})

	orchestrator = orch
	dryRunOrchestrator = orch
	registry = reg
	sourceConfigs = map[string]domain.SourceConfig{
		"test-source": domain.SourceConfig{Name: "test-source", Interval: 24 * time.Hour}.WithDefaults(),
	}

	return func() {
		orchestrator = oldOrch
		dryRunOrchestrator = oldDryRun
		registry = oldRegistry
		sourceConfigs = oldConfigs
	}
}

func execute(args ...string) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf, err
}

func TestRootCmd_Use(t *testing.T) {
	if rootCmd.Use != "firewatch" {
		t.Errorf("unexpected root use %q", rootCmd.Use)
	}
}
