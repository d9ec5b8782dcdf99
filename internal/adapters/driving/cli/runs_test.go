package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geih-labs/firewatch/internal/core/domain"
)

func storedRun(status domain.RunStatus) domain.PipelineRun {
	start := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	run := domain.NewPipelineRun("test-source", domain.Window{Start: start, End: start.Add(24 * time.Hour)})
	run.Status = status
	run.RecordsLoaded = 3
	if status == domain.RunFailed {
		run.LastError = "source unreachable"
	}
	return *run
}

func TestRunsListCmd_Empty(t *testing.T) {
	cleanup := setupCLITest(&mockOrchestrator{})
	defer cleanup()

	buf, err := execute("runs", "list")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No runs found")
}

func TestRunsListCmd_ShowsRuns(t *testing.T) {
	orch := &mockOrchestrator{runs: []domain.PipelineRun{
		storedRun(domain.RunSucceeded),
		storedRun(domain.RunFailed),
	}}
	cleanup := setupCLITest(orch)
	defer cleanup()

	buf, err := execute("runs", "list", "test-source")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "succeeded")
	assert.Contains(t, buf.String(), "3 records")
	assert.Contains(t, buf.String(), "source unreachable")
}

func TestRunsListCmd_StatusFilter(t *testing.T) {
	orch := &mockOrchestrator{runs: []domain.PipelineRun{
		storedRun(domain.RunSucceeded),
		storedRun(domain.RunFailed),
	}}
	cleanup := setupCLITest(orch)
	defer cleanup()

	buf, err := execute("runs", "list", "--status", "failed")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "failed")
	assert.NotContains(t, buf.String(), "succeeded")

	// Reset for later tests.
	runsStatusFilter = ""
}

func TestRunsStatusCmd_Found(t *testing.T) {
	orch := &mockOrchestrator{runs: []domain.PipelineRun{storedRun(domain.RunSucceeded)}}
	cleanup := setupCLITest(orch)
	defer cleanup()

	buf, err := execute("runs", "status", "test-source", "2025-05-15")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "succeeded")
}

func TestRunsStatusCmd_NotFound(t *testing.T) {
	cleanup := setupCLITest(&mockOrchestrator{})
	defer cleanup()

	_, err := execute("runs", "status", "test-source", "2025-05-15")
	assert.ErrorContains(t, err, "no run for")
}

func TestRunsReplayCmd(t *testing.T) {
	orch := &mockOrchestrator{}
	cleanup := setupCLITest(orch)
	defer cleanup()

	buf, err := execute("runs", "replay", "test-source", "2025-05-15")
	require.NoError(t, err)
	assert.True(t, orch.replayed)
	assert.Contains(t, buf.String(), "Replaying")
}

func TestRunsReplayCmd_BadWindow(t *testing.T) {
	cleanup := setupCLITest(&mockOrchestrator{})
	defer cleanup()

	_, err := execute("runs", "replay", "test-source", "whenever")
	assert.ErrorContains(t, err, "invalid window start")
}
