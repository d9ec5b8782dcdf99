package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/geih-labs/firewatch/internal/core/domain"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and replay pipeline runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list [source]",
	Short: "List runs, most recent first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRunsList,
}

var runsStatusCmd = &cobra.Command{
	Use:   "status <source> <window-start>",
	Short: "Show the run for a source and window",
	Args:  cobra.ExactArgs(2),
	RunE:  runRunsStatus,
}

var runsReplayCmd = &cobra.Command{
	Use:   "replay <source> <window-start>",
	Short: "Re-execute a previously failed window as a new run",
	Args:  cobra.ExactArgs(2),
	RunE:  runRunsReplay,
}

var runsStatusFilter string

func init() {
	runsListCmd.Flags().StringVar(&runsStatusFilter, "status", "", "filter by status (pending, running, retrying, succeeded, failed)")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsReplayCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	if orchestrator == nil {
		return errors.New("pipeline not configured")
	}

	source := ""
	if len(args) > 0 {
		source = args[0]
	}

	runs, err := orchestrator.ListRuns(cmd.Context(), source, domain.RunStatus(runsStatusFilter))
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if len(runs) == 0 {
		cmd.Println("No runs found.")
		return nil
	}

	for _, run := range runs {
		line := fmt.Sprintf("%s  %-10s  %-9s  %s", run.ID, run.SourceName, run.Status, run.Window)
		if run.Status == domain.RunSucceeded {
			line += fmt.Sprintf("  %d records", run.RecordsLoaded)
		}
		if run.LastError != "" {
			line += "  " + run.LastError
		}
		cmd.Println(line)
	}
	return nil
}

func runRunsStatus(cmd *cobra.Command, args []string) error {
	if orchestrator == nil {
		return errors.New("pipeline not configured")
	}

	windowStart, err := parseWindowStart(args[1])
	if err != nil {
		return err
	}

	run, err := orchestrator.GetRunStatus(cmd.Context(), args[0], windowStart)
	if errors.Is(err, domain.ErrRunNotFound) {
		return fmt.Errorf("no run for %s at %s", args[0], args[1])
	}
	if err != nil {
		return fmt.Errorf("getting run status: %w", err)
	}

	printRun(cmd, run)
	return nil
}

func runRunsReplay(cmd *cobra.Command, args []string) error {
	if orchestrator == nil {
		return errors.New("pipeline not configured")
	}

	windowStart, err := parseWindowStart(args[1])
	if err != nil {
		return err
	}

	cmd.Printf("Replaying %s window starting %s...\n", args[0], args[1])

	run, err := orchestrator.Replay(cmd.Context(), args[0], windowStart)
	if errors.Is(err, domain.ErrRunNotFound) {
		return fmt.Errorf("no prior run for %s at %s", args[0], args[1])
	}
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	printRun(cmd, run)
	return nil
}

// parseWindowStart accepts RFC3339 or a bare date.
func parseWindowStart(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid window start %q: want RFC3339 or YYYY-MM-DD", raw)
}
