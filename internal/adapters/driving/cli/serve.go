package cli

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/geih-labs/firewatch/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and status API",
	Long: `Starts interval scheduling for every configured source and serves
the run status API. Blocks until interrupted; in-flight runs are allowed
to reach a terminal state before shutdown.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if orchestrator == nil {
		return errors.New("pipeline not configured")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		errCh <- orchestrator.Start(ctx)
	}()

	if apiServer != nil {
		go func() {
			errCh <- apiServer.Run(ctx)
		}()
	}

	cmd.Println("firewatch scheduler running; press Ctrl+C to stop")

	select {
	case err := <-errCh:
		cancel()
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down, waiting for in-flight runs")
	return orchestrator.Stop()
}
