// Package cli implements the firewatch command-line interface using cobra.
// Commands receive their collaborators through SetServices; nothing in this
// package constructs adapters itself.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driving"
	"github.com/geih-labs/firewatch/internal/core/services"
	"github.com/geih-labs/firewatch/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services injected by the composition root before Execute.
var (
	orchestrator driving.PipelineOrchestrator

	// dryRunOrchestrator executes runs against an in-memory sink instead
	// of the warehouse. Used by ingest --dry-run.
	dryRunOrchestrator driving.PipelineOrchestrator

	registry      *services.ConnectorRegistry
	sourceConfigs map[string]domain.SourceConfig

	// apiServer serves the status API; started by the serve command.
	apiServer APIServer
)

// APIServer is the slice of the HTTP adapter the serve command needs.
type APIServer interface {
	Run(ctx context.Context) error
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "firewatch",
	Short: "Environmental data ingestion pipeline",
	Long: `Firewatch ingests fire hotspot observations from external sources,
validates and transforms them into canonical records, and loads them
into a warehouse. Runs are windowed, retried, and fully auditable.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Services bundles the collaborators the commands need.
type Services struct {
	Orchestrator       driving.PipelineOrchestrator
	DryRunOrchestrator driving.PipelineOrchestrator
	Registry           *services.ConnectorRegistry
	SourceConfigs      map[string]domain.SourceConfig
	APIServer          APIServer
}

// SetServices injects the command dependencies.
func SetServices(s Services) {
	orchestrator = s.Orchestrator
	dryRunOrchestrator = s.DryRunOrchestrator
	registry = s.Registry
	sourceConfigs = s.SourceConfigs
	apiServer = s.APIServer
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
