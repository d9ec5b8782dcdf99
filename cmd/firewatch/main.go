package main

import (
	"context"
	"fmt"
	"os"

	"github.com/geih-labs/firewatch/internal/adapters/driven/storage/memory"
	"github.com/geih-labs/firewatch/internal/adapters/driven/storage/postgres"
	"github.com/geih-labs/firewatch/internal/adapters/driven/storage/sqlite"
	"github.com/geih-labs/firewatch/internal/adapters/driving/api"
	"github.com/geih-labs/firewatch/internal/adapters/driving/cli"
	"github.com/geih-labs/firewatch/internal/config"
	"github.com/geih-labs/firewatch/internal/connectors/firms"
	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
	"github.com/geih-labs/firewatch/internal/core/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("FIREWATCH_CONFIG"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sourceConfigs, err := cfg.SourceConfigs()
	if err != nil {
		return err
	}

	registry := services.NewConnectorRegistry()
	if err := registry.Register(firms.SourceName, firms.New); err != nil {
		return err
	}

	runStore, err := sqlite.NewRunStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer runStore.Close()

	// Without a warehouse URL, records land in memory. Useful for local
	// smoke tests against the real upstream.
	var hotspots driven.HotspotStore = memory.NewHotspotStore()
	if cfg.DatabaseURL != "" {
		pg, err := postgres.NewHotspotStore(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting warehouse: %w", err)
		}
		defer pg.Close()
		hotspots = pg
	}

	validator := services.NewValidator()
	transformer := services.NewTransformer()

	executor := services.NewRunExecutor(registry, validator, transformer, runStore, hotspots)

	configs := make([]domain.SourceConfig, 0, len(sourceConfigs))
	for _, sc := range sourceConfigs {
		configs = append(configs, sc)
	}
	orchestrator := services.NewOrchestrator(configs, executor, runStore)

	dryExecutor := services.NewRunExecutor(registry, validator, transformer, runStore, memory.NewHotspotStore())
	dryOrchestrator := services.NewOrchestrator(configs, dryExecutor, runStore)

	server := api.New(cfg.ListenAddr, orchestrator, orchestrator)

	cli.SetServices(cli.Services{
		Orchestrator:       orchestrator,
		DryRunOrchestrator: dryOrchestrator,
		Registry:           registry,
		SourceConfigs:      sourceConfigs,
		APIServer:          server,
	})

	return cli.Execute()
}
