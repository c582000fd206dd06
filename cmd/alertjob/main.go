// Command alertjob runs a single alerting job invocation and prints the
// run report as JSON. It is intended for cron and Cloud Scheduler
// deployments where the HTTP trigger is not used.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/finance-alerts/internal/clock"
	"github.com/dvloznov/finance-alerts/internal/config"
	infraBQ "github.com/dvloznov/finance-alerts/internal/infra/bigquery"
	"github.com/dvloznov/finance-alerts/internal/infra/sqlitestore"
	"github.com/dvloznov/finance-alerts/internal/job"
	"github.com/dvloznov/finance-alerts/internal/logger"
	"github.com/dvloznov/finance-alerts/internal/repository"
)

func main() {
	var configPath = flag.String("config", "", "Path to TOML config file (or set ALERTS_CONFIG env)")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Cancel the run on interrupt; in-flight user evaluations finish.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	orchestrator := job.New(store, cfg.Engine, clock.System{}, log)
	if cfg.Archive.Bucket != "" {
		orchestrator = orchestrator.WithArchiver(job.NewGCSArchiver(cfg.Archive.Bucket))
	}

	report, err := orchestrator.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Alert run failed")
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode run report")
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Backend {
	case config.BackendBigQuery:
		return infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	case config.BackendSQLite:
		return sqlitestore.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("openStore: unknown backend %q", cfg.Backend)
	}
}
