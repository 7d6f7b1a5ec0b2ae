package main

import (
	"context"
	"flag"
	"os"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-insights/internal/config"
	infraBQ "github.com/dvloznov/finance-insights/internal/infra/bigquery"
	"github.com/dvloznov/finance-insights/internal/logger"
)

func main() {
	var (
		envFile       = flag.String("env-file", ".env", "Optional .env file to load before reading the environment")
		projectID     = flag.String("project", "", "GCP project ID (overrides GOOGLE_CLOUD_PROJECT)")
		datasetID     = flag.String("dataset", "", "BigQuery dataset ID (overrides BIGQUERY_DATASET)")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "", "Directory of NNNN_name.sql files (defaults to the embedded migrations)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *projectID != "" {
		cfg.ProjectID = *projectID
	}
	if *datasetID != "" {
		cfg.BigQueryDataset = *datasetID
	}
	if cfg.ProjectID == "" {
		log.Fatal().Msg("Error: -project flag or GOOGLE_CLOUD_PROJECT is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	migrations := infraBQ.Migrations()
	if *migrationsDir != "" {
		migrations = os.DirFS(*migrationsDir)
	}

	log.Info().Str("project", cfg.ProjectID).Str("dataset", cfg.BigQueryDataset).Msg("Connected to BigQuery")

	migrator := infraBQ.NewMigrator(client, cfg.ProjectID, cfg.BigQueryDataset, *appliedBy, log)
	applied, err := migrator.Run(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Int("applied", applied).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Migrations applied successfully")
	}
}
