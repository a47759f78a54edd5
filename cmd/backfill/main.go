// Command backfill re-drives the ingest pipeline over every export file
// still sitting under the input prefix. Useful after an outage or when
// event notifications were dropped: processed files have already been
// relocated out of the prefix, and anything re-listed is duplicate-safe
// because suppression happens in the merge engine.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/DevKelvin21/call-backfill-cf/internal/config"
	"github.com/DevKelvin21/call-backfill-cf/internal/ingest"
	"github.com/DevKelvin21/call-backfill-cf/internal/logging"
	"github.com/DevKelvin21/call-backfill-cf/internal/merge"
	"github.com/DevKelvin21/call-backfill-cf/internal/storage"
	"github.com/DevKelvin21/call-backfill-cf/internal/warehouse"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	prefix := flag.String("prefix", "", "override the configured input prefix")
	flag.Parse()

	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	inputPrefix := cfg.Ingest.InputPrefix
	if strings.TrimSpace(*prefix) != "" {
		inputPrefix = *prefix
	}

	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := storage.NewS3Store(ctx, cfg.Storage.Bucket, cfg.Storage.Region)
	if err != nil {
		slog.Error("failed to create object store", "error", err)
		os.Exit(1)
	}

	wh, err := warehouse.New(pool, warehouse.Tables{
		Staging: cfg.Ingest.StagingTable,
		Clean:   cfg.Ingest.CleanTable,
		Legacy:  cfg.Ingest.LegacyTable,
		Audit:   cfg.Ingest.AuditTable,
	})
	if err != nil {
		slog.Error("failed to configure warehouse", "error", err)
		os.Exit(1)
	}

	engine := merge.NewEngine(wh, cfg.Ingest.TimeTolSec)
	mapper := ingest.NewMapper(ingest.NewTemporalResolver(cfg.Ingest.SourceTZ))

	pipeline := ingest.NewPipeline(store, wh, engine, wh, mapper, ingest.Options{
		Bucket:       cfg.Storage.Bucket,
		InputPrefix:  inputPrefix,
		OutputPrefix: cfg.Ingest.OutputPrefix,
	})

	keys, err := store.List(ctx, inputPrefix)
	if err != nil {
		slog.Error("failed to list input prefix", "prefix", inputPrefix, "error", err)
		os.Exit(1)
	}
	if len(keys) == 0 {
		slog.Info("no files to process", "prefix", inputPrefix)
		return
	}

	slog.Info("backfill starting", "prefix", inputPrefix, "files", len(keys))

	// One file at a time. Failures leave the file in place so the next run
	// picks it up again.
	failures := 0
	for _, key := range keys {
		outcome, err := pipeline.ProcessObject(ctx, key)
		if err != nil {
			slog.Error("file failed", "object", key, "error", err)
			failures++
			continue
		}
		if outcome.Skipped {
			continue
		}
		slog.Info("file done",
			"object", key,
			"rows_total", outcome.RowsTotal,
			"rows_accepted", outcome.RowsAccepted,
			"rows_rejected", outcome.RowsRejected,
			"rows_inserted", outcome.RowsInserted,
		)
	}

	if failures > 0 {
		slog.Error("backfill finished with failures", "failed_files", failures)
		os.Exit(1)
	}
	slog.Info("backfill complete", "files", len(keys))
}
