package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DevKelvin21/call-backfill-cf/internal/config"
	"github.com/DevKelvin21/call-backfill-cf/internal/ingest"
	"github.com/DevKelvin21/call-backfill-cf/internal/logging"
	"github.com/DevKelvin21/call-backfill-cf/internal/merge"
	"github.com/DevKelvin21/call-backfill-cf/internal/storage"
	"github.com/DevKelvin21/call-backfill-cf/internal/warehouse"
	"github.com/DevKelvin21/call-backfill-cf/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"bucket", cfg.Storage.Bucket,
		"input_prefix", cfg.Ingest.InputPrefix,
		"time_tol_sec", cfg.Ingest.TimeTolSec,
	)

	// An unresolvable source timezone degrades to UTC rather than failing;
	// surface it here so misconfiguration is visible without breaking ingestion.
	if ingest.ResolveZone(cfg.Ingest.SourceTZ) == time.UTC &&
		!strings.EqualFold(strings.TrimSpace(cfg.Ingest.SourceTZ), "UTC") {
		slog.Warn("source timezone did not resolve, falling back to UTC",
			"source_tz", cfg.Ingest.SourceTZ)
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		dbName := strings.TrimPrefix(u.Path, "/")
		slog.Info("connected to database", "name", dbName)
	} else {
		slog.Info("connected to database")
	}

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
		InputPrefix:  cfg.Ingest.InputPrefix,
		OutputPrefix: cfg.Ingest.OutputPrefix,
	})

	server := web.NewServer(pipeline, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
