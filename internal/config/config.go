// Package config provides centralized configuration management for the
// backfill pipeline. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration. The loaded Config is immutable, read-only process-wide
// state passed explicitly to each component.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Ingest   IngestConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP trigger-server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response. Large
	// files take a while to normalize and merge (default: 10m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"10m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`
}

// DatabaseConfig holds warehouse connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	// Bucket is the S3 bucket holding raw exports and normalized batches (required)
	Bucket string `env:"STORAGE_BUCKET" envAlt:"S3_BUCKET" required:"true"`

	// Region is the AWS region for the bucket (default: us-east-1)
	Region string `env:"STORAGE_REGION" envAlt:"AWS_REGION" default:"us-east-1"`
}

// IngestConfig holds normalization and dedup settings.
type IngestConfig struct {
	// InputPrefix filters which objects are processed (default: call-exports/)
	InputPrefix string `env:"INGEST_INPUT_PREFIX" default:"call-exports/"`

	// OutputPrefix is where normalized NDJSON batches land (default: tmp/normalized/)
	OutputPrefix string `env:"INGEST_OUTPUT_PREFIX" default:"tmp/normalized/"`

	// SourceTZ is the fallback timezone when a row carries no offset.
	// Accepts "UTC±H" fixed offsets or named zones like America/Denver.
	// Unresolvable values degrade to UTC (default: UTC-7)
	SourceTZ string `env:"SOURCE_TZ" default:"UTC-7"`

	// TimeTolSec is the dedup time tolerance in seconds (default: 60)
	TimeTolSec int `env:"TIME_TOL_SEC" default:"60"`

	// StagingTable receives normalized batches prior to reconciliation
	StagingTable string `env:"STAGING_TABLE" default:"at_dials_stage"`

	// CleanTable is the deduplicated clean dataset
	CleanTable string `env:"CLEAN_TABLE" default:"at_dials_cleaned"`

	// LegacyTable is the pre-existing dataset new batches must also dedup against
	LegacyTable string `env:"LEGACY_TABLE" envAlt:"EXISTING_TABLE" default:"at_dials_vici_cf"`

	// AuditTable receives one row per processed file
	AuditTable string `env:"AUDIT_TABLE" default:"ingestion_audit"`

	// MaxConcurrentRuns bounds simultaneous pipeline runs. Each run holds a
	// staging batch and a database transaction; processing is one file at a
	// time unless explicitly raised (default: 1)
	MaxConcurrentRuns int `env:"INGEST_MAX_CONCURRENT" default:"1"`

	// AcquireWait is how long an event waits for a free run slot before the
	// caller is told to retry (default: 30s)
	AcquireWait time.Duration `env:"INGEST_ACQUIRE_WAIT" default:"30s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
