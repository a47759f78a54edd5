package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("STORAGE_BUCKET", "exports-test")
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("STORAGE_BUCKET")
	})
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Storage.Region != "us-east-1" {
		t.Errorf("Storage.Region = %q, want %q", cfg.Storage.Region, "us-east-1")
	}
	if cfg.Ingest.InputPrefix != "call-exports/" {
		t.Errorf("Ingest.InputPrefix = %q, want %q", cfg.Ingest.InputPrefix, "call-exports/")
	}
	if cfg.Ingest.OutputPrefix != "tmp/normalized/" {
		t.Errorf("Ingest.OutputPrefix = %q, want %q", cfg.Ingest.OutputPrefix, "tmp/normalized/")
	}
	if cfg.Ingest.SourceTZ != "UTC-7" {
		t.Errorf("Ingest.SourceTZ = %q, want %q", cfg.Ingest.SourceTZ, "UTC-7")
	}
	if cfg.Ingest.TimeTolSec != 60 {
		t.Errorf("Ingest.TimeTolSec = %d, want %d", cfg.Ingest.TimeTolSec, 60)
	}
	if cfg.Ingest.StagingTable != "at_dials_stage" {
		t.Errorf("Ingest.StagingTable = %q, want %q", cfg.Ingest.StagingTable, "at_dials_stage")
	}
	if cfg.Ingest.CleanTable != "at_dials_cleaned" {
		t.Errorf("Ingest.CleanTable = %q, want %q", cfg.Ingest.CleanTable, "at_dials_cleaned")
	}
	if cfg.Ingest.LegacyTable != "at_dials_vici_cf" {
		t.Errorf("Ingest.LegacyTable = %q, want %q", cfg.Ingest.LegacyTable, "at_dials_vici_cf")
	}
	if cfg.Ingest.AuditTable != "ingestion_audit" {
		t.Errorf("Ingest.AuditTable = %q, want %q", cfg.Ingest.AuditTable, "ingestion_audit")
	}
	if cfg.Ingest.MaxConcurrentRuns != 1 {
		t.Errorf("Ingest.MaxConcurrentRuns = %d, want %d", cfg.Ingest.MaxConcurrentRuns, 1)
	}
	if cfg.Ingest.AcquireWait != 30*time.Second {
		t.Errorf("Ingest.AcquireWait = %v, want %v", cfg.Ingest.AcquireWait, 30*time.Second)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	setRequired(t)
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("SOURCE_TZ", "America/Denver")
	os.Setenv("TIME_TOL_SEC", "120")
	os.Setenv("LOG_LEVEL", "debug")
	defer func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("SOURCE_TZ")
		os.Unsetenv("TIME_TOL_SEC")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Ingest.SourceTZ != "America/Denver" {
		t.Errorf("Ingest.SourceTZ = %q, want %q", cfg.Ingest.SourceTZ, "America/Denver")
	}
	if cfg.Ingest.TimeTolSec != 120 {
		t.Errorf("Ingest.TimeTolSec = %d, want %d", cfg.Ingest.TimeTolSec, 120)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVars(t *testing.T) {
	os.Setenv("DB_URL", "postgres://localhost/alttest")
	os.Setenv("S3_BUCKET", "alt-bucket")
	os.Setenv("EXISTING_TABLE", "legacy_dials")
	defer func() {
		os.Unsetenv("DB_URL")
		os.Unsetenv("S3_BUCKET")
		os.Unsetenv("EXISTING_TABLE")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/alttest" {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, "postgres://localhost/alttest")
	}
	if cfg.Storage.Bucket != "alt-bucket" {
		t.Errorf("Storage.Bucket = %q, want %q", cfg.Storage.Bucket, "alt-bucket")
	}
	if cfg.Ingest.LegacyTable != "legacy_dials" {
		t.Errorf("Ingest.LegacyTable = %q, want %q", cfg.Ingest.LegacyTable, "legacy_dials")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("DB_URL")
	os.Unsetenv("STORAGE_BUCKET")
	os.Unsetenv("S3_BUCKET")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for missing required variables")
	}
}

func TestLoad_Duration(t *testing.T) {
	setRequired(t)
	os.Setenv("SERVER_READ_TIMEOUT", "45s")
	os.Setenv("SERVER_REQUEST_TIMEOUT", "5m")
	defer func() {
		os.Unsetenv("SERVER_READ_TIMEOUT")
		os.Unsetenv("SERVER_REQUEST_TIMEOUT")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Server.RequestTimeout != 5*time.Minute {
		t.Errorf("Server.RequestTimeout = %v, want %v", cfg.Server.RequestTimeout, 5*time.Minute)
	}
}

func validBase() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "postgres://localhost/test", MaxConns: 10, MinConns: 2},
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Storage:  StorageConfig{Bucket: "exports", Region: "us-east-1"},
		Ingest: IngestConfig{
			InputPrefix:  "call-exports/",
			OutputPrefix: "tmp/normalized/",
			SourceTZ:     "UTC-7",
			TimeTolSec:   60,
			StagingTable: "at_dials_stage",
			CleanTable:   "at_dials_cleaned",
			LegacyTable:  "at_dials_vici_cf",
			AuditTable:   "ingestion_audit",

			MaxConcurrentRuns: 2,
			AcquireWait:       30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validBase()
	cfg.Server.Port = 99999

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid port")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("error should mention SERVER_PORT: %v", err)
	}
}

func TestValidate_MaxConnsLessThanMinConns(t *testing.T) {
	cfg := validBase()
	cfg.Database.MaxConns = 2
	cfg.Database.MinConns = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for MaxConns < MinConns")
	}
	if !strings.Contains(err.Error(), "DB_MAX_CONNS") {
		t.Errorf("error should mention DB_MAX_CONNS: %v", err)
	}
}

func TestValidate_NegativeTolerance(t *testing.T) {
	cfg := validBase()
	cfg.Ingest.TimeTolSec = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for negative tolerance")
	}
	if !strings.Contains(err.Error(), "TIME_TOL_SEC") {
		t.Errorf("error should mention TIME_TOL_SEC: %v", err)
	}
}

func TestValidate_UnresolvableSourceTZPasses(t *testing.T) {
	// Timezone resolution failures degrade to UTC at parse time instead of
	// failing startup, so Validate accepts any non-empty string here.
	cfg := validBase()
	cfg.Ingest.SourceTZ = "Not/AZone"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validBase()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Errorf("error should mention LOG_LEVEL: %v", err)
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"", 9090, ":9090"},
		{"127.0.0.1", 80, "127.0.0.1:80"},
	}

	for _, tt := range tests {
		s := ServerConfig{Host: tt.host, Port: tt.port}
		if got := s.Addr(); got != tt.want {
			t.Errorf("Addr() with host %q port %d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}
