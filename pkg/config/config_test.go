package config

import (
	"testing"
	"time"

	"github.com/platinummonkey/pulse/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PULSE_POSTGRES_URL", "postgres://localhost/pulse_test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %s", cfg.Server.Port)
	}
	if cfg.Ingestion.DaysBack != 2 {
		t.Errorf("default days back = %d", cfg.Ingestion.DaysBack)
	}
	if cfg.Ingestion.Schedule != "0 * * * *" {
		t.Errorf("default ingestion schedule = %q, want hourly", cfg.Ingestion.Schedule)
	}
	if cfg.Ingestion.ProviderURL != "http://localhost:9000" {
		t.Errorf("default provider URL = %q", cfg.Ingestion.ProviderURL)
	}
	if len(cfg.Ingestion.DataTypes) != 0 {
		t.Errorf("data types should default to empty (built-in set), got %v", cfg.Ingestion.DataTypes)
	}
	if cfg.Worker.Workers != 2 {
		t.Errorf("default workers = %d", cfg.Worker.Workers)
	}
	if cfg.Worker.LeaseTimeout != 15*time.Minute {
		t.Errorf("default lease timeout = %v", cfg.Worker.LeaseTimeout)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("default log level = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PULSE_POSTGRES_URL", "postgres://localhost/pulse_test")
	t.Setenv("PULSE_INGEST_DATA_TYPES", "hrv, steps ,sleep")
	t.Setenv("PULSE_INGEST_CONCURRENCY", "8")
	t.Setenv("PULSE_WORKER_POLL_INTERVAL", "250ms")
	t.Setenv("PULSE_LOG_LEVEL", "debug")
	t.Setenv("PULSE_CACHE_ENABLED", "false")
	t.Setenv("PULSE_PROVIDER_URL", "https://wearables.example.com")
	t.Setenv("PULSE_PROVIDER_TOKEN", "tok-123")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := []string{"hrv", "steps", "sleep"}
	if len(cfg.Ingestion.DataTypes) != len(want) {
		t.Fatalf("data types = %v", cfg.Ingestion.DataTypes)
	}
	for i, dt := range want {
		if cfg.Ingestion.DataTypes[i] != dt {
			t.Errorf("data type %d = %q, want %q", i, cfg.Ingestion.DataTypes[i], dt)
		}
	}
	if cfg.Ingestion.Concurrency != 8 {
		t.Errorf("concurrency = %d", cfg.Ingestion.Concurrency)
	}
	if cfg.Worker.PollInterval != 250*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.Worker.PollInterval)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("log level = %v", cfg.Observability.LogLevel)
	}
	if cfg.Storage.CacheEnabled {
		t.Error("cache should be disabled")
	}
	if cfg.Ingestion.ProviderURL != "https://wearables.example.com" {
		t.Errorf("provider URL = %q", cfg.Ingestion.ProviderURL)
	}
	if cfg.Ingestion.ProviderToken != "tok-123" {
		t.Errorf("provider token = %q", cfg.Ingestion.ProviderToken)
	}
}

func TestValidateRejectsEmptyProviderURL(t *testing.T) {
	t.Setenv("PULSE_POSTGRES_URL", "postgres://localhost/pulse_test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg.Ingestion.ProviderURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate should reject an empty provider URL")
	}
}

func TestValidateRejectsMissingPostgres(t *testing.T) {
	t.Setenv("PULSE_POSTGRES_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should fail without a postgres URL")
	}
}

func TestValidateRejectsBadLease(t *testing.T) {
	t.Setenv("PULSE_POSTGRES_URL", "postgres://localhost/pulse_test")
	t.Setenv("PULSE_JOB_TIMEOUT", "10m")
	t.Setenv("PULSE_JOB_LEASE_TIMEOUT", "5m")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should reject a lease timeout shorter than the job timeout")
	}
}

func TestValidateRejectsEqualPorts(t *testing.T) {
	t.Setenv("PULSE_POSTGRES_URL", "postgres://localhost/pulse_test")
	t.Setenv("PULSE_PORT", "9090")
	t.Setenv("PULSE_HEALTH_PORT", "9090")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should reject identical server and health ports")
	}
}
