package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/kpi")
	t.Setenv("KPI_BATCH_CONCURRENCY", "")
	t.Setenv("KPI_OUTBOX_INTERVAL", "not-a-duration")

	cfg := Load()
	if cfg.BatchConcurrency != 8 {
		t.Fatalf("expected default concurrency 8, got %d", cfg.BatchConcurrency)
	}
	if cfg.OutboxInterval != time.Minute {
		t.Fatalf("expected fallback outbox interval, got %s", cfg.OutboxInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{DatabaseURL: "postgres://x", MaxBodyBytes: 4096, RateLimitPerMinute: 10, BatchConcurrency: 2, BatchMaxRows: 10, OutboxMaxAttempts: 3}
	cases := map[string]func(c *Config){
		"missing database":   func(c *Config) { c.DatabaseURL = "" },
		"prod without jwt":   func(c *Config) { c.Environment = "production" },
		"tiny body limit":    func(c *Config) { c.MaxBodyBytes = 10 },
		"zero concurrency":   func(c *Config) { c.BatchConcurrency = 0 },
		"email without smtp": func(c *Config) { c.EmailEnabled = true },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected base config to validate, got %v", err)
	}
}
