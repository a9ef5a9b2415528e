package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"xquisito-tap/internal/pricing"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("MIGRATION_DELAY_MS", "")
	cfg := FromEnv()
	if cfg.DBConnString != "" {
		t.Fatalf("expected empty dsn, got %q", cfg.DBConnString)
	}
	if cfg.MigrationDelay != 300*time.Millisecond {
		t.Fatalf("expected 300ms delay, got %v", cfg.MigrationDelay)
	}
	if cfg.RestaurantTZ != "America/Mexico_City" {
		t.Fatalf("unexpected tz %q", cfg.RestaurantTZ)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MIGRATION_DELAY_MS", "50")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "3")
	cfg := FromEnv()
	if cfg.MigrationDelay != 50*time.Millisecond {
		t.Fatalf("expected 50ms, got %v", cfg.MigrationDelay)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.BackendTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", cfg.BackendTimeout)
	}
}

func TestLoadOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tap.yaml")
	body := `
backend_url: https://api.example/api
migration_delay: 1s
pricing:
  minimum_amount: 50
  rates:
    iva: 0.16
    client_rate: 0.03
    restaurant_rate: 0.03
  msi:
    other:
      - months: 3
        rate: 4
        minimum_amount: 100
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackendURL != "https://api.example/api" || cfg.MigrationDelay != time.Second {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	if cfg.Pricing.Calculator().Minimum() != 50 {
		t.Fatalf("expected minimum 50")
	}
	s := cfg.Pricing.Schedule()
	if len(s.Other) != 1 || s.Other[0].Rate != 4 {
		t.Fatalf("expected custom other table, got %+v", s.Other)
	}
	if len(s.Amex) != len(pricing.DefaultSchedule.Amex) {
		t.Fatalf("expected default amex table")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
