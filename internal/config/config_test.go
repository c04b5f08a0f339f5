package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected default address, got %s", cfg.Address())
	}
	if cfg.ComplianceMode != ComplianceAllowAll || !cfg.DirectHoldFundsCheck {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.EventsChannel != "ledger:events" || cfg.AuthMaxFailures != 5 || cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("PORT", ":9090")
	t.Setenv("COMPLIANCE_MODE", "WHITELIST")
	t.Setenv("COMPLIANCE_WHITELIST", "alice, bob,,carol")
	t.Setenv("DIRECT_HOLD_FUNDS_CHECK", "false")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "60")
	t.Setenv("AUTH_MAX_FAILURES_PER_MINUTE", "9")
	t.Setenv("DB_MAX_CONNS", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Address())
	}
	if cfg.ComplianceMode != ComplianceWhitelist || len(cfg.ComplianceWhitelist) != 3 || cfg.ComplianceWhitelist[2] != "carol" {
		t.Fatalf("unexpected compliance config %+v", cfg)
	}
	if cfg.DirectHoldFundsCheck {
		t.Fatal("expected direct hold funds check to be disabled")
	}
	if cfg.ShutdownPeriod != 3*time.Second || cfg.IdempotencyTTL != time.Minute {
		t.Fatalf("unexpected durations %v %v", cfg.ShutdownPeriod, cfg.IdempotencyTTL)
	}
	if cfg.AuthMaxFailures != 9 || cfg.DBMaxConns != 25 {
		t.Fatalf("unexpected limits %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"COMPLIANCE_MODE":         "maybe",
		"DIRECT_HOLD_FUNDS_CHECK": "sometimes",
		"SHUTDOWN_TIMEOUT":        "soon",
		"DB_MAX_CONNS":            "-1",
		"IDEMPOTENCY_TTL_SECONDS": "18446744074",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("APP_ENV", "development")
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestLoadRequiresBackendsOutsideDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := Load(); err == nil {
		t.Fatal("expected DATABASE_URL error")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected REDIS_URL error")
	}

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
}
