package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected default session TTL of 30m, got %s", cfg.SessionTTL)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("expected default max retries of 2, got %d", cfg.MaxRetries)
	}
	if cfg.ClinicName == "" {
		t.Error("expected a default clinic name")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "10m")
	t.Setenv("MAX_RETRIES", "4")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Port)
	}
	if cfg.SessionTTL != 10*time.Minute {
		t.Errorf("expected session TTL override, got %s", cfg.SessionTTL)
	}
	if cfg.MaxRetries != 4 {
		t.Errorf("expected max retries override, got %d", cfg.MaxRetries)
	}
	if !cfg.RedisTLS {
		t.Error("expected redis TLS override")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_RETRIES", "not-a-number")
	t.Setenv("SESSION_TTL", "soon")

	cfg := Load()

	if cfg.MaxRetries != 2 {
		t.Errorf("malformed int should fall back to default, got %d", cfg.MaxRetries)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("malformed duration should fall back to default, got %s", cfg.SessionTTL)
	}
}
