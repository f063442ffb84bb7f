package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if cfg != Default() {
		t.Fatalf("expected default config on load failure, got %+v", cfg)
	}
}

func TestLoadInvalidJSONFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if cfg != Default() {
		t.Fatalf("expected default config on parse failure, got %+v", cfg)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"security":{"enableRateLimiting":false,"maxRequestsPerMinute":25,"blockSuspiciousIPs":true,"enableCSRF":true},"features":{"enableExport":false}}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Security.EnableRateLimiting {
		t.Fatal("expected rate limiting disabled")
	}
	if cfg.Security.MaxRequestsPerMinute != 25 {
		t.Fatalf("expected limit 25, got %d", cfg.Security.MaxRequestsPerMinute)
	}
	if cfg.Features.EnableExport {
		t.Fatal("expected export disabled")
	}
	if cfg.Logging.CleanupAfterDays != 30 {
		t.Fatalf("expected default cleanupAfterDays, got %d", cfg.Logging.CleanupAfterDays)
	}
}

func TestLoadClampsNonPositiveValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"security":{"maxRequestsPerMinute":-3},"logging":{"cleanupAfterDays":0}}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Security.MaxRequestsPerMinute != 10 {
		t.Fatalf("expected clamp to default limit, got %d", cfg.Security.MaxRequestsPerMinute)
	}
	if cfg.Logging.CleanupAfterDays != 30 {
		t.Fatalf("expected clamp to default retention, got %d", cfg.Logging.CleanupAfterDays)
	}
}

func TestValidateProduction(t *testing.T) {
	cfg := Default()
	if err := ValidateProduction("development", cfg); err != nil {
		t.Fatalf("dev environment should not be validated: %v", err)
	}
	if err := ValidateProduction("production", cfg); err != nil {
		t.Fatalf("default config should pass production validation: %v", err)
	}
	cfg.Security.EnableCSRF = false
	if err := ValidateProduction("production", cfg); err == nil {
		t.Fatal("expected error with CSRF disabled in production")
	}
	cfg = Default()
	cfg.Security.EnableRateLimiting = false
	if err := ValidateProduction("staging", cfg); err == nil {
		t.Fatal("expected error with rate limiting disabled in staging")
	}
}
