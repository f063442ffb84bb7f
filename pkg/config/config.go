package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Security struct {
	EnableRateLimiting   bool `json:"enableRateLimiting"`
	MaxRequestsPerMinute int  `json:"maxRequestsPerMinute"`
	BlockSuspiciousIPs   bool `json:"blockSuspiciousIPs"`
	EnableCSRF           bool `json:"enableCSRF"`
}

type Logging struct {
	LogToFile        bool   `json:"logToFile"`
	LogLevel         string `json:"logLevel"`
	AutoCleanup      bool   `json:"autoCleanup"`
	CleanupAfterDays int    `json:"cleanupAfterDays"`
}

type Features struct {
	EnableAPI        bool `json:"enableAPI"`
	EnableExport     bool `json:"enableExport"`
	EnableStatistics bool `json:"enableStatistics"`
	RealTimeUpdates  bool `json:"realTimeUpdates"`
}

// Config is read-only after startup; handlers receive it by value.
type Config struct {
	Security Security `json:"security"`
	Logging  Logging  `json:"logging"`
	Features Features `json:"features"`
}

func Default() Config {
	return Config{
		Security: Security{
			EnableRateLimiting:   true,
			MaxRequestsPerMinute: 10,
			BlockSuspiciousIPs:   true,
			EnableCSRF:           true,
		},
		Logging: Logging{
			LogToFile:        false,
			LogLevel:         "detailed",
			AutoCleanup:      true,
			CleanupAfterDays: 30,
		},
		Features: Features{
			EnableAPI:        true,
			EnableExport:     true,
			EnableStatistics: true,
			RealTimeUpdates:  false,
		},
	}
}

// Load reads the configuration file at path. Any failure (missing file,
// unreadable file, invalid JSON) falls back to Default; startup never aborts
// on configuration problems.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Security.MaxRequestsPerMinute <= 0 {
		cfg.Security.MaxRequestsPerMinute = Default().Security.MaxRequestsPerMinute
	}
	if cfg.Logging.CleanupAfterDays <= 0 {
		cfg.Logging.CleanupAfterDays = Default().Logging.CleanupAfterDays
	}
	return cfg, nil
}

// ValidateProduction rejects configurations that disable the protective
// checks in production-like environments.
func ValidateProduction(environment string, cfg Config) error {
	if !isProductionLikeEnv(environment) {
		return nil
	}
	if !cfg.Security.EnableCSRF {
		return fmt.Errorf("formgate: strict production hardening requires security.enableCSRF=true")
	}
	if !cfg.Security.EnableRateLimiting {
		return fmt.Errorf("formgate: strict production hardening requires security.enableRateLimiting=true")
	}
	if cfg.Logging.AutoCleanup && cfg.Logging.CleanupAfterDays <= 0 {
		return fmt.Errorf("formgate: strict production hardening requires a positive logging.cleanupAfterDays")
	}
	return nil
}

func isProductionLikeEnv(raw string) bool {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "prod", "production", "staging", "stage":
		return true
	default:
		return false
	}
}
