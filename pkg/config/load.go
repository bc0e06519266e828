package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns
// any errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	// Boolean fields default to enabled; YAML only overrides keys that
	// are present.
	cfg := Config{}
	cfg.Alerting.Enabled = true
	cfg.Telemetry.Metrics.Enabled = true

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow
// the naming convention SATURN_SECTION_FIELD (e.g. SATURN_LIMITS_TIER)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format
// SATURN_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Limits overrides
	if val := os.Getenv("SATURN_LIMITS_TIER"); val != "" {
		cfg.Limits.Tier = val
	}
	if val := os.Getenv("SATURN_LIMITS_MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Limits.MaxRetries = i
		}
	}
	if val := os.Getenv("SATURN_LIMITS_BATCH_HEADROOM"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Limits.BatchHeadroom = f
		}
	}
	if val := os.Getenv("SATURN_LIMITS_BACKOFF_CAP"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Limits.BackoffCap = d
		}
	}

	// Monitor overrides
	if val := os.Getenv("SATURN_MONITOR_MAX_RECORDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Monitor.MaxRecords = i
		}
	}
	if val := os.Getenv("SATURN_MONITOR_RETENTION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Monitor.Retention = d
		}
	}
	if val := os.Getenv("SATURN_MONITOR_CLEANUP_SCHEDULE"); val != "" {
		cfg.Monitor.CleanupSchedule = val
	}

	// Alerting overrides
	if val := os.Getenv("SATURN_ALERTING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Alerting.Enabled = b
		}
	}
	if val := os.Getenv("SATURN_ALERTING_WEBHOOK_URL"); val != "" {
		cfg.Alerting.Webhook.URL = val
		cfg.Alerting.Webhook.Enabled = true
	}
	if val := os.Getenv("SATURN_ALERTING_SQLITE_PATH"); val != "" {
		cfg.Alerting.SQLite.Path = val
	}

	// Telemetry overrides
	if val := os.Getenv("SATURN_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("SATURN_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	// Server overrides
	if val := os.Getenv("SATURN_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
}
