package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	// Field is the dotted path of the invalid field.
	Field string

	// Message describes what is invalid about the field.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Message)
}

// Validate checks the configuration for invalid or inconsistent values.
// It returns the first validation error encountered, or nil if the
// configuration is valid.
func Validate(cfg *Config) error {
	// Limits
	tier, ok := TierFor(cfg.Limits.Tier)
	if !ok {
		return &ValidationError{
			Field:   "limits.tier",
			Message: fmt.Sprintf("unknown tier %q (known: %s, %s)", cfg.Limits.Tier, TierDevelopment, TierStandard),
		}
	}
	if tier.ReadCost >= tier.WriteCost {
		// All known tiers charge reads cheaper than writes. A tier
		// violating this indicates a broken tier table, not user error.
		return &ValidationError{
			Field:   "limits.tier",
			Message: "tier read cost must be lower than write cost",
		}
	}
	if cfg.Limits.MaxRetries < 1 {
		return &ValidationError{
			Field:   "limits.max_retries",
			Message: "must be at least 1",
		}
	}
	if cfg.Limits.BatchHeadroom <= 0 || cfg.Limits.BatchHeadroom > 1 {
		return &ValidationError{
			Field:   "limits.batch_headroom",
			Message: "must be in (0, 1]",
		}
	}
	if cfg.Limits.BackoffCap <= 0 {
		return &ValidationError{
			Field:   "limits.backoff_cap",
			Message: "must be positive",
		}
	}

	// Monitor
	if cfg.Monitor.MaxRecords < 1 {
		return &ValidationError{
			Field:   "monitor.max_records",
			Message: "must be at least 1",
		}
	}
	if cfg.Monitor.Retention <= 0 {
		return &ValidationError{
			Field:   "monitor.retention",
			Message: "must be positive",
		}
	}
	if _, err := cron.ParseStandard(cfg.Monitor.CleanupSchedule); err != nil {
		return &ValidationError{
			Field:   "monitor.cleanup_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Monitor.CleanupSchedule, err),
		}
	}

	// Alerting
	if cfg.Alerting.Webhook.Enabled {
		if cfg.Alerting.Webhook.URL == "" {
			return &ValidationError{
				Field:   "alerting.webhook.url",
				Message: "required when the webhook sink is enabled",
			}
		}
		if !strings.HasPrefix(cfg.Alerting.Webhook.URL, "http://") &&
			!strings.HasPrefix(cfg.Alerting.Webhook.URL, "https://") {
			return &ValidationError{
				Field:   "alerting.webhook.url",
				Message: "must be an http or https URL",
			}
		}
	}
	if cfg.Alerting.SQLite.Enabled && cfg.Alerting.SQLite.Path == "" {
		return &ValidationError{
			Field:   "alerting.sqlite.path",
			Message: "required when the sqlite sink is enabled",
		}
	}

	// Telemetry
	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Telemetry.Logging.Level),
		}
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q", cfg.Telemetry.Logging.Format),
		}
	}

	return nil
}
