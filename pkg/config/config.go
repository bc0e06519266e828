package config

import "time"

// Config is the root configuration structure for Saturn.
// It contains all configuration sections for the quota ledger, the
// upstream call executor, usage monitoring, alerting, and telemetry.
type Config struct {
	// Limits contains configuration for the quota ledger and the
	// upstream call executor.
	Limits LimitsConfig `yaml:"limits"`

	// Monitor contains configuration for usage recording and retention.
	Monitor MonitorConfig `yaml:"monitor"`

	// Alerting contains configuration for the alert engine and its
	// notification sinks.
	Alerting AlertingConfig `yaml:"alerting"`

	// Server contains configuration for the ops HTTP server.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the ops HTTP server, which
// serves usage stats, health probes, and the metrics endpoint.
type ServerConfig struct {
	// ListenAddress is the address the ops server listens on.
	// Default: "127.0.0.1:8675"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LimitsConfig contains configuration for quota enforcement against the
// upstream advertising API.
type LimitsConfig struct {
	// Tier selects the quota tier enforced per subject. Known tiers:
	// "development" and "standard". The tier determines point ceiling,
	// decay window, block duration, and per-call point costs.
	// Default: "development"
	Tier string `yaml:"tier"`

	// MaxRetries is the maximum number of attempts the executor makes
	// for a single logical upstream call.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// BatchHeadroom is the fraction of the point ceiling a single batch
	// may cost before it is rejected outright. Leaves room for
	// concurrent subjects sharing the same quota bucket.
	// Default: 0.8
	BatchHeadroom float64 `yaml:"batch_headroom"`

	// BackoffCap is the upper bound on the exponential backoff delay
	// between retries of throttled or failed calls.
	// Default: 30s
	BackoffCap time.Duration `yaml:"backoff_cap"`
}

// TierConfig defines the quota parameters for a single deployment tier.
// Tiers are static; they mirror the upstream platform's published
// throttling model.
type TierConfig struct {
	// MaxPoints is the point ceiling before throttling engages.
	MaxPoints float64 `yaml:"max_points"`

	// DecayWindow is the duration over which a full point balance
	// decays to zero when the subject is idle.
	DecayWindow time.Duration `yaml:"decay_window"`

	// BlockDuration is the cooldown enforced once the ceiling is
	// exceeded.
	BlockDuration time.Duration `yaml:"block_duration"`

	// ReadCost is the number of points charged per read call.
	ReadCost float64 `yaml:"read_cost"`

	// WriteCost is the number of points charged per write call.
	// Always greater than ReadCost in known tiers.
	WriteCost float64 `yaml:"write_cost"`
}

// MonitorConfig contains configuration for the usage recorder.
type MonitorConfig struct {
	// MaxRecords is the maximum number of usage records retained in
	// memory. Oldest records are dropped once the cap is exceeded.
	// Default: 1000
	MaxRecords int `yaml:"max_records"`

	// Retention is how long usage records and resolved alerts are kept
	// before cleanup removes them.
	// Default: 1h
	Retention time.Duration `yaml:"retention"`

	// CleanupSchedule is a cron expression for scheduling cleanup.
	// Default: "@every 10m"
	CleanupSchedule string `yaml:"cleanup_schedule"`

	// StatsWindow is the default aggregation window for usage stats.
	// Default: 1h
	StatsWindow time.Duration `yaml:"stats_window"`
}

// AlertingConfig contains configuration for the alert engine and its
// notification sinks.
type AlertingConfig struct {
	// Enabled controls whether alert rules are evaluated at all.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// FlaggedAccountSubstring is the error-message substring that
	// triggers the account-flagged rule. The upstream platform reports
	// account-level restrictions as a generic permission error whose
	// message carries this marker.
	// Default: "business"
	FlaggedAccountSubstring string `yaml:"flagged_account_substring"`

	// Webhook contains configuration for the webhook notification sink.
	Webhook WebhookConfig `yaml:"webhook"`

	// SQLite contains configuration for the durable alert history sink.
	SQLite SQLiteSinkConfig `yaml:"sqlite"`
}

// WebhookConfig contains configuration for the webhook alert sink.
type WebhookConfig struct {
	// Enabled controls whether alerts are posted to the webhook.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// URL is the endpoint alerts are posted to as JSON.
	URL string `yaml:"url"`

	// Timeout is the per-delivery HTTP timeout.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// SQLiteSinkConfig contains configuration for the SQLite alert sink.
type SQLiteSinkConfig struct {
	// Enabled controls whether alerts are appended to the database.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	// Default: "data/alerts.db"
	Path string `yaml:"path"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json" or "text").
	// Default: "text"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "saturn"
	Namespace string `yaml:"namespace"`

	// CallDurationBuckets are the histogram buckets for upstream call
	// duration, in seconds.
	CallDurationBuckets []float64 `yaml:"call_duration_buckets"`
}
