package config

import "time"

// Tier names recognized by TierFor.
const (
	// TierDevelopment is the constrained tier applied to unverified
	// deployments. 60 points, long block window.
	TierDevelopment = "development"

	// TierStandard is the production tier. 9000 points, short block
	// window.
	TierStandard = "standard"
)

// tiers maps tier names to their quota parameters. These mirror the
// upstream advertising platform's published throttling model and are
// not configurable per deployment beyond tier selection.
var tiers = map[string]TierConfig{
	TierDevelopment: {
		MaxPoints:     60,
		DecayWindow:   5 * time.Minute,
		BlockDuration: 5 * time.Minute,
		ReadCost:      1,
		WriteCost:     3,
	},
	TierStandard: {
		MaxPoints:     9000,
		DecayWindow:   5 * time.Minute,
		BlockDuration: time.Minute,
		ReadCost:      1,
		WriteCost:     3,
	},
}

// TierFor returns the quota parameters for the named tier.
// The second return value is false if the tier is unknown.
func TierFor(name string) (TierConfig, bool) {
	tier, ok := tiers[name]
	return tier, ok
}

// ApplyDefaults fills in default values for any unset configuration
// fields. It is called automatically by LoadConfig.
func ApplyDefaults(cfg *Config) {
	// Limits defaults
	if cfg.Limits.Tier == "" {
		cfg.Limits.Tier = TierDevelopment
	}
	if cfg.Limits.MaxRetries == 0 {
		cfg.Limits.MaxRetries = 3
	}
	if cfg.Limits.BatchHeadroom == 0 {
		cfg.Limits.BatchHeadroom = 0.8
	}
	if cfg.Limits.BackoffCap == 0 {
		cfg.Limits.BackoffCap = 30 * time.Second
	}

	// Monitor defaults
	if cfg.Monitor.MaxRecords == 0 {
		cfg.Monitor.MaxRecords = 1000
	}
	if cfg.Monitor.Retention == 0 {
		cfg.Monitor.Retention = time.Hour
	}
	if cfg.Monitor.CleanupSchedule == "" {
		cfg.Monitor.CleanupSchedule = "@every 10m"
	}
	if cfg.Monitor.StatsWindow == 0 {
		cfg.Monitor.StatsWindow = time.Hour
	}

	// Alerting defaults
	if cfg.Alerting.FlaggedAccountSubstring == "" {
		cfg.Alerting.FlaggedAccountSubstring = "business"
	}
	if cfg.Alerting.Webhook.Timeout == 0 {
		cfg.Alerting.Webhook.Timeout = 5 * time.Second
	}
	if cfg.Alerting.SQLite.Path == "" {
		cfg.Alerting.SQLite.Path = "data/alerts.db"
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8675"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "text"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "saturn"
	}
	if cfg.Telemetry.Metrics.CallDurationBuckets == nil {
		// Upstream ads API calls routinely take multiple seconds for
		// insights queries, so the buckets skew slow.
		cfg.Telemetry.Metrics.CallDurationBuckets = []float64{
			0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
		}
	}
}

// DefaultConfig returns a configuration populated entirely from
// defaults. Useful for tests and for running without a config file.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Alerting.Enabled = true
	cfg.Telemetry.Metrics.Enabled = true
	return cfg
}
