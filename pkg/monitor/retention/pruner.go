package retention

import (
	"log/slog"
	"time"

	"meridian-hq/saturn/pkg/monitor"
	"meridian-hq/saturn/pkg/monitor/alerting"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// Horizon is how long usage records and resolved alerts are kept.
	// Default: 1h
	Horizon time.Duration

	// Schedule is a cron expression for scheduling cleanup.
	// Default: "@every 10m"
	Schedule string

	// LedgerIdleEviction is how long a subject's quota state may sit
	// idle before eviction. Must be at least the decay window plus the
	// block duration so eviction never changes admission decisions.
	// Zero disables ledger eviction.
	LedgerIdleEviction time.Duration
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		Horizon:  time.Hour,
		Schedule: "@every 10m",
	}
}

// LedgerEvictor drops idle quota state. Implemented by quota.Ledger.
type LedgerEvictor interface {
	Evict(idleFor time.Duration) int
}

// Pruner enforces the retention horizon on the usage recorder, the
// alert engine's resolved alerts, and optionally the quota ledger's
// idle subject state.
type Pruner struct {
	recorder *monitor.Recorder
	engine   *alerting.Engine
	ledger   LedgerEvictor
	config   *Config
	logger   *slog.Logger
}

// NewPruner creates a retention pruner. The engine may be nil when
// alerting is disabled, and the ledger may be nil to skip quota state
// eviction.
func NewPruner(recorder *monitor.Recorder, engine *alerting.Engine, ledger LedgerEvictor, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pruner{
		recorder: recorder,
		engine:   engine,
		ledger:   ledger,
		config:   config,
		logger:   slog.Default().With("component", "monitor.retention"),
	}
}

// Prune runs one cleanup cycle. Safe to run concurrently with normal
// traffic: each store removes only entries strictly older than the
// horizon using snapshot-then-filter.
func (p *Pruner) Prune() {
	droppedRecords := p.recorder.Cleanup()

	reapedAlerts := 0
	if p.engine != nil {
		reapedAlerts = p.engine.Reap(p.config.Horizon)
	}

	evicted := 0
	if p.ledger != nil && p.config.LedgerIdleEviction > 0 {
		evicted = p.ledger.Evict(p.config.LedgerIdleEviction)
	}

	p.logger.Info("cleanup completed",
		"dropped_records", droppedRecords,
		"reaped_alerts", reapedAlerts,
		"evicted_subjects", evicted,
	)
}
