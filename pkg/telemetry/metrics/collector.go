package metrics

import (
	"sync"
	"time"

	"meridian-hq/saturn/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector manages all Prometheus metrics for the governance layer.
// It implements the metrics interfaces consumed by the executor
// (admissions, calls, retries, utilization) and the alert engine
// (alerts), so one collector serves both.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Admission decisions made by the quota ledger.
	admissionsTotal *prometheus.CounterVec

	// Completed upstream call attempts by outcome.
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec

	// Retries scheduled after throttled or transport-failed attempts.
	retriesTotal prometheus.Counter

	// Latest quota utilization per subject, percent of ceiling.
	utilization *prometheus.GaugeVec

	// Alerts raised by rule and severity.
	alertsTotal *prometheus.CounterVec

	// Cardinality tracking for the per-subject utilization gauge.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// private registry is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "saturn"
	}
	if len(cfg.CallDurationBuckets) == 0 {
		// Ads API calls range from fast metadata reads to slow
		// insights queries.
		cfg.CallDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		admissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "admissions_total",
				Help:      "Total admission decisions made by the quota ledger",
			},
			[]string{"decision"},
		),

		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_calls_total",
				Help:      "Total upstream call attempts by outcome",
			},
			[]string{"outcome"},
		),

		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_call_duration_seconds",
				Help:      "Duration of upstream call attempts in seconds",
				Buckets:   cfg.CallDurationBuckets,
			},
			[]string{"outcome"},
		),

		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_retries_total",
				Help:      "Total retries scheduled after failed upstream attempts",
			},
		),

		utilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "quota_utilization_percent",
				Help:      "Latest quota utilization per subject as percent of the ceiling",
			},
			[]string{"subject"},
		),

		alertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "alerts_total",
				Help:      "Total alerts raised by rule and severity",
			},
			[]string{"rule", "severity"},
		),

		cardinalityLimiter: NewCardinalityLimiter(10000),
	}

	registry.MustRegister(
		c.admissionsTotal,
		c.callsTotal,
		c.callDuration,
		c.retriesTotal,
		c.utilization,
		c.alertsTotal,
	)

	return c
}

// ObserveAdmission records an admission decision.
func (c *Collector) ObserveAdmission(allowed bool) {
	if !c.config.Enabled {
		return
	}

	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	c.admissionsTotal.WithLabelValues(decision).Inc()
}

// ObserveCall records a completed upstream call attempt. Outcome is one
// of "success", "throttled", "credential", "business", or "transport".
func (c *Collector) ObserveCall(outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.callsTotal.WithLabelValues(outcome).Inc()
	c.callDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveUtilization records a subject's latest quota utilization.
// Subjects beyond the cardinality limit are aggregated into "other".
func (c *Collector) ObserveUtilization(subject string, percent float64) {
	if !c.config.Enabled {
		return
	}

	if !c.cardinalityLimiter.Allow("utilization:" + subject) {
		subject = "other"
	}
	c.utilization.WithLabelValues(subject).Set(percent)
}

// ObserveRetry records a scheduled retry.
func (c *Collector) ObserveRetry() {
	if !c.config.Enabled {
		return
	}

	c.retriesTotal.Inc()
}

// ObserveAlert records a raised alert.
func (c *Collector) ObserveAlert(rule string, severity string) {
	if !c.config.Enabled {
		return
	}

	c.alertsTotal.WithLabelValues(rule, severity).Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a cardinality limiter with the
// specified maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if the cardinality limit has not been reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
