// Package metrics provides Prometheus metrics collection for the
// governance layer.
//
// # Overview
//
// One Collector serves every instrumented component: the call executor
// reports admission decisions, call outcomes, durations, retries, and
// per-subject quota utilization, and the alert engine reports raised
// alerts. All metrics live in a single registry so the /metrics
// endpoint exposes the whole system in one scrape.
//
// # Metrics
//
//   - saturn_admissions_total: Admission decisions by the quota ledger
//   - saturn_upstream_calls_total: Upstream call attempts by outcome
//   - saturn_upstream_call_duration_seconds: Call duration histogram
//   - saturn_upstream_retries_total: Scheduled retries
//   - saturn_quota_utilization_percent: Latest utilization per subject
//   - saturn_alerts_total: Alerts raised by rule and severity
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	executor := upstream.NewExecutor(ledger, recorder, collector, upstream.Config{})
//
//	http.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// The utilization gauge carries a per-subject label. A cardinality
// limiter caps the number of distinct subjects; overflow subjects are
// aggregated into the "other" label to keep the registry bounded.
package metrics
