package alerting

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian-hq/saturn/pkg/monitor"
)

// snapshotSize is how many recent matching records an alert carries for
// diagnostic context.
const snapshotSize = 10

// Engine evaluates alert rules after every recorded call outcome and
// raises deduplicated alerts.
//
// Deduplication is per rule per subject: a compound cooldown key of
// {rule, subject, account} tracks the last firing, and a rule inside
// its cooldown is skipped before evaluation. This bounds both alert
// volume and evaluation cost.
//
// Engine implements monitor.AlertSource. It is safe for concurrent use.
type Engine struct {
	rules      []Rule
	source     RecordSource
	dispatcher *Dispatcher
	metrics    Metrics

	mu sync.Mutex

	// cooldowns maps "rule:subject:account" to the last firing time.
	cooldowns map[string]time.Time

	// active holds alerts by ID until resolved and reaped.
	active map[string]*monitor.Alert

	// now is the clock, injectable for tests.
	now func() time.Time

	logger *slog.Logger
}

// NewEngine creates an alert engine over the given record source.
// The dispatcher and metrics may be nil.
func NewEngine(rules []Rule, source RecordSource, dispatcher *Dispatcher, metrics Metrics) *Engine {
	return &Engine{
		rules:      rules,
		source:     source,
		dispatcher: dispatcher,
		metrics:    metrics,
		cooldowns:  make(map[string]time.Time),
		active:     make(map[string]*monitor.Alert),
		now:        time.Now,
		logger:     slog.Default().With("component", "alerting.engine"),
	}
}

// SetClock replaces the engine's clock. This is for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// HandleRecord evaluates all rules against the subject's recent window.
// It is registered as the recorder's observer and must never fail the
// recording path: dispatch errors stay inside the dispatcher, and rule
// predicates are pure.
func (e *Engine) HandleRecord(rec monitor.UsageRecord) {
	now := e.now()

	// Fetch the subject's records once; each rule filters to its own
	// window.
	subjectRecords := e.source.SubjectRecords(rec.SubjectID, rec.AccountID)

	for i := range e.rules {
		rule := &e.rules[i]
		key := rule.Name + ":" + rec.SubjectID + ":" + rec.AccountID

		// Check, evaluate, and arm the cooldown under one lock so two
		// concurrent evaluations cannot both pass the check and
		// double-fire. Predicates are pure and cheap.
		e.mu.Lock()
		last, seen := e.cooldowns[key]
		if seen && now.Sub(last) < rule.Cooldown {
			e.mu.Unlock()
			continue
		}
		window := filterWindow(subjectRecords, now, rule.Window)
		if !rule.Condition(window) {
			e.mu.Unlock()
			continue
		}
		e.cooldowns[key] = now
		e.mu.Unlock()

		e.fire(rule, rec, window)
	}
}

// fire creates, stores, and dispatches an alert for a rule.
func (e *Engine) fire(rule *Rule, rec monitor.UsageRecord, window []monitor.UsageRecord) {
	snapshot := window
	if len(snapshot) > snapshotSize {
		snapshot = snapshot[len(snapshot)-snapshotSize:]
	}
	records := make([]monitor.UsageRecord, len(snapshot))
	copy(records, snapshot)

	alert := &monitor.Alert{
		ID:        uuid.New().String(),
		RuleName:  rule.Name,
		Severity:  rule.Severity,
		Message:   rule.Message,
		Timestamp: e.now(),
		SubjectID: rec.SubjectID,
		AccountID: rec.AccountID,
		Records:   records,
	}

	e.mu.Lock()
	e.active[alert.ID] = alert
	e.mu.Unlock()

	e.logger.Warn("alert raised",
		"alert_id", alert.ID,
		"rule", alert.RuleName,
		"severity", alert.Severity,
		"subject_id", alert.SubjectID,
		"account_id", alert.AccountID,
		"records", len(alert.Records),
	)

	if e.metrics != nil {
		e.metrics.ObserveAlert(rule.Name, string(rule.Severity))
	}
	if e.dispatcher != nil {
		e.dispatcher.Dispatch(*alert)
	}
}

// filterWindow returns the records newer than now-window, oldest first.
func filterWindow(records []monitor.UsageRecord, now time.Time, window time.Duration) []monitor.UsageRecord {
	cutoff := now.Add(-window)
	var out []monitor.UsageRecord
	for _, rec := range records {
		if rec.Timestamp.After(cutoff) {
			out = append(out, rec)
		}
	}
	return out
}

// Resolve marks an alert resolved. It returns false when the alert is
// unknown. Resolving does not reset the rule's cooldown.
func (e *Engine) Resolve(alertID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.active[alertID]
	if !ok || alert.Resolved {
		return false
	}
	alert.Resolved = true
	alert.ResolvedAt = e.now()

	e.logger.Info("alert resolved", "alert_id", alertID, "rule", alert.RuleName)
	return true
}

// Reap removes resolved alerts older than the horizon. Unresolved
// alerts are kept regardless of age.
func (e *Engine) Reap(olderThan time.Duration) int {
	cutoff := e.now().Add(-olderThan)

	e.mu.Lock()
	defer e.mu.Unlock()

	reaped := 0
	for id, alert := range e.active {
		if alert.Resolved && alert.ResolvedAt.Before(cutoff) {
			delete(e.active, id)
			reaped++
		}
	}
	if reaped > 0 {
		e.logger.Info("resolved alerts reaped", "reaped", reaped, "active", len(e.active))
	}
	return reaped
}

// ActiveAlertsFor implements monitor.AlertSource.
func (e *Engine) ActiveAlertsFor(subjectID string) []monitor.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []monitor.Alert
	for _, alert := range e.active {
		if alert.SubjectID == subjectID && !alert.Resolved {
			out = append(out, *alert)
		}
	}
	return out
}

// ActiveCountBySeverity implements monitor.AlertSource.
func (e *Engine) ActiveCountBySeverity() map[monitor.Severity]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[monitor.Severity]int)
	for _, alert := range e.active {
		if !alert.Resolved {
			out[alert.Severity]++
		}
	}
	return out
}
