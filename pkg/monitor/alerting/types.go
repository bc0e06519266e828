package alerting

import (
	"time"

	"meridian-hq/saturn/pkg/monitor"
)

// Rule is one alert rule: a predicate over a subject's recent usage
// window. Rules are static configuration and are not mutated at
// runtime.
type Rule struct {
	// Name identifies the rule and keys its cooldown.
	Name string

	// Window is how far back the predicate looks.
	Window time.Duration

	// Condition evaluates the subject's records already filtered to
	// the rule window. It must be a pure function.
	Condition func(window []monitor.UsageRecord) bool

	// Severity ranks alerts raised by this rule.
	Severity monitor.Severity

	// Cooldown is the minimum interval between two firings of this
	// rule for the same subject.
	Cooldown time.Duration

	// Message is the human-readable alert message.
	Message string
}

// RecordSource supplies a subject's retained usage records for rule
// evaluation. Implemented by monitor.Recorder.
type RecordSource interface {
	SubjectRecords(subjectID, accountID string) []monitor.UsageRecord
}

// Metrics receives alert engine observations. A nil Metrics disables
// collection.
type Metrics interface {
	ObserveAlert(rule string, severity string)
}
