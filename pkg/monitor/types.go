package monitor

import (
	"strconv"
	"time"
)

// UsageRecord is the outcome of a single upstream call attempt.
// Records are immutable once appended to the recorder.
type UsageRecord struct {
	// SubjectID is the dashboard user the call was made for.
	SubjectID string `json:"subject_id"`

	// AccountID is the ad account the call targeted.
	AccountID string `json:"account_id"`

	// Endpoint is the logical upstream endpoint.
	Endpoint string `json:"endpoint"`

	// Method is the HTTP method.
	Method string `json:"method"`

	// StatusCode is the HTTP status code of the attempt.
	StatusCode int `json:"status_code"`

	// ResponseTime is how long the attempt took.
	ResponseTime time.Duration `json:"response_time_ns"`

	// PointCost is the quota points charged for the attempt.
	PointCost float64 `json:"point_cost"`

	// UtilizationPercent is the ledger utilization snapshot at call
	// time, 0-100.
	UtilizationPercent float64 `json:"utilization_percent"`

	// Timestamp is when the attempt completed.
	Timestamp time.Time `json:"timestamp"`

	// ErrorCode is the upstream structured error code, if any.
	ErrorCode string `json:"error_code,omitempty"`

	// ErrorMessage is the upstream error message, if any.
	ErrorMessage string `json:"error_message,omitempty"`
}

// IsError reports whether the record represents a failed call.
func (r UsageRecord) IsError() bool {
	return r.StatusCode >= 400
}

// ErrorKey returns the grouping key used for top-error aggregation.
func (r UsageRecord) ErrorKey() string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	return "HTTP " + strconv.Itoa(r.StatusCode)
}

// Severity ranks an alert's urgency.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is a raised alert with the records that triggered it.
type Alert struct {
	// ID is a unique alert identifier.
	ID string `json:"id"`

	// RuleName names the rule that fired.
	RuleName string `json:"rule_name"`

	// Severity is the rule's severity.
	Severity Severity `json:"severity"`

	// Message is the rule's human-readable message.
	Message string `json:"message"`

	// Timestamp is when the alert fired.
	Timestamp time.Time `json:"timestamp"`

	// SubjectID and AccountID identify the affected subject.
	SubjectID string `json:"subject_id"`
	AccountID string `json:"account_id"`

	// Records is a snapshot of the most recent matching usage records
	// at firing time, for diagnostic context.
	Records []UsageRecord `json:"records,omitempty"`

	// Resolved marks the alert as no longer active.
	Resolved bool `json:"resolved"`

	// ResolvedAt is when the alert was resolved (zero if unresolved).
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// UsageStats summarizes one subject's recent call activity.
type UsageStats struct {
	// TotalRequests is the number of records in the window.
	TotalRequests int `json:"total_requests"`

	// ErrorRate is the fraction of records with error status, 0-100.
	ErrorRate float64 `json:"error_rate"`

	// AvgResponseTime is the mean response time across the window.
	AvgResponseTime time.Duration `json:"avg_response_time_ns"`

	// LatestUtilization is the most recent ledger utilization snapshot.
	LatestUtilization float64 `json:"latest_utilization"`

	// RecentErrors holds the last few failed records (at most 5).
	RecentErrors []UsageRecord `json:"recent_errors,omitempty"`

	// ActiveAlerts holds the subject's unresolved alerts.
	ActiveAlerts []Alert `json:"active_alerts,omitempty"`
}

// ErrorCount is one entry in the system-wide top-error ranking.
type ErrorCount struct {
	// Error is the grouping key (upstream message or HTTP status).
	Error string `json:"error"`

	// Count is how many records matched in the window.
	Count int `json:"count"`
}

// SystemStats summarizes call activity across all subjects.
type SystemStats struct {
	// TotalSubjects is the number of distinct subjects in the window.
	TotalSubjects int `json:"total_subjects"`

	// TotalRequests is the number of records in the window.
	TotalRequests int `json:"total_requests"`

	// ErrorRate is the system-wide error fraction, 0-100.
	ErrorRate float64 `json:"error_rate"`

	// AvgResponseTime is the mean response time across the window.
	AvgResponseTime time.Duration `json:"avg_response_time_ns"`

	// TopErrors ranks the most frequent errors (at most 5).
	TopErrors []ErrorCount `json:"top_errors,omitempty"`

	// AlertsBySeverity counts unresolved alerts per severity.
	AlertsBySeverity map[Severity]int `json:"alerts_by_severity"`
}

// AlertSource exposes the alert engine's active set to the recorder's
// stats aggregation without coupling the recorder to rule evaluation.
type AlertSource interface {
	// ActiveAlertsFor returns the subject's unresolved alerts.
	ActiveAlertsFor(subjectID string) []Alert

	// ActiveCountBySeverity counts unresolved alerts per severity.
	ActiveCountBySeverity() map[Severity]int
}
