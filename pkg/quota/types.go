package quota

import "time"

// Subject identifies the owner of a quota bucket. The upstream platform
// tracks throttling per user per ad account, so both parts are required.
type Subject struct {
	// UserID is the dashboard user on whose behalf calls are made.
	UserID string

	// AccountID is the ad account the calls target.
	AccountID string
}

// Key returns the canonical map key for the subject.
func (s Subject) Key() string {
	return s.UserID + ":" + s.AccountID
}

// AdmitResult contains the outcome of an admission check.
type AdmitResult struct {
	// Allowed indicates if the call is permitted right now.
	Allowed bool

	// Wait suggests how long to wait before retrying (if Allowed=false).
	Wait time.Duration

	// CurrentPoints is the decayed point balance at check time.
	CurrentPoints float64

	// Reason explains why the call was denied (if Allowed=false).
	Reason string
}

// Status is a read-only snapshot of a subject's quota state, derived
// from the same decay formula as admission checks.
type Status struct {
	// CurrentPoints is the decayed point balance.
	CurrentPoints float64 `json:"current_points"`

	// MaxPoints is the tier's point ceiling.
	MaxPoints float64 `json:"max_points"`

	// UtilizationPercent is CurrentPoints relative to MaxPoints, 0-100.
	UtilizationPercent float64 `json:"utilization_percent"`

	// IsBlocked indicates the subject is inside a block window.
	IsBlocked bool `json:"is_blocked"`

	// BlockedFor is the remaining block window duration (0 if not blocked).
	BlockedFor time.Duration `json:"blocked_for_ns"`

	// CanRead indicates a read call would be admitted right now.
	CanRead bool `json:"can_read"`

	// CanWrite indicates a write call would be admitted right now.
	CanWrite bool `json:"can_write"`
}

// ThrottleInfo is the upstream platform's own view of the caller's
// quota usage, parsed from its throttle response header.
type ThrottleInfo struct {
	// AppUtilizationPercent is app-level quota utilization, 0-100.
	AppUtilizationPercent float64 `json:"app_id_util_pct"`

	// AccountUtilizationPercent is ad-account-level utilization, 0-100.
	AccountUtilizationPercent float64 `json:"acc_id_util_pct"`

	// EstimatedSecondsToRegainAccess is the upstream's estimate of how
	// long until calls are accepted again. Zero when not throttled.
	EstimatedSecondsToRegainAccess float64 `json:"estimated_time_to_regain_access"`
}

// Throttled reports whether the upstream considers the caller blocked.
func (t ThrottleInfo) Throttled() bool {
	return t.EstimatedSecondsToRegainAccess > 0
}
