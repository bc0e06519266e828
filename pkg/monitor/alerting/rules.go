package alerting

import (
	"strings"
	"time"

	"meridian-hq/saturn/pkg/monitor"
)

// Upstream error codes with alerting meaning.
const (
	// codeInvalidToken is the upstream's expired-token error code.
	codeInvalidToken = "190"

	// codePermission is the upstream's generic permission error code,
	// whose message text distinguishes account-level restrictions.
	codePermission = "200"
)

// DefaultRules returns the standard rule set. The thresholds define the
// contract other components rely on; deployments may append rules but
// should not weaken these.
//
// flaggedSubstring is the error-message marker for account-level
// restrictions (see config.AlertingConfig.FlaggedAccountSubstring).
func DefaultRules(flaggedSubstring string) []Rule {
	return []Rule{
		{
			Name:     "high_utilization",
			Window:   time.Minute,
			Severity: monitor.SeverityHigh,
			Cooldown: 5 * time.Minute,
			Message:  "quota utilization exceeded 80%",
			Condition: func(window []monitor.UsageRecord) bool {
				for _, rec := range window {
					if rec.UtilizationPercent > 80 {
						return true
					}
				}
				return false
			},
		},
		{
			Name:     "quota_exceeded",
			Window:   time.Minute,
			Severity: monitor.SeverityCritical,
			Cooldown: time.Minute,
			Message:  "quota exceeded - upstream is throttling calls",
			Condition: func(window []monitor.UsageRecord) bool {
				for _, rec := range window {
					if rec.StatusCode == 429 {
						return true
					}
				}
				return false
			},
		},
		{
			Name:     "high_error_rate",
			Window:   5 * time.Minute,
			Severity: monitor.SeverityMedium,
			Cooldown: 10 * time.Minute,
			Message:  "error rate exceeded 20% in the last 5 minutes",
			Condition: func(window []monitor.UsageRecord) bool {
				if len(window) < 5 {
					return false
				}
				errors := 0
				for _, rec := range window {
					if rec.IsError() {
						errors++
					}
				}
				return float64(errors)/float64(len(window)) > 0.2
			},
		},
		{
			Name:     "slow_responses",
			Window:   3 * time.Minute,
			Severity: monitor.SeverityMedium,
			Cooldown: 5 * time.Minute,
			Message:  "average response time exceeded 5 seconds",
			Condition: func(window []monitor.UsageRecord) bool {
				if len(window) < 3 {
					return false
				}
				var total time.Duration
				for _, rec := range window {
					total += rec.ResponseTime
				}
				return total/time.Duration(len(window)) > 5*time.Second
			},
		},
		{
			Name:     "credential_invalid",
			Window:   time.Minute,
			Severity: monitor.SeverityHigh,
			Cooldown: 5 * time.Minute,
			Message:  "upstream access token appears to be expired or invalid",
			Condition: func(window []monitor.UsageRecord) bool {
				for _, rec := range window {
					if rec.StatusCode == 401 || rec.ErrorCode == codeInvalidToken {
						return true
					}
				}
				return false
			},
		},
		{
			Name:     "account_flagged",
			Window:   time.Minute,
			Severity: monitor.SeverityHigh,
			Cooldown: time.Hour,
			Message:  "upstream reports an account-level restriction; verification may be required",
			Condition: func(window []monitor.UsageRecord) bool {
				for _, rec := range window {
					if rec.ErrorCode == codePermission &&
						strings.Contains(strings.ToLower(rec.ErrorMessage), flaggedSubstring) {
						return true
					}
				}
				return false
			},
		},
	}
}
