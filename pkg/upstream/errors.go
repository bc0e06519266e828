package upstream

import (
	"fmt"
	"time"
)

// QuotaExceededError is returned when the local ledger denies admission
// and retries are exhausted. Recoverable by waiting RetryAfter.
type QuotaExceededError struct {
	// Subject is the quota subject that was denied.
	Subject string

	// RetryAfter is the ledger's wait suggestion from the last denial.
	RetryAfter time.Duration

	// Reason is the ledger's denial reason.
	Reason string
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for subject %q (retry after %s): %s",
		e.Subject, e.RetryAfter, e.Reason)
}

// ThrottledError is returned when the upstream platform explicitly
// rate-limited the call and retries are exhausted. Distinguished from
// generic failures so repeated throttles are not counted like business
// errors.
type ThrottledError struct {
	// Subject is the quota subject that was throttled.
	Subject string

	// ErrorCode is the upstream error code that signaled the throttle.
	ErrorCode string

	// RetryAfter is the upstream's estimate, if it provided one.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream throttled subject %q (code %s, retry after %s)",
			e.Subject, e.ErrorCode, e.RetryAfter)
	}
	return fmt.Sprintf("upstream throttled subject %q (code %s)", e.Subject, e.ErrorCode)
}

// CredentialError is returned when the upstream rejects the caller's
// credential. Never retried; the caller must re-authorize the subject.
type CredentialError struct {
	// Subject is the quota subject whose credential was rejected.
	Subject string

	// ErrorCode is the upstream error code (e.g. expired token).
	ErrorCode string

	// Message is the upstream error message.
	Message string
}

// Error implements the error interface.
func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential rejected for subject %q (code %s): %s",
		e.Subject, e.ErrorCode, e.Message)
}

// TransientError is returned when a call failed at the transport level
// (connection reset, timeout) and retries are exhausted.
type TransientError struct {
	// Subject is the quota subject the call was made for.
	Subject string

	// Attempts is the number of attempts made before giving up.
	Attempts int

	// Cause is the last transport error.
	Cause error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("call for subject %q failed after %d attempts: %v",
		e.Subject, e.Attempts, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransientError) Unwrap() error {
	return e.Cause
}

// BatchTooLargeError is returned when a batch's total point cost
// exceeds the configured headroom fraction of the point ceiling.
type BatchTooLargeError struct {
	// TotalCost is the batch's total point cost.
	TotalCost float64

	// Budget is the maximum cost a single batch may carry.
	Budget float64
}

// Error implements the error interface.
func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("batch cost %.0f points exceeds budget %.0f; split into smaller batches",
		e.TotalCost, e.Budget)
}
