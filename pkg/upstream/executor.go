package upstream

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	"meridian-hq/saturn/pkg/monitor"
	"meridian-hq/saturn/pkg/quota"
)

// Response is the upstream call result the executor inspects. It
// carries only call metadata; the executor is agnostic to payload
// content.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Header contains the response headers, including any throttle
	// feedback header.
	Header http.Header

	// Body is the raw response body. For non-2xx responses the
	// executor parses it for the structured error envelope.
	Body []byte
}

// Call performs one upstream call attempt. The executor invokes it
// only after the quota ledger admits the attempt.
type Call func(ctx context.Context) (*Response, error)

// Request describes one logical upstream call for quota accounting and
// usage recording.
type Request struct {
	// Subject is the quota subject making the call.
	Subject quota.Subject

	// Endpoint is the logical upstream endpoint (for usage records).
	Endpoint string

	// Method is the HTTP method (for usage records).
	Method string

	// IsWrite selects the write point cost instead of the read cost.
	IsWrite bool
}

// Reporter receives the outcome of every call attempt. Implemented by
// the usage recorder; the executor reports all outcomes, including
// retried ones, so the alert engine sees true call volume.
type Reporter interface {
	Record(rec monitor.UsageRecord)
}

// Metrics receives executor observations. Implemented by the telemetry
// collector; a nil Metrics disables collection.
type Metrics interface {
	ObserveAdmission(allowed bool)
	ObserveCall(outcome string, duration time.Duration)
	ObserveUtilization(subject string, percent float64)
	ObserveRetry()
}

// Config contains configuration for the Executor.
type Config struct {
	// MaxRetries bounds the attempts for one logical call.
	// Default: 3
	MaxRetries int

	// BackoffCap bounds the exponential backoff delay.
	// Default: 30s
	BackoffCap time.Duration

	// BatchHeadroom is the fraction of the point ceiling a single
	// batch may cost.
	// Default: 0.8
	BatchHeadroom float64
}

// Executor performs logical upstream calls under quota control with
// bounded retries.
//
// Before each attempt it consults the ledger; denied attempts wait the
// suggested duration and retry. Admitted attempts are charged
// optimistically before the network call, then classified from the
// response: throttles back off and retry, credential failures and
// business errors surface immediately, transport failures back off and
// retry. Every attempt's outcome is reported to the usage recorder.
//
// The executor enforces an attempt count, not a wall-clock deadline;
// callers needing an overall deadline wrap the context.
type Executor struct {
	ledger   *quota.Ledger
	reporter Reporter
	metrics  Metrics
	config   Config
	logger   *slog.Logger

	// sleep waits for a duration, honoring context cancellation.
	// Injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor over the given ledger. The reporter
// may not be nil; metrics may be nil to disable collection.
func NewExecutor(ledger *quota.Ledger, reporter Reporter, metrics Metrics, cfg Config) *Executor {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffCap == 0 {
		cfg.BackoffCap = 30 * time.Second
	}
	if cfg.BatchHeadroom == 0 {
		cfg.BatchHeadroom = 0.8
	}

	return &Executor{
		ledger:   ledger,
		reporter: reporter,
		metrics:  metrics,
		config:   cfg,
		logger:   slog.Default().With("component", "upstream.executor"),
		sleep:    sleepCtx,
	}
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff returns the exponential backoff delay for an attempt index.
func (e *Executor) backoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if d > e.config.BackoffCap {
		d = e.config.BackoffCap
	}
	return d
}

// Execute performs one logical upstream call under quota control.
//
// It returns the response on success or on a business error (business
// errors pass through unmodified and are never retried). It returns a
// typed error when retries are exhausted (QuotaExceededError,
// ThrottledError, TransientError), a CredentialError immediately on
// authentication failure, or the context error on cancellation.
func (e *Executor) Execute(ctx context.Context, req Request, call Call) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 && e.metrics != nil {
			e.metrics.ObserveRetry()
		}

		admit := e.ledger.Admit(req.Subject, req.IsWrite)
		if e.metrics != nil {
			e.metrics.ObserveAdmission(admit.Allowed)
		}
		if !admit.Allowed {
			e.logger.Debug("admission denied, waiting",
				"subject", req.Subject.Key(),
				"wait", admit.Wait,
				"reason", admit.Reason,
			)
			lastErr = &QuotaExceededError{
				Subject:    req.Subject.Key(),
				RetryAfter: admit.Wait,
				Reason:     admit.Reason,
			}
			if err := e.sleep(ctx, admit.Wait); err != nil {
				return nil, err
			}
			continue
		}

		// Optimistic accounting: the quota models attempted call rate,
		// so points are charged whether or not the call succeeds.
		e.ledger.Record(req.Subject, req.IsWrite)

		start := time.Now()
		resp, err := call(ctx)
		elapsed := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			e.report(req, http.StatusInternalServerError, elapsed, "", err.Error())
			e.observe("transport_error", elapsed, req.Subject)
			lastErr = err

			e.logger.Warn("call failed, will retry",
				"subject", req.Subject.Key(),
				"endpoint", req.Endpoint,
				"attempt", attempt+1,
				"error", err,
			)
			if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		// Upstream truth about our quota usage overrides local estimates.
		if info, ok := ParseThrottleHeader(resp.Header); ok {
			e.ledger.ApplyThrottleFeedback(req.Subject, info)
		}

		var errorCode, errorMessage string
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errorCode, errorMessage = ParseErrorBody(resp.Body)
		}
		kind := Classify(resp.StatusCode, errorCode, resp.Header)

		e.report(req, resp.StatusCode, elapsed, errorCode, errorMessage)
		e.observe(kind.String(), elapsed, req.Subject)

		switch kind {
		case KindSuccess:
			return resp, nil

		case KindThrottled:
			backoff := e.backoff(attempt)
			lastErr = &ThrottledError{
				Subject:    req.Subject.Key(),
				ErrorCode:  errorCode,
				RetryAfter: backoff,
			}
			e.logger.Warn("upstream throttled call, backing off",
				"subject", req.Subject.Key(),
				"endpoint", req.Endpoint,
				"error_code", errorCode,
				"backoff", backoff,
			)
			if err := e.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			continue

		case KindCredentialInvalid:
			return nil, &CredentialError{
				Subject:   req.Subject.Key(),
				ErrorCode: errorCode,
				Message:   errorMessage,
			}

		default:
			// Business error: the response goes back to the caller
			// unmodified. Retrying would repeat the same failure and
			// burn quota.
			return resp, nil
		}
	}

	// Retries exhausted. Surface the last denial, throttle, or
	// transport failure as a typed error.
	switch err := lastErr.(type) {
	case *QuotaExceededError, *ThrottledError:
		return nil, lastErr
	default:
		return nil, &TransientError{
			Subject:  req.Subject.Key(),
			Attempts: e.config.MaxRetries,
			Cause:    err,
		}
	}
}

// report sends a usage record for one attempt to the recorder.
func (e *Executor) report(req Request, statusCode int, elapsed time.Duration, errorCode, errorMessage string) {
	if e.reporter == nil {
		return
	}

	status := e.ledger.Status(req.Subject)
	cost := e.ledger.Tier().ReadCost
	if req.IsWrite {
		cost = e.ledger.Tier().WriteCost
	}
	e.reporter.Record(monitor.UsageRecord{
		SubjectID:          req.Subject.UserID,
		AccountID:          req.Subject.AccountID,
		Endpoint:           req.Endpoint,
		Method:             req.Method,
		StatusCode:         statusCode,
		ResponseTime:       elapsed,
		PointCost:          cost,
		UtilizationPercent: status.UtilizationPercent,
		Timestamp:          time.Now(),
		ErrorCode:          errorCode,
		ErrorMessage:       errorMessage,
	})
}

// observe records executor metrics for one attempt.
func (e *Executor) observe(outcome string, elapsed time.Duration, subject quota.Subject) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveCall(outcome, elapsed)
	e.metrics.ObserveUtilization(subject.Key(), e.ledger.Status(subject).UtilizationPercent)
}
