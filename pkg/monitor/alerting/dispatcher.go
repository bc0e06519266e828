package alerting

import (
	"context"
	"log/slog"
	"time"

	"meridian-hq/saturn/pkg/monitor"
)

// Sink receives raised alerts. Implementations must be safe for
// concurrent use; delivery failures are the sink's to report via the
// returned error and never reach the recording path.
type Sink interface {
	// Deliver sends one alert. The context carries the dispatch
	// timeout.
	Deliver(ctx context.Context, alert monitor.Alert) error

	// Name identifies the sink in logs.
	Name() string
}

// Dispatcher fans a raised alert out to all configured sinks.
// Delivery is best-effort: a failing sink is logged and skipped, and
// sinks are independent of each other.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(sinks []Sink, timeout time.Duration) *Dispatcher {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		logger:  slog.Default().With("component", "alerting.dispatcher"),
	}
}

// Dispatch delivers the alert to every sink. Errors are logged, never
// returned: the caller is the alert engine inside the recording path.
func (d *Dispatcher) Dispatch(alert monitor.Alert) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := sink.Deliver(ctx, alert)
		cancel()

		if err != nil {
			d.logger.Error("alert delivery failed",
				"sink", sink.Name(),
				"alert_id", alert.ID,
				"rule", alert.RuleName,
				"error", err,
			)
		}
	}
}

// LogSink writes alerts to the structured log. Always available; the
// fallback sink when nothing else is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink.
func NewLogSink() *LogSink {
	return &LogSink{logger: slog.Default().With("component", "alerting.sink.log")}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Deliver implements Sink.
func (s *LogSink) Deliver(_ context.Context, alert monitor.Alert) error {
	s.logger.Warn("alert notification",
		"alert_id", alert.ID,
		"rule", alert.RuleName,
		"severity", alert.Severity,
		"message", alert.Message,
		"subject_id", alert.SubjectID,
		"account_id", alert.AccountID,
	)
	return nil
}
