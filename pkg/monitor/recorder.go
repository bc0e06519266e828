package monitor

import (
	"log/slog"
	"sync"
	"time"
)

// Recorder maintains a bounded, time-ordered log of call outcomes for
// monitoring. Appends are cheap; aggregation walks a snapshot of the
// window on demand.
//
// The buffer is capped globally, not per subject: a single noisy
// subject can displace others' history, which is acceptable because the
// alert engine evaluates on every append, before displacement matters.
//
// Recorder is safe for concurrent use.
type Recorder struct {
	mu      sync.RWMutex
	records []UsageRecord

	// maxRecords caps the buffer; oldest entries drop first.
	maxRecords int

	// retention is how far back Cleanup keeps records.
	retention time.Duration

	// observer, when set, is invoked synchronously after each append.
	// The alert engine registers itself here.
	observer func(UsageRecord)

	// alerts supplies active-alert data for stats aggregation.
	alerts AlertSource

	// now is the clock, injectable for tests.
	now func() time.Time

	logger *slog.Logger
}

// RecorderConfig contains configuration for the Recorder.
type RecorderConfig struct {
	// MaxRecords caps the number of retained records.
	// Default: 1000
	MaxRecords int

	// Retention is how long records are kept before cleanup.
	// Default: 1h
	Retention time.Duration
}

// NewRecorder creates a usage recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.MaxRecords == 0 {
		cfg.MaxRecords = 1000
	}
	if cfg.Retention == 0 {
		cfg.Retention = time.Hour
	}

	return &Recorder{
		records:    make([]UsageRecord, 0, cfg.MaxRecords),
		maxRecords: cfg.MaxRecords,
		retention:  cfg.Retention,
		now:        time.Now,
		logger:     slog.Default().With("component", "monitor.recorder"),
	}
}

// SetClock replaces the recorder's clock. This is for tests.
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}

// SetObserver registers a callback invoked synchronously after each
// append. Used by the composition root to wire the alert engine.
func (r *Recorder) SetObserver(fn func(UsageRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// SetAlertSource wires the alert engine's active set into stats
// aggregation.
func (r *Recorder) SetAlertSource(src AlertSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = src
}

// Record appends a call outcome and notifies the observer. When the
// buffer exceeds its cap, the oldest records are dropped.
func (r *Recorder) Record(rec UsageRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now()
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	if over := len(r.records) - r.maxRecords; over > 0 {
		r.records = append(r.records[:0], r.records[over:]...)
	}
	observer := r.observer
	r.mu.Unlock()

	r.logger.Debug("usage recorded",
		"subject_id", rec.SubjectID,
		"account_id", rec.AccountID,
		"endpoint", rec.Endpoint,
		"status", rec.StatusCode,
		"response_time_ms", rec.ResponseTime.Milliseconds(),
		"utilization_pct", rec.UtilizationPercent,
	)

	// Observer runs outside the lock: the alert engine reads the
	// buffer back through SubjectRecords.
	if observer != nil {
		observer(rec)
	}
}

// snapshot returns a copy of the current buffer.
func (r *Recorder) snapshot() []UsageRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]UsageRecord, len(r.records))
	copy(out, r.records)
	return out
}

// SubjectRecords returns all retained records for a subject, oldest
// first. Used by the alert engine's rule windows.
func (r *Recorder) SubjectRecords(subjectID, accountID string) []UsageRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []UsageRecord
	for _, rec := range r.records {
		if rec.SubjectID == subjectID && (accountID == "" || rec.AccountID == accountID) {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the number of retained records.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Cleanup drops records older than the retention horizon. It snapshots
// then filters, so it is safe to run concurrently with appends; records
// appended during cleanup are never dropped.
func (r *Recorder) Cleanup() int {
	cutoff := r.now().Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.Timestamp.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	dropped := len(r.records) - len(kept)
	r.records = kept

	if dropped > 0 {
		r.logger.Info("usage records cleaned up",
			"dropped", dropped,
			"retained", len(kept),
		)
	}
	return dropped
}
