package monitor

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fixedClock returns a clock function pinned to testBase plus an offset
// the test can advance.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: testBase}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubAlertSource feeds canned alerts into stats aggregation.
type stubAlertSource struct {
	alerts []Alert
}

func (s *stubAlertSource) ActiveAlertsFor(subjectID string) []Alert {
	var out []Alert
	for _, a := range s.alerts {
		if a.SubjectID == subjectID {
			out = append(out, a)
		}
	}
	return out
}

func (s *stubAlertSource) ActiveCountBySeverity() map[Severity]int {
	counts := map[Severity]int{}
	for _, a := range s.alerts {
		counts[a.Severity]++
	}
	return counts
}

func record(subjectID, accountID string, statusCode int, opts ...func(*UsageRecord)) UsageRecord {
	rec := UsageRecord{
		SubjectID:          subjectID,
		AccountID:          accountID,
		Endpoint:           "/act_1/insights",
		Method:             "GET",
		StatusCode:         statusCode,
		ResponseTime:       100 * time.Millisecond,
		PointCost:          1,
		UtilizationPercent: 10,
		Timestamp:          testBase,
	}
	for _, opt := range opts {
		opt(&rec)
	}
	return rec
}

// ==========================================================================
// Recorder
// ==========================================================================

func TestRecorder_AppendAndLen(t *testing.T) {
	r := NewRecorder(RecorderConfig{})

	if r.Len() != 0 {
		t.Errorf("new recorder Len() = %d, want 0", r.Len())
	}
	r.Record(record("user-1", "act-1", 200))
	r.Record(record("user-1", "act-1", 200))
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRecorder_FillsZeroTimestamp(t *testing.T) {
	clock := newFixedClock()
	r := NewRecorder(RecorderConfig{})
	r.SetClock(clock.Now)

	rec := record("user-1", "act-1", 200)
	rec.Timestamp = time.Time{}
	r.Record(rec)

	got := r.SubjectRecords("user-1", "act-1")
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if !got[0].Timestamp.Equal(testBase) {
		t.Errorf("timestamp = %v, want clock time %v", got[0].Timestamp, testBase)
	}
}

func TestRecorder_CapDropsOldest(t *testing.T) {
	r := NewRecorder(RecorderConfig{MaxRecords: 3})

	for i, endpoint := range []string{"/a", "/b", "/c", "/d", "/e"} {
		rec := record("user-1", "act-1", 200)
		rec.Endpoint = endpoint
		rec.Timestamp = testBase.Add(time.Duration(i) * time.Second)
		r.Record(rec)
	}

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	got := r.SubjectRecords("user-1", "act-1")
	want := []string{"/c", "/d", "/e"}
	for i, endpoint := range want {
		if got[i].Endpoint != endpoint {
			t.Errorf("records[%d].Endpoint = %s, want %s", i, got[i].Endpoint, endpoint)
		}
	}
}

func TestRecorder_SubjectRecordsFiltering(t *testing.T) {
	r := NewRecorder(RecorderConfig{})
	r.Record(record("user-1", "act-1", 200))
	r.Record(record("user-1", "act-2", 200))
	r.Record(record("user-2", "act-1", 200))

	if got := r.SubjectRecords("user-1", "act-1"); len(got) != 1 {
		t.Errorf("user-1/act-1: got %d records, want 1", len(got))
	}
	// Empty account matches all of the subject's accounts.
	if got := r.SubjectRecords("user-1", ""); len(got) != 2 {
		t.Errorf("user-1/any: got %d records, want 2", len(got))
	}
	if got := r.SubjectRecords("user-3", ""); len(got) != 0 {
		t.Errorf("unknown subject: got %d records, want 0", len(got))
	}
}

func TestRecorder_ObserverInvoked(t *testing.T) {
	r := NewRecorder(RecorderConfig{})

	var seen []UsageRecord
	r.SetObserver(func(rec UsageRecord) {
		seen = append(seen, rec)
	})

	r.Record(record("user-1", "act-1", 200))
	r.Record(record("user-1", "act-1", 429))

	if len(seen) != 2 {
		t.Fatalf("observer saw %d records, want 2", len(seen))
	}
	if seen[1].StatusCode != 429 {
		t.Errorf("observer record status = %d, want 429", seen[1].StatusCode)
	}
}

func TestRecorder_ObserverCanReadBuffer(t *testing.T) {
	r := NewRecorder(RecorderConfig{})

	// The alert engine reads SubjectRecords from inside the observer;
	// this must not deadlock and must include the record just appended.
	var winLen int
	r.SetObserver(func(rec UsageRecord) {
		winLen = len(r.SubjectRecords(rec.SubjectID, rec.AccountID))
	})

	r.Record(record("user-1", "act-1", 200))
	if winLen != 1 {
		t.Errorf("observer saw window of %d, want 1", winLen)
	}
}

func TestRecorder_Cleanup(t *testing.T) {
	clock := newFixedClock()
	r := NewRecorder(RecorderConfig{Retention: 30 * time.Minute})
	r.SetClock(clock.Now)

	old := record("user-1", "act-1", 200)
	old.Timestamp = testBase.Add(-time.Hour)
	r.Record(old)
	r.Record(record("user-1", "act-1", 200))

	dropped := r.Cleanup()
	if dropped != 1 {
		t.Errorf("Cleanup() = %d, want 1", dropped)
	}
	if r.Len() != 1 {
		t.Errorf("Len() after cleanup = %d, want 1", r.Len())
	}

	// A second pass finds nothing new to drop.
	if dropped := r.Cleanup(); dropped != 0 {
		t.Errorf("second Cleanup() = %d, want 0", dropped)
	}
}

// ==========================================================================
// Subject stats
// ==========================================================================

func TestStatsFor(t *testing.T) {
	clock := newFixedClock()
	r := NewRecorder(RecorderConfig{})
	r.SetClock(clock.Now)
	clock.Advance(time.Minute)

	r.Record(record("user-1", "act-1", 200, func(rec *UsageRecord) {
		rec.ResponseTime = 100 * time.Millisecond
	}))
	r.Record(record("user-1", "act-1", 200, func(rec *UsageRecord) {
		rec.ResponseTime = 200 * time.Millisecond
	}))
	r.Record(record("user-1", "act-1", 500, func(rec *UsageRecord) {
		rec.ResponseTime = 300 * time.Millisecond
		rec.ErrorMessage = "server error"
	}))
	r.Record(record("user-1", "act-1", 429, func(rec *UsageRecord) {
		rec.ResponseTime = 40 * time.Millisecond
		rec.UtilizationPercent = 95
		rec.ErrorMessage = "rate limited"
	}))

	stats := r.StatsFor("user-1", "act-1", time.Hour)
	if stats.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", stats.TotalRequests)
	}
	if stats.ErrorRate != 50 {
		t.Errorf("ErrorRate = %f, want 50", stats.ErrorRate)
	}
	if stats.AvgResponseTime != 160*time.Millisecond {
		t.Errorf("AvgResponseTime = %v, want 160ms", stats.AvgResponseTime)
	}
	if stats.LatestUtilization != 95 {
		t.Errorf("LatestUtilization = %f, want 95", stats.LatestUtilization)
	}
	if len(stats.RecentErrors) != 2 {
		t.Fatalf("RecentErrors len = %d, want 2", len(stats.RecentErrors))
	}
	if stats.RecentErrors[1].ErrorMessage != "rate limited" {
		t.Errorf("last recent error = %q, want rate limited", stats.RecentErrors[1].ErrorMessage)
	}
}

func TestStatsFor_EmptyWindow(t *testing.T) {
	r := NewRecorder(RecorderConfig{})

	stats := r.StatsFor("user-1", "act-1", time.Hour)
	if stats.TotalRequests != 0 || stats.ErrorRate != 0 || stats.AvgResponseTime != 0 {
		t.Errorf("empty window stats = %+v, want zeros", stats)
	}
}

func TestStatsFor_WindowCutoff(t *testing.T) {
	clock := newFixedClock()
	r := NewRecorder(RecorderConfig{})
	r.SetClock(clock.Now)

	old := record("user-1", "act-1", 200)
	old.Timestamp = testBase.Add(-2 * time.Hour)
	r.Record(old)
	r.Record(record("user-1", "act-1", 200))

	stats := r.StatsFor("user-1", "act-1", time.Hour)
	if stats.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1 (old record outside window)", stats.TotalRequests)
	}
}

func TestStatsFor_RecentErrorsCapped(t *testing.T) {
	clock := newFixedClock()
	r := NewRecorder(RecorderConfig{})
	r.SetClock(clock.Now)

	for i := 0; i < 8; i++ {
		rec := record("user-1", "act-1", 500)
		rec.ErrorMessage = "error " + strconv.Itoa(i)
		r.Record(rec)
	}

	stats := r.StatsFor("user-1", "act-1", time.Hour)
	if len(stats.RecentErrors) != 5 {
		t.Fatalf("RecentErrors len = %d, want 5", len(stats.RecentErrors))
	}
	// The last five, oldest first.
	if stats.RecentErrors[0].ErrorMessage != "error 3" {
		t.Errorf("first recent error = %q, want error 3", stats.RecentErrors[0].ErrorMessage)
	}
	if stats.RecentErrors[4].ErrorMessage != "error 7" {
		t.Errorf("last recent error = %q, want error 7", stats.RecentErrors[4].ErrorMessage)
	}
}

func TestStatsFor_IncludesActiveAlerts(t *testing.T) {
	clock := newFixedClock()
	r := NewRecorder(RecorderConfig{})
	r.SetClock(clock.Now)
	r.SetAlertSource(&stubAlertSource{alerts: []Alert{
		{ID: "a1", RuleName: "quota_exceeded", Severity: SeverityHigh, SubjectID: "user-1"},
		{ID: "a2", RuleName: "high_error_rate", Severity: SeverityMedium, SubjectID: "user-2"},
	}})
	r.Record(record("user-1", "act-1", 200))

	stats := r.StatsFor("user-1", "act-1", time.Hour)
	if len(stats.ActiveAlerts) != 1 {
		t.Fatalf("ActiveAlerts len = %d, want 1", len(stats.ActiveAlerts))
	}
	if stats.ActiveAlerts[0].ID != "a1" {
		t.Errorf("alert ID = %s, want a1", stats.ActiveAlerts[0].ID)
	}
}

// ==========================================================================
// System stats
// ==========================================================================

func TestSystemStats(t *testing.T) {
	clock := newFixedClock()
	r := NewRecorder(RecorderConfig{})
	r.SetClock(clock.Now)

	r.Record(record("user-1", "act-1", 200))
	r.Record(record("user-2", "act-2", 200))
	r.Record(record("user-2", "act-2", 500, func(rec *UsageRecord) {
		rec.ErrorMessage = "server error"
	}))
	r.Record(record("user-3", "act-3", 429, func(rec *UsageRecord) {
		rec.ErrorMessage = "rate limited"
	}))

	stats := r.SystemStats(time.Hour)
	if stats.TotalSubjects != 3 {
		t.Errorf("TotalSubjects = %d, want 3", stats.TotalSubjects)
	}
	if stats.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", stats.TotalRequests)
	}
	if stats.ErrorRate != 50 {
		t.Errorf("ErrorRate = %f, want 50", stats.ErrorRate)
	}
	if len(stats.TopErrors) != 2 {
		t.Errorf("TopErrors len = %d, want 2", len(stats.TopErrors))
	}
}

func TestSystemStats_TopErrorsRanking(t *testing.T) {
	clock := newFixedClock()
	r := NewRecorder(RecorderConfig{})
	r.SetClock(clock.Now)

	add := func(msg string, n int) {
		for i := 0; i < n; i++ {
			r.Record(record("user-1", "act-1", 500, func(rec *UsageRecord) {
				rec.ErrorMessage = msg
			}))
		}
	}
	add("zeta", 2)
	add("alpha", 2)
	add("common", 5)
	add("rare-a", 1)
	add("rare-b", 1)
	add("rare-c", 1)

	stats := r.SystemStats(time.Hour)
	if len(stats.TopErrors) != 5 {
		t.Fatalf("TopErrors len = %d, want 5 (capped)", len(stats.TopErrors))
	}
	if stats.TopErrors[0].Error != "common" || stats.TopErrors[0].Count != 5 {
		t.Errorf("TopErrors[0] = %+v, want common/5", stats.TopErrors[0])
	}
	// Ties break alphabetically.
	if stats.TopErrors[1].Error != "alpha" || stats.TopErrors[2].Error != "zeta" {
		t.Errorf("tie order = %s, %s; want alpha, zeta",
			stats.TopErrors[1].Error, stats.TopErrors[2].Error)
	}
}

func TestSystemStats_FallsBackToHTTPStatusKey(t *testing.T) {
	clock := newFixedClock()
	r := NewRecorder(RecorderConfig{})
	r.SetClock(clock.Now)
	r.Record(record("user-1", "act-1", 503))

	stats := r.SystemStats(time.Hour)
	if len(stats.TopErrors) != 1 || stats.TopErrors[0].Error != "HTTP 503" {
		t.Errorf("TopErrors = %+v, want one entry keyed HTTP 503", stats.TopErrors)
	}
}

func TestSystemStats_AlertsBySeverity(t *testing.T) {
	r := NewRecorder(RecorderConfig{})
	r.SetAlertSource(&stubAlertSource{alerts: []Alert{
		{ID: "a1", Severity: SeverityHigh, SubjectID: "user-1"},
		{ID: "a2", Severity: SeverityHigh, SubjectID: "user-2"},
		{ID: "a3", Severity: SeverityCritical, SubjectID: "user-3"},
	}})

	stats := r.SystemStats(time.Hour)
	if stats.AlertsBySeverity[SeverityHigh] != 2 {
		t.Errorf("high count = %d, want 2", stats.AlertsBySeverity[SeverityHigh])
	}
	if stats.AlertsBySeverity[SeverityCritical] != 1 {
		t.Errorf("critical count = %d, want 1", stats.AlertsBySeverity[SeverityCritical])
	}
}
