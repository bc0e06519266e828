package monitor

import (
	"sort"
	"time"
)

// StatsFor aggregates one subject's records within the window (default
// one hour when window <= 0). Pure aggregation over a snapshot; never
// mutates the buffer.
func (r *Recorder) StatsFor(subjectID, accountID string, window time.Duration) UsageStats {
	if window <= 0 {
		window = time.Hour
	}
	cutoff := r.now().Add(-window)

	var (
		recent       []UsageRecord
		errors       int
		totalLatency time.Duration
	)
	for _, rec := range r.snapshot() {
		if rec.SubjectID != subjectID {
			continue
		}
		if accountID != "" && rec.AccountID != accountID {
			continue
		}
		if !rec.Timestamp.After(cutoff) {
			continue
		}
		recent = append(recent, rec)
		totalLatency += rec.ResponseTime
		if rec.IsError() {
			errors++
		}
	}

	stats := UsageStats{TotalRequests: len(recent)}
	if len(recent) > 0 {
		stats.ErrorRate = float64(errors) / float64(len(recent)) * 100
		stats.AvgResponseTime = totalLatency / time.Duration(len(recent))
		stats.LatestUtilization = recent[len(recent)-1].UtilizationPercent
	}

	// Last 5 errors, oldest first.
	for _, rec := range recent {
		if rec.IsError() {
			stats.RecentErrors = append(stats.RecentErrors, rec)
		}
	}
	if len(stats.RecentErrors) > 5 {
		stats.RecentErrors = stats.RecentErrors[len(stats.RecentErrors)-5:]
	}

	r.mu.RLock()
	alerts := r.alerts
	r.mu.RUnlock()
	if alerts != nil {
		stats.ActiveAlerts = alerts.ActiveAlertsFor(subjectID)
	}

	return stats
}

// SystemStats aggregates all records within the window (default one
// hour when window <= 0) across subjects.
func (r *Recorder) SystemStats(window time.Duration) SystemStats {
	if window <= 0 {
		window = time.Hour
	}
	cutoff := r.now().Add(-window)

	var (
		total        int
		errors       int
		totalLatency time.Duration
		subjects     = make(map[string]struct{})
		errorCounts  = make(map[string]int)
	)
	for _, rec := range r.snapshot() {
		if !rec.Timestamp.After(cutoff) {
			continue
		}
		total++
		totalLatency += rec.ResponseTime
		subjects[rec.SubjectID] = struct{}{}
		if rec.IsError() {
			errors++
			errorCounts[rec.ErrorKey()]++
		}
	}

	stats := SystemStats{
		TotalSubjects:    len(subjects),
		TotalRequests:    total,
		AlertsBySeverity: map[Severity]int{},
	}
	if total > 0 {
		stats.ErrorRate = float64(errors) / float64(total) * 100
		stats.AvgResponseTime = totalLatency / time.Duration(total)
	}

	// Top 5 errors by frequency; ties break alphabetically so output
	// is stable.
	for key, count := range errorCounts {
		stats.TopErrors = append(stats.TopErrors, ErrorCount{Error: key, Count: count})
	}
	sort.Slice(stats.TopErrors, func(i, j int) bool {
		if stats.TopErrors[i].Count != stats.TopErrors[j].Count {
			return stats.TopErrors[i].Count > stats.TopErrors[j].Count
		}
		return stats.TopErrors[i].Error < stats.TopErrors[j].Error
	})
	if len(stats.TopErrors) > 5 {
		stats.TopErrors = stats.TopErrors[:5]
	}

	r.mu.RLock()
	alerts := r.alerts
	r.mu.RUnlock()
	if alerts != nil {
		stats.AlertsBySeverity = alerts.ActiveCountBySeverity()
	}

	return stats
}
