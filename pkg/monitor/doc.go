// Package monitor maintains a bounded in-memory log of upstream call
// outcomes and aggregates it into per-subject and system-wide usage
// statistics.
//
// The recorder is the data source for the alert engine (see the
// alerting subpackage), which subscribes through SetObserver and reads
// rule windows back through SubjectRecords. Retention is enforced by
// periodic cleanup (see the retention subpackage), not on every append.
package monitor
