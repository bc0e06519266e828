package alerting

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"meridian-hq/saturn/pkg/monitor"
)

// SQLiteSink appends alerts to a SQLite database for durable history.
// The sink is append-only; alert retrieval for dashboards is out of
// scope here.
//
// SQLiteSink uses a write-ahead log for better concurrent performance.
type SQLiteSink struct {
	db         *sql.DB
	insertStmt *sql.Stmt
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS alerts (
	id               TEXT PRIMARY KEY,
	rule             TEXT NOT NULL,
	severity         TEXT NOT NULL,
	message          TEXT NOT NULL,
	subject_id       TEXT NOT NULL,
	account_id       TEXT NOT NULL,
	records_snapshot TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_subject ON alerts(subject_id, created_at);
`

// NewSQLiteSink opens (creating if needed) the alert history database.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert database %q: %w", dbPath, err)
	}

	// Single writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create alert schema: %w", err)
	}

	insertStmt, err := db.Prepare(`
		INSERT INTO alerts (id, rule, severity, message, subject_id, account_id, records_snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	return &SQLiteSink{db: db, insertStmt: insertStmt}, nil
}

// Name implements Sink.
func (s *SQLiteSink) Name() string { return "sqlite" }

// Deliver implements Sink.
func (s *SQLiteSink) Deliver(ctx context.Context, alert monitor.Alert) error {
	snapshot, err := json.Marshal(alert.Records)
	if err != nil {
		return fmt.Errorf("failed to marshal record snapshot: %w", err)
	}

	_, err = s.insertStmt.ExecContext(ctx,
		alert.ID,
		alert.RuleName,
		string(alert.Severity),
		alert.Message,
		alert.SubjectID,
		alert.AccountID,
		string(snapshot),
		alert.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert %q: %w", alert.ID, err)
	}
	return nil
}

// Count returns the number of stored alerts. Used by tests and the
// status command.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	if s.insertStmt != nil {
		s.insertStmt.Close()
	}
	return s.db.Close()
}
