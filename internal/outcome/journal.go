package outcome

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record kinds as stored in the journal.
const (
	KindDefer  = "defer"
	KindBounce = "bounce"
	KindSent   = "sent"
)

// Journal is a SQLite-backed Recorder. Every defer, bounce and sent record
// is one row; completions live in their own table so the surrounding queue
// manager can reconcile which offsets are done.
type Journal struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// StoredRecord is a journal row as returned by List.
type StoredRecord struct {
	ID         int64
	Kind       string
	Record     Record
	RecordedAt time.Time
}

// OpenJournal opens (and if necessary creates) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	j := &Journal{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "outcome-journal", "path", path),
	}

	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return j, nil
}

func (j *Journal) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS outcome_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			trace_flags INTEGER NOT NULL DEFAULT 0,
			queue_id TEXT NOT NULL,
			original_addr TEXT NOT NULL,
			effective_addr TEXT NOT NULL,
			offset INTEGER NOT NULL,
			host TEXT NOT NULL,
			arrival_time TIMESTAMP,
			reason TEXT,
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcome_queue_id ON outcome_records(queue_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outcome_kind ON outcome_records(kind)`,
		`CREATE TABLE IF NOT EXISTS completions (
			queue_id TEXT NOT NULL,
			offset INTEGER NOT NULL,
			completed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (queue_id, offset)
		)`,
	}

	for _, stmt := range schema {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize journal schema: %w", err)
		}
	}
	return nil
}

func (j *Journal) insert(kind string, rec Record) int {
	_, err := j.db.Exec(
		`INSERT INTO outcome_records
			(kind, trace_flags, queue_id, original_addr, effective_addr, offset, host, arrival_time, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		kind, rec.TraceFlags, rec.QueueID, rec.OriginalAddr, rec.EffectiveAddr,
		rec.Offset, rec.Host, rec.ArrivalTime, rec.Reason,
	)
	if err != nil {
		j.logger.Error("Failed to persist outcome record",
			"kind", kind,
			"queue_id", rec.QueueID,
			"recipient", rec.EffectiveAddr,
			"error", err)
		return StatusWriteError
	}
	return StatusOK
}

// Defer implements Recorder.
func (j *Journal) Defer(rec Record) int { return j.insert(KindDefer, rec) }

// Bounce implements Recorder.
func (j *Journal) Bounce(rec Record) int { return j.insert(KindBounce, rec) }

// Sent implements Recorder.
func (j *Journal) Sent(rec Record) int { return j.insert(KindSent, rec) }

// Completed implements Recorder. A failure here is logged but not surfaced;
// the outcome record itself is already durable and reconciliation treats a
// missing completion as harmless.
func (j *Journal) Completed(queueID string, offset int64) {
	_, err := j.db.Exec(
		`INSERT OR IGNORE INTO completions (queue_id, offset) VALUES (?, ?)`,
		queueID, offset,
	)
	if err != nil {
		j.logger.Error("Failed to record completion",
			"queue_id", queueID,
			"offset", offset,
			"error", err)
	}
}

// List returns the most recent journal rows, newest first, optionally
// filtered by kind ("" matches all kinds).
func (j *Journal) List(kind string, limit int) ([]StoredRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, kind, trace_flags, queue_id, original_addr, effective_addr,
			offset, host, arrival_time, reason, recorded_at
		FROM outcome_records`
	args := []interface{}{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		var sr StoredRecord
		if err := rows.Scan(&sr.ID, &sr.Kind, &sr.Record.TraceFlags, &sr.Record.QueueID,
			&sr.Record.OriginalAddr, &sr.Record.EffectiveAddr, &sr.Record.Offset,
			&sr.Record.Host, &sr.Record.ArrivalTime, &sr.Record.Reason, &sr.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		records = append(records, sr)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
