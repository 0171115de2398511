package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// LedgerEntry is one recorded post outcome
type LedgerEntry struct {
	RunID      string
	URL        string
	Title      string
	Date       string
	Filename   string
	Status     ProcessingStatus
	Error      string
	RecordedAt time.Time
}

// Ledger remembers which posts earlier runs migrated
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the SQLite ledger at path
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring ledger: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) ensureSchema() error {
	_, err := l.db.Exec(`
CREATE TABLE IF NOT EXISTS migrations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    url TEXT NOT NULL,
    title TEXT NOT NULL,
    date TEXT NOT NULL,
    filename TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS migrations_url ON migrations (url);
`)
	return err
}

// Record stores the outcome of one post
func (l *Ledger) Record(ctx context.Context, runID string, result PostResult) error {
	errText := ""
	if result.Error != nil {
		errText = result.Error.Error()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO migrations (run_id, url, title, date, filename, status, error, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, result.Post.URL, result.Post.Title, result.Post.Date, result.Filename,
		string(result.Status), errText, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording %s: %w", result.Post.URL, err)
	}
	return nil
}

// Migrated reports whether url was staged successfully by any earlier run
func (l *Ledger) Migrated(ctx context.Context, url string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM migrations WHERE url = ? AND status = ?`, url, string(StatusSuccess)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up %s: %w", url, err)
	}
	return n > 0, nil
}

// Recent returns the latest entries, newest first
func (l *Ledger) Recent(ctx context.Context, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, url, title, date, filename, status, error, recorded_at FROM migrations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var status, recordedAt string
		if err := rows.Scan(&e.RunID, &e.URL, &e.Title, &e.Date, &e.Filename, &status, &e.Error, &recordedAt); err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		e.Status = ProcessingStatus(status)
		if t, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			e.RecordedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
