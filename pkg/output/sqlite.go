package output

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"garc/pkg/gab"

	_ "modernc.org/sqlite"
)

// SQLiteWriter archives records into a SQLite database, one row per record id
type SQLiteWriter struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// NewSQLiteWriter opens (or creates) the archive at path
func NewSQLiteWriter(path, runID string) (*SQLiteWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteWriter{db: db, runID: runID, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			created_at TEXT,
			account TEXT,
			text TEXT,
			raw TEXT NOT NULL,
			run_id TEXT,
			archived_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_account ON records(account)`,
		`CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Write upserts rec by id
func (w *SQLiteWriter) Write(rec *gab.Record) error {
	if w == nil || w.db == nil {
		return errors.New("archive is not open")
	}
	if rec.ID == "" {
		return errors.New("record without id cannot be archived")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	var created sql.NullString
	if !rec.CreatedAt.IsZero() {
		created = sql.NullString{String: rec.CreatedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err = w.db.Exec(`INSERT INTO records (id, created_at, account, text, raw, run_id, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			account = excluded.account,
			text = excluded.text,
			raw = excluded.raw,
			run_id = excluded.run_id,
			archived_at = excluded.archived_at`,
		rec.ID, created, rec.Account, rec.Text, string(raw), w.runID, w.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert record %s: %w", rec.ID, err)
	}
	return nil
}

// Count returns the number of archived records
func (w *SQLiteWriter) Count() (int, error) {
	var n int
	err := w.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

func (w *SQLiteWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
