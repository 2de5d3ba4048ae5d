// Package storage persists generated file history and tool audit entries in
// SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileRecord is one generated or converted file.
type FileRecord struct {
	ID        int64
	Platform  string
	SenderID  string
	Kind      string // word, excel, powerpoint, pdf, text...
	Path      string
	SizeBytes int64
	Source    string // generate, convert_to_pdf, convert_from_pdf
	CreatedAt time.Time
}

// AuditEntry records one tool invocation.
type AuditEntry struct {
	ID        int64
	Action    string
	ToolName  string
	SenderID  string
	Result    string
	Details   string
	CreatedAt time.Time
}

// SQLiteStore backs file history and the audit log with a single SQLite
// database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		platform    TEXT NOT NULL,
		sender_id   TEXT NOT NULL,
		kind        TEXT NOT NULL,
		path        TEXT NOT NULL,
		size_bytes  INTEGER DEFAULT 0,
		source      TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_files_sender ON files(platform, sender_id, created_at);

	CREATE TABLE IF NOT EXISTS audit_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		action      TEXT NOT NULL,
		tool_name   TEXT,
		sender_id   TEXT,
		result      TEXT,
		details     TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordFile saves a generated file entry and returns its id.
func (s *SQLiteStore) RecordFile(ctx context.Context, rec FileRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files (platform, sender_id, kind, path, size_bytes, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Platform, rec.SenderID, rec.Kind, rec.Path, rec.SizeBytes, rec.Source, rec.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentFiles returns the latest files for one sender, newest first.
func (s *SQLiteStore) RecentFiles(ctx context.Context, platform, senderID string, limit int) ([]FileRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, sender_id, kind, path, size_bytes, source, created_at
		 FROM files WHERE platform = ? AND sender_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		platform, senderID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []FileRecord
	for rows.Next() {
		var r FileRecord
		var source sql.NullString
		if err := rows.Scan(&r.ID, &r.Platform, &r.SenderID, &r.Kind, &r.Path,
			&r.SizeBytes, &source, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Source = source.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// LogAudit records one tool invocation.
func (s *SQLiteStore) LogAudit(ctx context.Context, entry AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, tool_name, sender_id, result, details)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Action, entry.ToolName, entry.SenderID, entry.Result, entry.Details,
	)
	return err
}

// RecentAudit returns the latest audit entries, newest first.
func (s *SQLiteStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, tool_name, sender_id, result, details, created_at
		 FROM audit_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var toolName, senderID, result, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &toolName, &senderID, &result, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ToolName = toolName.String
		e.SenderID = senderID.String
		e.Result = result.String
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
