// ABOUTME: SQLite implementation of registry persistence using modernc.org/sqlite
// ABOUTME: Opens the database with WAL and foreign keys, creates schema on startup

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore provides the client directory, content catalog, and history
// log on a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the registry database at path. Parent
// directories are created as needed and the schema is applied if missing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite store initialized", "path", path)
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS clients (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			maintainer TEXT NOT NULL DEFAULT '',
			email TEXT,
			created_at DATETIME NOT NULL,
			active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS client_keys (
			client_name TEXT NOT NULL,
			cipher TEXT NOT NULL,
			key BLOB NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (client_name, cipher),
			FOREIGN KEY (client_name) REFERENCES clients(name)
		);

		CREATE TABLE IF NOT EXISTS content (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			uploaded DATETIME NOT NULL,
			modified DATETIME NOT NULL,
			category TEXT,
			expiration DATETIME,
			serve_path TEXT NOT NULL UNIQUE,
			aired INTEGER NOT NULL DEFAULT 0,
			alive INTEGER NOT NULL DEFAULT 1
		);

		CREATE INDEX IF NOT EXISTS idx_content_modified
			ON content(modified);

		-- No foreign key on file_id: history outlives the content rows it
		-- describes, including the delete action itself.
		CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			file_id TEXT NOT NULL,
			client_name TEXT NOT NULL,
			action TEXT NOT NULL,
			action_params TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_file
			ON history(file_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// isConstraintViolation reports whether err is a sqlite uniqueness or
// foreign-key constraint failure.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Older rows may carry sqlite's default timestamp layout.
		t, err = time.Parse("2006-01-02 15:04:05", s)
	}
	return t, err
}
