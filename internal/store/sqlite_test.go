// ABOUTME: Shared test helpers for the SQLite store, opening a fresh database
// ABOUTME: per test in a temporary directory

package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateClient(t *testing.T, s *SQLiteStore, name string, active bool) {
	t.Helper()
	err := s.CreateClient(context.Background(), &Client{
		Name:        name,
		Description: "test client",
		Maintainer:  "ops",
		Active:      active,
	})
	if err != nil {
		t.Fatalf("CreateClient(%q) error = %v", name, err)
	}
}

func mustAddContent(t *testing.T, s *SQLiteStore, f *ContentFile) *ContentFile {
	t.Helper()
	if err := s.AddContent(context.Background(), f); err != nil {
		t.Fatalf("AddContent(%q) error = %v", f.ServePath, err)
	}
	return f
}
