// Package store provides persistent storage for the registry using SQLite.
//
// A single SQLiteStore carries the client directory (clients and their
// per-cipher symmetric keys), the content catalog, and the append-only
// history of client actions. The database is opened with WAL mode and
// foreign keys enabled, and the schema is created automatically.
//
// The auth package consumes SQLiteStore through its ClientDirectory
// interface; everything else is used directly.
//
// Use a path under t.TempDir() (or ":memory:") for tests.
package store
