package database

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

// DefaultFilename is the store file name used by tests and the default config.
const DefaultFilename = "propertyhub.db"

// NewTestStore opens a migrated sqlite store in a temporary directory.
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	store := NewEmptyTestStore(t)
	if _, err := NewMigrator(store, Migrations(), zaptest.NewLogger(t)).Up(context.Background()); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	return store
}

// NewEmptyTestStore opens an unmigrated sqlite store in a temporary directory.
func NewEmptyTestStore(t testing.TB) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), DefaultFilename)
	store, err := OpenSQLite(path, "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
