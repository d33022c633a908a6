package sqlite

import (
	"path/filepath"
	"testing"
)

// OpenTestStore opens a migrated store on a throwaway database under the
// test's temp dir and closes it when the test finishes.
func OpenTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "warden-test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	store := NewStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}
