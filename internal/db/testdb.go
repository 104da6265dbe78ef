package db

import (
	"database/sql"
	"testing"
)

// NewTestDB returns an empty catalog backed by a private in-memory database.
// The books and settings tables exist but hold no rows; callers seed
// what they need. The database is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	catalog, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	if err := EnsureSchema(catalog); err != nil {
		t.Fatalf("creating catalog tables: %v", err)
	}
	return catalog
}
