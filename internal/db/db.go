package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/erazemk/knjiznica/internal/model"
)

// Open opens a SQLite database connection and configures pragmas.
// Any failure is reported as model.ErrStoreUnavailable.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: creating database directory: %v", model.ErrStoreUnavailable, err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", model.ErrStoreUnavailable, err)
	}

	// Single connection: store calls run one at a time and a :memory:
	// database is the same database for every call.
	db.SetMaxOpenConns(1)

	// Set pragmas for performance and correctness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: setting pragma %q: %v", model.ErrStoreUnavailable, p, err)
		}
	}

	return db, nil
}
