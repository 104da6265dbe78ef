package db

import (
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// schema is the full database schema.
//
// seq keeps insertion order; id is the record's own key and is assigned by the
// store. The CHECK constraints mirror model.Book.Validate so that no write path
// can leave a record half on loan.
const schema = `
CREATE TABLE IF NOT EXISTS books (
    seq            INTEGER PRIMARY KEY,
    id             INTEGER NOT NULL UNIQUE CHECK (id > 0),
    catalog_number TEXT NOT NULL CHECK (catalog_number <> ''),
    title          TEXT NOT NULL CHECK (title <> ''),
    author         TEXT NOT NULL CHECK (author <> ''),
    publisher      TEXT NOT NULL CHECK (publisher <> ''),
    on_loan        INTEGER NOT NULL DEFAULT 0 CHECK (on_loan IN (0, 1)),
    borrower_name  TEXT NOT NULL DEFAULT '',
    loan_date      TEXT NOT NULL DEFAULT '',
    due_date       TEXT NOT NULL DEFAULT '',
    cover          BLOB,
    cover_mime     TEXT,
    CHECK (
        (on_loan = 0 AND borrower_name = '' AND loan_date = '' AND due_date = '') OR
        (on_loan = 1 AND borrower_name <> '' AND loan_date <> '' AND due_date <> '')
    )
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_books_catalog_number ON books(catalog_number);
CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);
CREATE INDEX IF NOT EXISTS idx_books_author ON books(author);
CREATE INDEX IF NOT EXISTS idx_books_publisher ON books(publisher);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("%w: creating schema: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}
