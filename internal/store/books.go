package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/knjiznica/internal/model"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const bookColumns = `id, catalog_number, title, author, publisher, on_loan, borrower_name, loan_date, due_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (model.Book, error) {
	var b model.Book
	err := row.Scan(&b.ID, &b.CatalogNumber, &b.Title, &b.Author, &b.Publisher,
		&b.OnLoan, &b.BorrowerName, &b.LoanDate, &b.DueDate)
	return b, err
}

// AddBook inserts a new book. When b.ID is zero the id is assigned as
// max(id)+1 (or 1) within the same statement, so id assignment and the
// uniqueness checks on id and catalog number happen atomically. Text fields
// are stored trimmed.
func AddBook(ctx context.Context, q Querier, b model.Book) (*model.Book, error) {
	b = b.Normalize()
	if b.ID < 0 {
		return nil, fmt.Errorf("%w: id must be positive", model.ErrValidation)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO books (`+bookColumns+`)
		 SELECT CASE WHEN ? > 0 THEN ? ELSE COALESCE(MAX(id), 0) + 1 END, ?, ?, ?, ?, ?, ?, ?, ?
		 FROM books
		 RETURNING id`,
		b.ID, b.ID, b.CatalogNumber, b.Title, b.Author, b.Publisher,
		b.OnLoan, b.BorrowerName, b.LoanDate, b.DueDate,
	).Scan(&id)
	if err != nil {
		return nil, constraintError(err, b, "adding book")
	}

	b.ID = id
	return &b, nil
}

// GetBook returns a book by id, or nil if it does not exist.
func GetBook(ctx context.Context, q Querier, id int64) (*model.Book, error) {
	b, err := scanBook(q.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	return &b, nil
}

// GetBookByCatalogNumber returns the book with the given catalog number, or nil.
func GetBookByCatalogNumber(ctx context.Context, q Querier, catalogNumber string) (*model.Book, error) {
	b, err := scanBook(q.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE catalog_number = ?`, catalogNumber,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book by catalog number: %w", err)
	}
	return &b, nil
}

// ListBooks returns all books in insertion order.
func ListBooks(ctx context.Context, q Querier) ([]model.Book, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CountBooks returns the number of books in the catalog.
func CountBooks(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting books: %w", err)
	}
	return n, nil
}

// UpdateBook replaces the stored book sharing b.ID. The id and catalog number
// are never rewritten. Text fields are stored trimmed.
func UpdateBook(ctx context.Context, q Querier, b model.Book) error {
	b = b.Normalize()
	if err := b.Validate(); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, publisher = ?, on_loan = ?,
		        borrower_name = ?, loan_date = ?, due_date = ?
		 WHERE id = ?`,
		b.Title, b.Author, b.Publisher, b.OnLoan, b.BorrowerName, b.LoanDate, b.DueDate, b.ID,
	)
	if err != nil {
		return constraintError(err, b, "updating book")
	}
	return requireAffected(result, b.ID)
}

// DeleteBook removes a book. It returns model.ErrNotFound if the id is absent.
func DeleteBook(ctx context.Context, q Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting book: %w", err)
	}
	return requireAffected(result, id)
}

// ClearBooks deletes every book and returns how many were removed.
func ClearBooks(ctx context.Context, q Querier) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM books`)
	if err != nil {
		return 0, fmt.Errorf("clearing books: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleared books: %w", err)
	}
	return n, nil
}

// SetBookCover stores a book's cover image.
func SetBookCover(ctx context.Context, q Querier, id int64, image []byte, mime string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE books SET cover = ?, cover_mime = ? WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting book cover: %w", err)
	}
	return requireAffected(result, id)
}

// GetBookCover returns a book's cover image and MIME type. Data is nil when
// the book has no cover.
func GetBookCover(ctx context.Context, q Querier, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT cover, cover_mime FROM books WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting book cover: %w", err)
	}
	return image, mime.String, nil
}

// RunInTx runs fn inside a transaction, committing only if fn succeeds.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", model.ErrNotFound, id)
	}
	return nil
}

// constraintError maps SQLite constraint violations onto the model errors.
func constraintError(err error, b model.Book, action string) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%s: %w", action, err)
	}

	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		if strings.Contains(se.Error(), "catalog_number") {
			return fmt.Errorf("%w: catalog number %q", model.ErrDuplicateKey, b.CatalogNumber)
		}
		return fmt.Errorf("%w: id %d", model.ErrDuplicateKey, b.ID)
	case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return fmt.Errorf("%w: %v", model.ErrValidation, se)
	}
	return fmt.Errorf("%s: %w", action, err)
}
