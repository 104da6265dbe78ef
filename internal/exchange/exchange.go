// Package exchange exports the catalog to a file and replaces it from one.
package exchange

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/erazemk/knjiznica/internal/codec"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// File is a serialized export ready to be written or downloaded.
type File struct {
	Name        string
	ContentType string
	Records     int
	Data        []byte
}

// Export serializes the whole catalog. It fails with model.ErrEmptyCollection
// when there is nothing to export.
func Export(ctx context.Context, q store.Querier, format codec.Format, databaseName string, now time.Time) (*File, error) {
	books, err := store.ListBooks(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, model.ErrEmptyCollection
	}

	data, err := codec.Encode(format, codec.NewDocument(databaseName, books, now))
	if err != nil {
		return nil, err
	}

	return &File{
		Name:        FileName(format, now),
		ContentType: format.ContentType(),
		Records:     len(books),
		Data:        data,
	}, nil
}

// FileName returns the suggested export file name for now.
func FileName(format codec.Format, now time.Time) string {
	return codec.StoreName + "-" + model.FormatDate(now) + format.Extension()
}

// ConfirmFunc is asked before the catalog is replaced. It receives the number
// of candidate records and must return true to proceed.
type ConfirmFunc func(candidates int) bool

// Skip describes a candidate that was not imported.
type Skip struct {
	Index         int    `json:"index"`
	CatalogNumber string `json:"catalogNumber,omitempty"`
	Reason        string `json:"reason"`
}

// Result reports the outcome of an import.
type Result struct {
	Candidates int          `json:"candidates"`
	Replaced   int64        `json:"replaced"`
	Imported   int          `json:"imported"`
	Skipped    []Skip       `json:"skipped"`
	Books      []model.Book `json:"-"`
}

// Import replaces the catalog with the records in data. The format is chosen
// from filename. Nothing is written unless confirm returns true.
//
// The clear and every insert run in one transaction, so a failure of the
// replace itself keeps the previous catalog. Candidates that are incomplete
// or collide with an earlier candidate are skipped and reported instead.
func Import(ctx context.Context, db *sql.DB, filename string, data []byte, confirm ConfirmFunc, now time.Time) (*Result, error) {
	format, err := codec.FormatFromName(filename)
	if err != nil {
		return nil, err
	}

	candidates, err := codec.Decode(format, data)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, model.ErrEmptyImport
	}

	if confirm == nil || !confirm(len(candidates)) {
		return nil, model.ErrImportDeclined
	}

	result := &Result{Candidates: len(candidates), Skipped: []Skip{}}
	nextID := now.UnixMilli()

	err = store.RunInTx(ctx, db, func(tx *sql.Tx) error {
		removed, err := store.ClearBooks(ctx, tx)
		if err != nil {
			return err
		}
		result.Replaced = removed

		for i, candidate := range candidates {
			b, reason := normalize(candidate)
			if reason != "" {
				result.skip(i, candidate, reason)
				continue
			}

			if b.ID == 0 {
				if b.ID, nextID, err = fallbackID(ctx, tx, nextID); err != nil {
					return err
				}
			}

			if _, err := store.AddBook(ctx, tx, b); err != nil {
				if errors.Is(err, model.ErrDuplicateKey) || errors.Is(err, model.ErrValidation) {
					result.skip(i, candidate, err.Error())
					continue
				}
				return fmt.Errorf("importing record %d: %w", i, err)
			}
			result.Imported++
		}

		if err := store.SetSetting(ctx, tx, store.SettingLastImportAt, now.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
		return store.SetSetting(ctx, tx, store.SettingLastImportFile, filepath.Base(filename))
	})
	if err != nil {
		return nil, err
	}

	result.Books, err = store.ListBooks(ctx, db)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Result) skip(index int, b model.Book, reason string) {
	r.Skipped = append(r.Skipped, Skip{Index: index, CatalogNumber: b.CatalogNumber, Reason: reason})
}

// normalize prepares a candidate for insertion, or returns why it must be
// skipped.
func normalize(b model.Book) (model.Book, string) {
	if f := b.MissingField(); f != "" {
		return b, "missing " + f
	}

	if !b.OnLoan {
		return b.ClearLoan(), ""
	}

	if b.BorrowerName == "" || b.LoanDate == "" || b.DueDate == "" {
		return b, "on loan without borrower, loan date and due date"
	}
	return b, ""
}

// fallbackID returns the first unused id at or after next, and the value to
// try for the following candidate.
func fallbackID(ctx context.Context, q store.Querier, next int64) (int64, int64, error) {
	for {
		existing, err := store.GetBook(ctx, q, next)
		if err != nil {
			return 0, 0, err
		}
		if existing == nil {
			return next, next + 1, nil
		}
		next++
	}
}
