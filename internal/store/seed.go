package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// DefaultBooks is the catalog written on first run.
var DefaultBooks = []model.Book{
	{ID: 1, CatalogNumber: "001", Title: "Dom Casmurro", Author: "Machado de Assis", Publisher: "Ática"},
	{
		ID: 2, CatalogNumber: "002", Title: "O Cortiço", Author: "Aluísio Azevedo", Publisher: "Moderna",
		OnLoan: true, BorrowerName: "João Silva", LoanDate: "2024-07-10", DueDate: "2024-07-24",
	},
	{ID: 3, CatalogNumber: "003", Title: "Iracema", Author: "José de Alencar", Publisher: "Saraiva"},
}

// SeedBooks inserts books verbatim if the catalog is empty and returns how
// many were inserted. A non-empty catalog is left untouched.
func SeedBooks(ctx context.Context, db *sql.DB, books []model.Book) (int, error) {
	inserted := 0
	err := RunInTx(ctx, db, func(tx *sql.Tx) error {
		n, err := CountBooks(ctx, tx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		for _, b := range books {
			if _, err := AddBook(ctx, tx, b); err != nil {
				return fmt.Errorf("seeding %q: %w", b.CatalogNumber, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
