package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func newBook(catalogNumber, title string) model.Book {
	return model.Book{CatalogNumber: catalogNumber, Title: title, Author: "Author", Publisher: "Publisher"}
}

func TestAddBookAssignsSequentialIDs(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, err := AddBook(ctx, database, newBook("001", "First"))
	if err != nil {
		t.Fatalf("AddBook: %v", err)
	}
	if first.ID != 1 {
		t.Errorf("expected id 1 in empty catalog, got %d", first.ID)
	}

	if _, err := AddBook(ctx, database, model.Book{ID: 40, CatalogNumber: "040", Title: "Forty", Author: "A", Publisher: "P"}); err != nil {
		t.Fatalf("AddBook with explicit id: %v", err)
	}

	next, err := AddBook(ctx, database, newBook("002", "Second"))
	if err != nil {
		t.Fatalf("AddBook: %v", err)
	}
	if next.ID != 41 {
		t.Errorf("expected id max+1 = 41, got %d", next.ID)
	}
}

func TestAddBookDuplicateCatalogNumber(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := AddBook(ctx, database, model.Book{ID: 1, CatalogNumber: "4139", Title: "A", Author: "B", Publisher: "C"}); err != nil {
		t.Fatalf("AddBook: %v", err)
	}

	_, err := AddBook(ctx, database, model.Book{ID: 2, CatalogNumber: "4139", Title: "Other", Author: "B", Publisher: "C"})
	if !errors.Is(err, model.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	n, _ := CountBooks(ctx, database)
	if n != 1 {
		t.Errorf("expected catalog size 1, got %d", n)
	}

	found, err := GetBookByCatalogNumber(ctx, database, "4139")
	if err != nil {
		t.Fatalf("GetBookByCatalogNumber: %v", err)
	}
	if found == nil || found.Title != "A" {
		t.Errorf("expected original record to survive, got %+v", found)
	}
}

func TestAddBookDuplicateID(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	AddBook(ctx, database, model.Book{ID: 7, CatalogNumber: "a", Title: "A", Author: "B", Publisher: "C"})
	_, err := AddBook(ctx, database, model.Book{ID: 7, CatalogNumber: "b", Title: "A", Author: "B", Publisher: "C"})
	if !errors.Is(err, model.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey for id collision, got %v", err)
	}
}

func TestAddBookRejectsMixedLoanState(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b := newBook("001", "Mixed")
	b.OnLoan = true
	b.BorrowerName = "Ana"

	if _, err := AddBook(ctx, database, b); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAddBookRejectsBadLoanDates(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name, loanDate, dueDate string
	}{
		{"unparseable loan date", "yesterday", "2024-01-15"},
		{"unparseable due date", "2024-01-01", "someday"},
		{"due before loan", "2024-01-15", "2024-01-01"},
	}
	for i, tt := range tests {
		b := newBook(fmt.Sprintf("%03d", i+1), tt.name)
		b.OnLoan = true
		b.BorrowerName = "Ana"
		b.LoanDate = tt.loanDate
		b.DueDate = tt.dueDate

		if _, err := AddBook(ctx, database, b); !errors.Is(err, model.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tt.name, err)
		}
	}

	if n, _ := CountBooks(ctx, database); n != 0 {
		t.Errorf("expected no stored books, got %d", n)
	}
}

func TestAddBookStoresTrimmedFields(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	created, err := AddBook(ctx, database, model.Book{CatalogNumber: " 001 ", Title: " Iracema", Author: "José de Alencar ", Publisher: "\tSaraiva"})
	if err != nil {
		t.Fatalf("AddBook: %v", err)
	}
	if created.CatalogNumber != "001" || created.Title != "Iracema" {
		t.Errorf("returned book not trimmed: %+v", created)
	}

	got, err := GetBookByCatalogNumber(ctx, database, "001")
	if err != nil {
		t.Fatalf("GetBookByCatalogNumber: %v", err)
	}
	if got.Title != "Iracema" || got.Author != "José de Alencar" || got.Publisher != "Saraiva" {
		t.Errorf("stored book not trimmed: %+v", got)
	}

	if _, err := AddBook(ctx, database, newBook("001", "Another")); !errors.Is(err, model.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for the trimmed catalog number, got %v", err)
	}
}

func TestListBooksInsertionOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	AddBook(ctx, database, model.Book{ID: 9, CatalogNumber: "z", Title: "Z", Author: "A", Publisher: "P"})
	AddBook(ctx, database, model.Book{ID: 2, CatalogNumber: "a", Title: "A", Author: "A", Publisher: "P"})
	AddBook(ctx, database, model.Book{ID: 5, CatalogNumber: "m", Title: "M", Author: "A", Publisher: "P"})

	books, err := ListBooks(ctx, database)
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	want := []int64{9, 2, 5}
	if len(books) != len(want) {
		t.Fatalf("expected %d books, got %d", len(want), len(books))
	}
	for i, id := range want {
		if books[i].ID != id {
			t.Errorf("position %d: expected id %d, got %d", i, id, books[i].ID)
		}
	}
}

func TestUpdateBook(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b, _ := AddBook(ctx, database, newBook("001", "Iracema"))

	lent := *b
	lent.OnLoan = true
	lent.BorrowerName = "Ana"
	lent.LoanDate = "2024-01-01"
	lent.DueDate = "2024-01-15"
	lent.CatalogNumber = "changed"
	if err := UpdateBook(ctx, database, lent); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	got, _ := GetBook(ctx, database, b.ID)
	if !got.OnLoan || got.BorrowerName != "Ana" || got.DueDate != "2024-01-15" {
		t.Errorf("loan fields not stored: %+v", got)
	}
	if got.CatalogNumber != "001" {
		t.Errorf("catalog number must be immutable, got %q", got.CatalogNumber)
	}
}

func TestUpdateMissingBook(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b := newBook("001", "Ghost")
	b.ID = 99
	if err := UpdateBook(ctx, database, b); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBook(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b, _ := AddBook(ctx, database, newBook("001", "Delete Me"))
	if err := DeleteBook(ctx, database, b.ID); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}

	got, _ := GetBook(ctx, database, b.ID)
	if got != nil {
		t.Error("expected book to be gone")
	}

	if err := DeleteBook(ctx, database, b.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestClearBooks(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	AddBook(ctx, database, newBook("001", "A"))
	AddBook(ctx, database, newBook("002", "B"))

	n, err := ClearBooks(ctx, database)
	if err != nil {
		t.Fatalf("ClearBooks: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}

	books, _ := ListBooks(ctx, database)
	if len(books) != 0 {
		t.Errorf("expected empty catalog, got %d", len(books))
	}
}

func TestSeedBooksOnlyWhenEmpty(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	n, err := SeedBooks(ctx, database, DefaultBooks)
	if err != nil {
		t.Fatalf("SeedBooks: %v", err)
	}
	if n != len(DefaultBooks) {
		t.Errorf("expected %d seeded, got %d", len(DefaultBooks), n)
	}

	n, err = SeedBooks(ctx, database, DefaultBooks)
	if err != nil {
		t.Fatalf("second SeedBooks: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no-op on non-empty catalog, got %d", n)
	}

	books, _ := ListBooks(ctx, database)
	if len(books) != len(DefaultBooks) {
		t.Fatalf("expected %d books, got %d", len(DefaultBooks), len(books))
	}
	if books[1] != DefaultBooks[1] {
		t.Errorf("seed not stored verbatim: got %+v", books[1])
	}
}

func TestRunInTxRollsBack(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	AddBook(ctx, database, newBook("001", "Keep"))

	sentinel := errors.New("abort")
	err := RunInTx(ctx, database, func(tx *sql.Tx) error {
		if _, err := ClearBooks(ctx, tx); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	n, _ := CountBooks(ctx, database)
	if n != 1 {
		t.Errorf("expected rollback to keep 1 book, got %d", n)
	}
}

func TestBookCover(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b, _ := AddBook(ctx, database, newBook("001", "Covered"))

	data, _, err := GetBookCover(ctx, database, b.ID)
	if err != nil {
		t.Fatalf("GetBookCover: %v", err)
	}
	if data != nil {
		t.Error("expected no cover yet")
	}

	if err := SetBookCover(ctx, database, b.ID, []byte("fake image data"), "image/jpeg"); err != nil {
		t.Fatalf("SetBookCover: %v", err)
	}

	data, mime, err := GetBookCover(ctx, database, b.ID)
	if err != nil {
		t.Fatalf("GetBookCover: %v", err)
	}
	if string(data) != "fake image data" {
		t.Errorf("expected image data, got %q", string(data))
	}
	if mime != "image/jpeg" {
		t.Errorf("expected mime 'image/jpeg', got %q", mime)
	}

	if err := SetBookCover(ctx, database, 999, []byte("x"), "image/jpeg"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing book, got %v", err)
	}
}
