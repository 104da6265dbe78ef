// Package lending implements the loan lifecycle of a catalog record and the
// overdue classification derived from its due date.
package lending

import (
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// Request holds the loan form values. LoanDate may be empty, in which case
// today's date is used.
type Request struct {
	BorrowerName string `json:"borrowerName"`
	LoanDate     string `json:"loanDate"`
	DueDate      string `json:"dueDate"`
}

// Lend moves an available book onto loan. The returned book is ready to be
// passed to store.UpdateBook; b itself is not modified.
func Lend(b model.Book, req Request, now time.Time) (model.Book, error) {
	if b.OnLoan {
		return b, fmt.Errorf("%w: book %q is already on loan to %s",
			model.ErrInvalidTransition, b.CatalogNumber, b.BorrowerName)
	}

	borrower := strings.TrimSpace(req.BorrowerName)
	if borrower == "" {
		return b, fmt.Errorf("%w: borrowerName required", model.ErrValidation)
	}
	if strings.TrimSpace(req.DueDate) == "" {
		return b, fmt.Errorf("%w: dueDate required", model.ErrValidation)
	}

	loanDate := strings.TrimSpace(req.LoanDate)
	if loanDate == "" {
		loanDate = model.FormatDate(now)
	}

	loc := now.Location()
	loan, err := model.ParseDate(loanDate, loc)
	if err != nil {
		return b, err
	}
	due, err := model.ParseDate(req.DueDate, loc)
	if err != nil {
		return b, err
	}
	if due.Before(loan) {
		return b, fmt.Errorf("%w: dueDate %s is before loanDate %s",
			model.ErrValidation, model.FormatDate(due), model.FormatDate(loan))
	}

	b.OnLoan = true
	b.BorrowerName = borrower
	b.LoanDate = model.FormatDate(loan)
	b.DueDate = model.FormatDate(due)
	return b, nil
}

// Return clears the loan fields. Returning an available book yields it
// unchanged.
func Return(b model.Book) model.Book {
	return b.ClearLoan()
}

// IsOverdue reports whether today, in now's location, is strictly after
// dueDate. A book due today is not overdue. Unparseable or empty dates are
// never overdue.
func IsOverdue(dueDate string, now time.Time) bool {
	if dueDate == "" {
		return false
	}
	due, err := model.ParseDate(dueDate, now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.After(due)
}

// StatusOf classifies b at now.
func StatusOf(b model.Book, now time.Time) model.LoanState {
	if !b.OnLoan {
		return model.LoanStateAvailable
	}
	if IsOverdue(b.DueDate, now) {
		return model.LoanStateOverdue
	}
	return model.LoanStateOnLoan
}

// Summary counts books by loan status. Overdue books are included in OnLoan.
type Summary struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	OnLoan    int `json:"onLoan"`
	Overdue   int `json:"overdue"`
}

// Summarize classifies every book against the same now.
func Summarize(books []model.Book, now time.Time) Summary {
	s := Summary{Total: len(books)}
	for _, b := range books {
		switch StatusOf(b, now) {
		case model.LoanStateAvailable:
			s.Available++
		case model.LoanStateOverdue:
			s.Overdue++
			s.OnLoan++
		default:
			s.OnLoan++
		}
	}
	return s
}
