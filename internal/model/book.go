package model

import (
	"fmt"
	"strings"
	"time"
)

// Book is the single catalog record. JSON names are the export/import field
// names and must not change.
type Book struct {
	ID            int64  `json:"id"`
	CatalogNumber string `json:"catalogNumber"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Publisher     string `json:"publisher"`
	OnLoan        bool   `json:"loanState"`
	BorrowerName  string `json:"borrowerName"`
	LoanDate      string `json:"loanDate"`
	DueDate       string `json:"dueDate"`
}

// LoanState is the lending status of a book. Overdue is never stored.
type LoanState string

// Loan states.
const (
	LoanStateAvailable LoanState = "available"
	LoanStateOnLoan    LoanState = "on_loan"
	LoanStateOverdue   LoanState = "overdue"
)

// DateLayout is the ISO calendar date format used for loan and due dates.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO calendar date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return d, nil
}

// FormatDate formats t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// State returns the stored loan state.
func (b Book) State() LoanState {
	if b.OnLoan {
		return LoanStateOnLoan
	}
	return LoanStateAvailable
}

// MissingField returns the JSON name of the first empty required field, or "".
func (b Book) MissingField() string {
	switch {
	case strings.TrimSpace(b.CatalogNumber) == "":
		return "catalogNumber"
	case strings.TrimSpace(b.Title) == "":
		return "title"
	case strings.TrimSpace(b.Author) == "":
		return "author"
	case strings.TrimSpace(b.Publisher) == "":
		return "publisher"
	}
	return ""
}

// Validate checks the required fields and the loan invariant: a book on loan
// has a borrower and ISO loan and due dates, the due date not before the loan
// date; an available book has none of them.
func (b Book) Validate() error {
	if f := b.MissingField(); f != "" {
		return fmt.Errorf("%w: %s required", ErrValidation, f)
	}

	loanFields := []string{b.BorrowerName, b.LoanDate, b.DueDate}
	set := 0
	for _, f := range loanFields {
		if f != "" {
			set++
		}
	}

	if b.OnLoan && set != len(loanFields) {
		return fmt.Errorf("%w: book on loan needs borrower, loan date and due date", ErrValidation)
	}
	if !b.OnLoan && set != 0 {
		return fmt.Errorf("%w: available book cannot carry loan fields", ErrValidation)
	}

	if b.OnLoan {
		loan, err := ParseDate(b.LoanDate, time.UTC)
		if err != nil {
			return err
		}
		due, err := ParseDate(b.DueDate, time.UTC)
		if err != nil {
			return err
		}
		if due.Before(loan) {
			return fmt.Errorf("%w: dueDate %s is before loanDate %s", ErrValidation, b.DueDate, b.LoanDate)
		}
	}
	return nil
}

// Normalize trims surrounding whitespace from every text field. Stored
// records are always normalized, so an exported value reads back unchanged.
func (b Book) Normalize() Book {
	b.CatalogNumber = strings.TrimSpace(b.CatalogNumber)
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	b.Publisher = strings.TrimSpace(b.Publisher)
	b.BorrowerName = strings.TrimSpace(b.BorrowerName)
	b.LoanDate = strings.TrimSpace(b.LoanDate)
	b.DueDate = strings.TrimSpace(b.DueDate)
	return b
}

// ClearLoan returns b as an available book.
func (b Book) ClearLoan() Book {
	b.OnLoan = false
	b.BorrowerName = ""
	b.LoanDate = ""
	b.DueDate = ""
	return b
}
