package codec

import (
	"strconv"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
)

// field maps one exported column to and from its textual value.
type field struct {
	name   string
	encode func(b model.Book) string
	decode func(b *model.Book, v string)
}

// truthy is the only loanState value read as on loan.
const truthy = "true"

// fields is the column order of the tabular format and the decode table
// shared by both formats. Every decoder has a fallback: id becomes 0 when it
// is not an integer and loanState is false unless it is exactly "true".
var fields = []field{
	{"id",
		func(b model.Book) string { return strconv.FormatInt(b.ID, 10) },
		func(b *model.Book, v string) { b.ID = parseID(v) }},
	{"catalogNumber",
		func(b model.Book) string { return b.CatalogNumber },
		func(b *model.Book, v string) { b.CatalogNumber = strings.TrimSpace(v) }},
	{"title",
		func(b model.Book) string { return b.Title },
		func(b *model.Book, v string) { b.Title = strings.TrimSpace(v) }},
	{"author",
		func(b model.Book) string { return b.Author },
		func(b *model.Book, v string) { b.Author = strings.TrimSpace(v) }},
	{"publisher",
		func(b model.Book) string { return b.Publisher },
		func(b *model.Book, v string) { b.Publisher = strings.TrimSpace(v) }},
	{"loanState",
		func(b model.Book) string { return strconv.FormatBool(b.OnLoan) },
		func(b *model.Book, v string) { b.OnLoan = v == truthy }},
	{"borrowerName",
		func(b model.Book) string { return b.BorrowerName },
		func(b *model.Book, v string) { b.BorrowerName = strings.TrimSpace(v) }},
	{"loanDate",
		func(b model.Book) string { return b.LoanDate },
		func(b *model.Book, v string) { b.LoanDate = strings.TrimSpace(v) }},
	{"dueDate",
		func(b model.Book) string { return b.DueDate },
		func(b *model.Book, v string) { b.DueDate = strings.TrimSpace(v) }},
}

var fieldsByName = func() map[string]field {
	m := make(map[string]field, len(fields))
	for _, f := range fields {
		m[f.name] = f
	}
	return m
}()

// Header returns the column names of the tabular format.
func Header() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return names
}

func parseID(v string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
