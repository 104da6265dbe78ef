// Package search filters an already-loaded catalog view.
package search

import (
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
)

// Filter returns the books whose catalog number, title, author or publisher
// contains query, ignoring case. Whitespace in query is significant; only the
// empty query returns books as is. Order is preserved and books is not
// modified.
func Filter(books []model.Book, query string) []model.Book {
	if query == "" {
		return books
	}
	q := strings.ToLower(query)

	matched := make([]model.Book, 0, len(books))
	for _, b := range books {
		if matches(b, q) {
			matched = append(matched, b)
		}
	}
	return matched
}

func matches(b model.Book, q string) bool {
	for _, field := range [...]string{b.CatalogNumber, b.Title, b.Author, b.Publisher} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
