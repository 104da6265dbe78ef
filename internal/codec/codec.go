// Package codec serializes the catalog as a JSON export document or as an
// all-quoted CSV table, and decodes either back into candidate records.
package codec

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// StoreName is the collection name written into export documents.
const StoreName = "books"

var bom = []byte("\xef\xbb\xbf")

// Document is the JSON export wrapper.
type Document struct {
	ExportDate   string       `json:"exportDate"`
	DatabaseName string       `json:"databaseName"`
	StoreName    string       `json:"storeName"`
	TotalRecords int          `json:"totalRecords"`
	Data         []model.Book `json:"data"`
}

// NewDocument wraps books for export at now.
func NewDocument(databaseName string, books []model.Book, now time.Time) Document {
	if books == nil {
		books = []model.Book{}
	}
	return Document{
		ExportDate:   now.UTC().Format(time.RFC3339),
		DatabaseName: databaseName,
		StoreName:    StoreName,
		TotalRecords: len(books),
		Data:         books,
	}
}

// Encode serializes doc in the given format. CSV output carries only the
// records.
func Encode(format Format, doc Document) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatCSV:
		return EncodeCSV(doc.Data), nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownFormat, format)
}

// Decode parses an import payload into candidate records. Candidates are not
// validated; an empty result is not an error here.
func Decode(format Format, data []byte) ([]model.Book, error) {
	data = bytes.TrimPrefix(data, bom)
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatCSV:
		return DecodeCSV(data)
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownFormat, format)
}

// EncodeCSV writes a header row and one row per book. Every value is quoted
// and embedded quotes are doubled.
func EncodeCSV(books []model.Book) []byte {
	var buf bytes.Buffer
	writeRow(&buf, Header())

	row := make([]string, len(fields))
	for _, b := range books {
		for i, f := range fields {
			row[i] = f.encode(b)
		}
		writeRow(&buf, row)
	}
	return buf.Bytes()
}

func writeRow(buf *bytes.Buffer, values []string) {
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(v, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}

// DecodeCSV reads a header row and maps each following row onto a record by
// column name. Unknown columns are ignored and short rows leave the missing
// fields empty.
func DecodeCSV(data []byte) ([]model.Book, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading csv header: %v", model.ErrMalformedImport, err)
	}

	columns := make([]*field, len(header))
	for i, name := range header {
		if f, ok := fieldsByName[strings.TrimSpace(name)]; ok {
			columns[i] = &f
		}
	}

	var books []model.Book
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading csv: %v", model.ErrMalformedImport, err)
		}

		var b model.Book
		for i, v := range record {
			if i < len(columns) && columns[i] != nil {
				columns[i].decode(&b, v)
			}
		}
		books = append(books, b)
	}
	return books, nil
}

// DecodeJSON accepts either an export document, whose data array is used, or
// a bare array of records. Elements that are not objects decode to empty
// candidates.
func DecodeJSON(data []byte) ([]model.Book, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedImport, err)
	}

	var items []any
	switch v := payload.(type) {
	case []any:
		items = v
	case map[string]any:
		inner, ok := v["data"]
		if !ok || inner == nil {
			return nil, nil
		}
		if items, ok = inner.([]any); !ok {
			return nil, fmt.Errorf("%w: data is not an array", model.ErrMalformedImport)
		}
	default:
		return nil, fmt.Errorf("%w: expected an object or array", model.ErrMalformedImport)
	}

	books := make([]model.Book, 0, len(items))
	for _, item := range items {
		var b model.Book
		obj, _ := item.(map[string]any)
		for name, v := range obj {
			if f, ok := fieldsByName[name]; ok {
				f.decode(&b, jsonText(v))
			}
		}
		books = append(books, b)
	}
	return books, nil
}

func jsonText(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
