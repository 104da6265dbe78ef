package codec

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
)

// Format is a serialization format for catalog exports.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat parses a format name such as "json" or "CSV".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", model.ErrUnknownFormat, s)
}

// FormatFromName selects the format from a file name suffix.
func FormatFromName(name string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no suffix", model.ErrUnknownFormat, name)
	}
	return ParseFormat(ext)
}

// Extension returns the file suffix, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}
