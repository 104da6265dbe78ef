package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/codec"
	"github.com/erazemk/knjiznica/internal/library"
)

// ConfirmHeader must be "yes" for an import to replace the catalog.
const ConfirmHeader = "X-Confirm-Replace"

// ExchangeHandler handles catalog export and import.
type ExchangeHandler struct {
	Library        *library.Manager
	MaxImportBytes int64
}

// Export handles GET /api/export?format=json|csv.
func (h *ExchangeHandler) Export(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(codec.FormatJSON)
	}
	format, err := codec.ParseFormat(name)
	if err != nil {
		errorResponse(w, r, err)
		return
	}

	f, err := h.Library.Export(r.Context(), format)
	if err != nil {
		errorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	w.Header().Set("X-Total-Records", strconv.Itoa(f.Records))
	writeTagged(w, r, f.ContentType, f.Data)
}

// Import handles POST /api/import?filename=books.json. The body is the raw
// file. Without the confirmation header nothing is replaced.
func (h *ExchangeHandler) Import(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		jsonError(w, http.StatusBadRequest, "filename required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxImportBytes)
	defer r.Body.Close()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, http.StatusRequestEntityTooLarge, "import file too large")
			return
		}
		jsonError(w, http.StatusBadRequest, "failed to read import file")
		return
	}

	confirmed := r.Header.Get(ConfirmHeader) == "yes"
	result, err := h.Library.Import(r.Context(), filename, data, func(int) bool { return confirmed })
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}
