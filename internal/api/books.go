package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/library"
	"github.com/erazemk/knjiznica/internal/model"
)

// BooksHandler handles catalog and lending endpoints.
type BooksHandler struct {
	Library       *library.Manager
	MaxCoverBytes int64
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return 0, false
	}
	return id, true
}

// List handles GET /api/books.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	jsonTagged(w, r, h.Library.Search(r.URL.Query().Get("q")))
}

// Create handles POST /api/books.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var b model.Book
	if err := decodeJSON(r, &b); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Library.AddBook(r.Context(), b)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

// Get handles GET /api/books/{id}.
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	entry, err := h.Library.Lookup(r.Context(), id)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, entry)
}

// Delete handles DELETE /api/books/{id}.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.Library.Delete(r.Context(), id); err != nil {
		errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Lend handles POST /api/books/{id}/loan.
func (h *BooksHandler) Lend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req lending.Request
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.Library.Lend(r.Context(), id, req); err != nil {
		errorResponse(w, r, err)
		return
	}
	h.respondEntry(w, r, id)
}

// Return handles POST /api/books/{id}/return.
func (h *BooksHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.Library.Return(r.Context(), id); err != nil {
		errorResponse(w, r, err)
		return
	}
	h.respondEntry(w, r, id)
}

func (h *BooksHandler) respondEntry(w http.ResponseWriter, r *http.Request, id int64) {
	entry, err := h.Library.Lookup(r.Context(), id)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, entry)
}

// Stats handles GET /api/stats.
func (h *BooksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.Library.Stats())
}

// Catalog handles GET /api/catalog.
func (h *BooksHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	info, err := h.Library.Info(r.Context())
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, info)
}

// UploadCover handles PUT /api/books/{id}/cover. The image is sent as the
// "cover" field of a multipart form.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxCoverBytes)
	if err := r.ParseMultipartForm(h.MaxCoverBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "cover file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "failed to read cover")
		return
	}

	cover, err := h.Library.SetCover(r.Context(), id, data)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"width": cover.Width, "height": cover.Height})
}

// GetCover handles GET /api/books/{id}/cover.
func (h *BooksHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	data, mime, err := h.Library.Cover(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "no cover")
			return
		}
		errorResponse(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeTagged(w, r, mime, data)
}
