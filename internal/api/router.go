package api

import (
	"net/http"

	"github.com/erazemk/knjiznica/internal/library"
)

// Limits bounds request body sizes.
type Limits struct {
	MaxImportBytes int64
	MaxCoverBytes  int64
}

// NewRouter creates the API router with all endpoints registered. Metrics may
// be nil.
func NewRouter(lib *library.Manager, limits Limits, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	booksHandler := &BooksHandler{Library: lib, MaxCoverBytes: limits.MaxCoverBytes}
	exchangeHandler := &ExchangeHandler{Library: lib, MaxImportBytes: limits.MaxImportBytes}

	// Catalog.
	mux.HandleFunc("GET /api/books", booksHandler.List)
	mux.HandleFunc("POST /api/books", booksHandler.Create)
	mux.HandleFunc("GET /api/books/{id}", booksHandler.Get)
	mux.HandleFunc("DELETE /api/books/{id}", booksHandler.Delete)
	mux.HandleFunc("PUT /api/books/{id}/cover", booksHandler.UploadCover)
	mux.HandleFunc("GET /api/books/{id}/cover", booksHandler.GetCover)
	mux.HandleFunc("GET /api/stats", booksHandler.Stats)
	mux.HandleFunc("GET /api/catalog", booksHandler.Catalog)

	// Lending.
	mux.HandleFunc("POST /api/books/{id}/loan", booksHandler.Lend)
	mux.HandleFunc("POST /api/books/{id}/return", booksHandler.Return)

	// Import/export.
	mux.HandleFunc("GET /api/export", exchangeHandler.Export)
	mux.HandleFunc("POST /api/import", exchangeHandler.Import)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := lib.Ping(r.Context()); err != nil {
			errorResponse(w, r, err)
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return RecoverMiddleware(mux)
}
