package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/library"
	"github.com/erazemk/knjiznica/internal/metrics"
	"github.com/erazemk/knjiznica/internal/store"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := store.SeedBooks(ctx, database, store.DefaultBooks); err != nil {
		t.Fatalf("SeedBooks: %v", err)
	}

	m := metrics.New()
	clock := func() time.Time { return time.Date(2024, 7, 20, 12, 0, 0, 0, time.Local) }
	lib, err := library.New(ctx, database, library.WithClock(clock), library.WithMetrics(m))
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}

	router := NewRouter(lib, Limits{MaxImportBytes: 1 << 20, MaxCoverBytes: 1 << 20}, m.Handler())
	server := httptest.NewServer(LoggingMiddleware(router))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type entry struct {
	ID            int64  `json:"id"`
	CatalogNumber string `json:"catalogNumber"`
	Title         string `json:"title"`
	LoanState     bool   `json:"loanState"`
	BorrowerName  string `json:"borrowerName"`
	LoanDate      string `json:"loanDate"`
	DueDate       string `json:"dueDate"`
	Status        string `json:"status"`
	Overdue       bool   `json:"overdue"`
}

func TestListBooks(t *testing.T) {
	server := setupTestServer(t)

	resp := doJSON(t, "GET", server.URL+"/api/books", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}

	var books []entry
	json.NewDecoder(resp.Body).Decode(&books)
	if len(books) != 3 {
		t.Fatalf("expected 3 books, got %d", len(books))
	}
	if books[1].Status != "on_loan" || books[1].Overdue {
		t.Errorf("expected O Cortiço on loan and not overdue, got %+v", books[1])
	}

	resp = doJSON(t, "GET", server.URL+"/api/books?q=IRACEMA", nil)
	json.NewDecoder(resp.Body).Decode(&books)
	if len(books) != 1 || books[0].CatalogNumber != "003" {
		t.Errorf("unexpected search result: %+v", books)
	}
}

func TestListBooksETag(t *testing.T) {
	server := setupTestServer(t)

	resp := doJSON(t, "GET", server.URL+"/api/books", nil)
	tag := resp.Header.Get("ETag")
	if tag == "" {
		t.Fatal("expected ETag header")
	}

	req, _ := http.NewRequest("GET", server.URL+"/api/books", nil)
	req.Header.Set("If-None-Match", tag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional request: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Errorf("expected 304, got %d", resp2.StatusCode)
	}

	doJSON(t, "POST", server.URL+"/api/books/1/loan", map[string]string{"borrowerName": "Ana", "dueDate": "2024-08-01"})
	resp3 := doJSON(t, "GET", server.URL+"/api/books", nil)
	if resp3.Header.Get("ETag") == tag {
		t.Error("expected ETag to change after a loan")
	}
}

func TestCreateBook(t *testing.T) {
	server := setupTestServer(t)

	book := map[string]any{"catalogNumber": "004", "title": "Senhora", "author": "José de Alencar", "publisher": "Ática"}
	resp := doJSON(t, "POST", server.URL+"/api/books", book)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created entry
	json.NewDecoder(resp.Body).Decode(&created)
	if created.ID != 4 {
		t.Errorf("expected id 4, got %d", created.ID)
	}

	resp = doJSON(t, "POST", server.URL+"/api/books", book)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate catalog number, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "POST", server.URL+"/api/books", map[string]any{"catalogNumber": "005", "title": "No author", "publisher": "P"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing author, got %d", resp.StatusCode)
	}

	lent := map[string]any{
		"catalogNumber": "006", "title": "Lucíola", "author": "José de Alencar", "publisher": "Ática",
		"loanState": true, "borrowerName": "Ana", "loanDate": "yesterday", "dueDate": "someday",
	}
	resp = doJSON(t, "POST", server.URL+"/api/books", lent)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a book created on loan, got %d", resp.StatusCode)
	}
	resp = doJSON(t, "GET", server.URL+"/api/books/6", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("rejected book must not be stored, got %d", resp.StatusCode)
	}
}

func TestGetAndDeleteBook(t *testing.T) {
	server := setupTestServer(t)

	resp := doJSON(t, "GET", server.URL+"/api/books/3", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if resp := doJSON(t, "GET", server.URL+"/api/books/abc", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid id, got %d", resp.StatusCode)
	}

	if resp := doJSON(t, "DELETE", server.URL+"/api/books/3", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp := doJSON(t, "GET", server.URL+"/api/books/3", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
	if resp := doJSON(t, "DELETE", server.URL+"/api/books/3", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for second delete, got %d", resp.StatusCode)
	}
}

func TestLendAndReturn(t *testing.T) {
	server := setupTestServer(t)

	resp := doJSON(t, "POST", server.URL+"/api/books/1/loan", map[string]string{"borrowerName": "Ana", "dueDate": "2024-08-01"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var lent entry
	json.NewDecoder(resp.Body).Decode(&lent)
	if !lent.LoanState || lent.LoanDate != "2024-07-20" || lent.Status != "on_loan" {
		t.Errorf("unexpected lent book: %+v", lent)
	}

	resp = doJSON(t, "POST", server.URL+"/api/books/1/loan", map[string]string{"borrowerName": "Rui", "dueDate": "2024-08-01"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 when lending a lent book, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "POST", server.URL+"/api/books/3/loan", map[string]string{"dueDate": "2024-08-01"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without borrower, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "POST", server.URL+"/api/books/99/loan", map[string]string{"borrowerName": "Ana", "dueDate": "2024-08-01"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing book, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "POST", server.URL+"/api/books/1/return", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var returned entry
	json.NewDecoder(resp.Body).Decode(&returned)
	if returned.LoanState || returned.BorrowerName != "" || returned.Status != "available" {
		t.Errorf("unexpected returned book: %+v", returned)
	}
}

func TestStats(t *testing.T) {
	server := setupTestServer(t)

	resp := doJSON(t, "GET", server.URL+"/api/stats", nil)
	var stats map[string]int
	json.NewDecoder(resp.Body).Decode(&stats)
	if stats["total"] != 3 || stats["available"] != 2 || stats["onLoan"] != 1 || stats["overdue"] != 0 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestExportAndImport(t *testing.T) {
	server := setupTestServer(t)

	resp := doJSON(t, "GET", server.URL+"/api/export?format=csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "books-2024-07-20.csv") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	exported, _ := io.ReadAll(resp.Body)

	post := func(confirm string) *http.Response {
		req, _ := http.NewRequest("POST", server.URL+"/api/import?filename=books.csv", bytes.NewReader(exported))
		if confirm != "" {
			req.Header.Set(ConfirmHeader, confirm)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("import request: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	if resp := post(""); resp.StatusCode != http.StatusPreconditionFailed {
		t.Errorf("expected 412 without confirmation, got %d", resp.StatusCode)
	}

	resp = post("yes")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Imported int   `json:"imported"`
		Replaced int64 `json:"replaced"`
		Skipped  []any `json:"skipped"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Imported != 3 || result.Replaced != 3 || len(result.Skipped) != 0 {
		t.Errorf("unexpected import result: %+v", result)
	}
}

func TestExportErrors(t *testing.T) {
	server := setupTestServer(t)

	if resp := doJSON(t, "GET", server.URL+"/api/export?format=xml", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", resp.StatusCode)
	}

	for _, id := range []string{"1", "2", "3"} {
		doJSON(t, "DELETE", server.URL+"/api/books/"+id, nil)
	}
	if resp := doJSON(t, "GET", server.URL+"/api/export", nil); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for empty catalog, got %d", resp.StatusCode)
	}
}

func TestImportEmptyFile(t *testing.T) {
	server := setupTestServer(t)

	req, _ := http.NewRequest("POST", server.URL+"/api/import?filename=books.json", strings.NewReader(`[]`))
	req.Header.Set(ConfirmHeader, "yes")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCoverUpload(t *testing.T) {
	server := setupTestServer(t)

	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for x := 0; x < 40; x++ {
		for y := 0; y < 60; y++ {
			img.Set(x, y, color.RGBA{0, 128, 0, 255})
		}
	}
	var pngData bytes.Buffer
	png.Encode(&pngData, img)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("cover", "cover.png")
	part.Write(pngData.Bytes())
	mw.Close()

	req, _ := http.NewRequest("PUT", server.URL+"/api/books/1/cover", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "GET", server.URL+"/api/books/1/cover", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}

	if resp := doJSON(t, "GET", server.URL+"/api/books/2/cover", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for book without cover, got %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	server := setupTestServer(t)

	if resp := doJSON(t, "GET", server.URL+"/healthz", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from healthz, got %d", resp.StatusCode)
	}

	doJSON(t, "POST", server.URL+"/api/books/1/loan", map[string]string{"borrowerName": "Ana", "dueDate": "2024-08-01"})

	resp := doJSON(t, "GET", server.URL+"/metrics", nil)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "knjiznica_loans_total 1") {
		t.Errorf("expected loan counter in metrics output")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	server := setupTestServer(t)

	req, _ := http.NewRequest("GET", server.URL+"/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
}
