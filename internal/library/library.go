// Package library is the entry point used by the HTTP API and the CLI. It
// owns the current catalog view, an explicit cache that is reloaded from the
// store after every write.
package library

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/erazemk/knjiznica/internal/codec"
	"github.com/erazemk/knjiznica/internal/exchange"
	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/metrics"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/search"
	"github.com/erazemk/knjiznica/internal/store"
)

// DefaultDatabaseName is written into export documents unless overridden.
const DefaultDatabaseName = "BibliotecaEscolar"

// Manager coordinates the store, lending rules, search and import/export.
type Manager struct {
	db      *sql.DB
	name    string
	now     func() time.Time
	metrics *metrics.Metrics

	mu   sync.RWMutex
	view []model.Book
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics sets the collectors updated by the manager.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithDatabaseName sets the name written into export documents.
func WithDatabaseName(name string) Option {
	return func(m *Manager) { m.name = name }
}

// New creates a manager over an initialized database and loads the view.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Manager, error) {
	m := &Manager{db: db, name: DefaultDatabaseName, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.New()
	}

	if _, err := store.EnsureSetting(ctx, db, store.SettingCreatedAt, m.now().UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}

	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Entry is a book with its loan status computed at one instant.
type Entry struct {
	model.Book
	Status  model.LoanState `json:"status"`
	Overdue bool            `json:"overdue"`
}

// Refresh reloads the view from the store.
func (m *Manager) Refresh(ctx context.Context) error {
	books, err := store.ListBooks(ctx, m.db)
	if err != nil {
		return err
	}
	m.setView(books)
	return nil
}

func (m *Manager) setView(books []model.Book) {
	m.mu.Lock()
	m.view = books
	m.mu.Unlock()

	s := lending.Summarize(books, m.now())
	m.metrics.Books.WithLabelValues(string(model.LoanStateAvailable)).Set(float64(s.Available))
	m.metrics.Books.WithLabelValues(string(model.LoanStateOnLoan)).Set(float64(s.OnLoan - s.Overdue))
	m.metrics.Books.WithLabelValues(string(model.LoanStateOverdue)).Set(float64(s.Overdue))
}

// refreshAfterWrite reloads the view after a committed write. A failed reload
// leaves the previous view in place and does not undo the write.
func (m *Manager) refreshAfterWrite(ctx context.Context) {
	if err := m.Refresh(ctx); err != nil {
		slog.Error("failed to refresh catalog view", "error", err)
	}
}

// View returns a copy of the current view in insertion order.
func (m *Manager) View() []model.Book {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.view)
}

// Search filters the current view and classifies each match against the same
// instant.
func (m *Manager) Search(query string) []Entry {
	now := m.now()
	matched := search.Filter(m.View(), query)

	entries := make([]Entry, len(matched))
	for i, b := range matched {
		status := lending.StatusOf(b, now)
		entries[i] = Entry{Book: b, Status: status, Overdue: status == model.LoanStateOverdue}
	}
	return entries
}

// Stats summarizes the current view.
func (m *Manager) Stats() lending.Summary {
	return lending.Summarize(m.View(), m.now())
}

// Get returns a book from the store, or model.ErrNotFound.
func (m *Manager) Get(ctx context.Context, id int64) (*model.Book, error) {
	b, err := store.GetBook(ctx, m.db, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: id %d", model.ErrNotFound, id)
	}
	return b, nil
}

// Lookup returns a stored book classified at the current time.
func (m *Manager) Lookup(ctx context.Context, id int64) (*Entry, error) {
	b, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	status := lending.StatusOf(*b, m.now())
	return &Entry{Book: *b, Status: status, Overdue: status == model.LoanStateOverdue}, nil
}

// AddBook stores a new book. The id is assigned when b.ID is zero. Books are
// added as available; use Lend to put one on loan.
func (m *Manager) AddBook(ctx context.Context, b model.Book) (*model.Book, error) {
	if b.OnLoan {
		return nil, fmt.Errorf("%w: new books are added as available", model.ErrValidation)
	}

	created, err := store.AddBook(ctx, m.db, b)
	if err != nil {
		return nil, err
	}

	slog.Info("book added", "id", created.ID, "catalog_number", created.CatalogNumber)
	m.refreshAfterWrite(ctx)
	return created, nil
}

// Lend puts a book on loan.
func (m *Manager) Lend(ctx context.Context, id int64, req lending.Request) (*model.Book, error) {
	var lent model.Book
	err := store.RunInTx(ctx, m.db, func(tx *sql.Tx) error {
		b, err := store.GetBook(ctx, tx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("%w: id %d", model.ErrNotFound, id)
		}

		lent, err = lending.Lend(*b, req, m.now())
		if err != nil {
			return err
		}
		return store.UpdateBook(ctx, tx, lent)
	})
	if err != nil {
		return nil, err
	}

	m.metrics.Loans.Inc()
	slog.Info("book lent", "id", id, "borrower", lent.BorrowerName, "due", lent.DueDate)
	m.refreshAfterWrite(ctx)
	return &lent, nil
}

// Return clears a book's loan. Returning an available book changes nothing.
func (m *Manager) Return(ctx context.Context, id int64) (*model.Book, error) {
	var returned model.Book
	var wasOnLoan bool
	err := store.RunInTx(ctx, m.db, func(tx *sql.Tx) error {
		b, err := store.GetBook(ctx, tx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("%w: id %d", model.ErrNotFound, id)
		}

		wasOnLoan = b.OnLoan
		returned = lending.Return(*b)
		if !wasOnLoan {
			return nil
		}
		return store.UpdateBook(ctx, tx, returned)
	})
	if err != nil {
		return nil, err
	}

	if wasOnLoan {
		m.metrics.Returns.Inc()
		slog.Info("book returned", "id", id)
		m.refreshAfterWrite(ctx)
	}
	return &returned, nil
}

// Delete removes a book.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if err := store.DeleteBook(ctx, m.db, id); err != nil {
		return err
	}

	slog.Info("book deleted", "id", id)
	m.refreshAfterWrite(ctx)
	return nil
}

// SetCover normalizes and stores a cover image.
func (m *Manager) SetCover(ctx context.Context, id int64, data []byte) (*imaging.Cover, error) {
	cover, err := imaging.NormalizeCover(data)
	if err != nil {
		return nil, err
	}
	if err := store.SetBookCover(ctx, m.db, id, cover.Data, cover.MIME); err != nil {
		return nil, err
	}

	slog.Info("cover stored", "id", id, "width", cover.Width, "height", cover.Height, "bytes", len(cover.Data))
	return cover, nil
}

// Cover returns a stored cover, or model.ErrNotFound when the book or its
// cover is missing.
func (m *Manager) Cover(ctx context.Context, id int64) ([]byte, string, error) {
	data, mime, err := store.GetBookCover(ctx, m.db, id)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", fmt.Errorf("%w: no cover for id %d", model.ErrNotFound, id)
	}
	return data, mime, nil
}

// Export serializes the catalog.
func (m *Manager) Export(ctx context.Context, format codec.Format) (*exchange.File, error) {
	f, err := exchange.Export(ctx, m.db, format, m.name, m.now())
	if err != nil {
		return nil, err
	}

	if err := store.SetSetting(ctx, m.db, store.SettingLastExportAt, m.now().UTC().Format(time.RFC3339)); err != nil {
		slog.Error("failed to record export time", "error", err)
	}

	m.metrics.Exports.WithLabelValues(string(format)).Inc()
	slog.Info("catalog exported", "format", format, "records", f.Records)
	return f, nil
}

// Import replaces the catalog with the contents of a file. The view is
// replaced with the imported catalog on success.
func (m *Manager) Import(ctx context.Context, filename string, data []byte, confirm exchange.ConfirmFunc) (*exchange.Result, error) {
	result, err := exchange.Import(ctx, m.db, filename, data, confirm, m.now())
	if err != nil {
		return nil, err
	}

	m.setView(result.Books)
	m.metrics.ImportRecords.WithLabelValues("imported").Add(float64(result.Imported))
	m.metrics.ImportRecords.WithLabelValues("skipped").Add(float64(len(result.Skipped)))

	for _, s := range result.Skipped {
		slog.Warn("import record skipped", "index", s.Index, "catalog_number", s.CatalogNumber, "reason", s.Reason)
	}
	slog.Info("catalog imported", "file", filename, "replaced", result.Replaced,
		"imported", result.Imported, "skipped", len(result.Skipped))
	return result, nil
}

// Ping checks that the store is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

// Info describes the catalog as a whole.
type Info struct {
	DatabaseName   string `json:"databaseName"`
	StoreName      string `json:"storeName"`
	Books          int    `json:"books"`
	CreatedAt      string `json:"createdAt"`
	LastImportAt   string `json:"lastImportAt,omitempty"`
	LastImportFile string `json:"lastImportFile,omitempty"`
	LastExportAt   string `json:"lastExportAt,omitempty"`
}

// Info returns the catalog metadata.
func (m *Manager) Info(ctx context.Context) (*Info, error) {
	info := &Info{DatabaseName: m.name, StoreName: codec.StoreName, Books: len(m.View())}

	for key, dst := range map[string]*string{
		store.SettingCreatedAt:      &info.CreatedAt,
		store.SettingLastImportAt:   &info.LastImportAt,
		store.SettingLastImportFile: &info.LastImportFile,
		store.SettingLastExportAt:   &info.LastExportAt,
	} {
		v, err := store.GetSetting(ctx, m.db, key)
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	return info, nil
}
