package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/practicalwork/library-server/internal/cache"
	"github.com/practicalwork/library-server/internal/domain"
	"github.com/practicalwork/library-server/internal/events"
	"github.com/practicalwork/library-server/internal/media/images"
	"github.com/practicalwork/library-server/internal/search"
	"github.com/practicalwork/library-server/internal/store/sqlite"
)

// testClock is a settable clock shared by the services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]events.EventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

func (p *recordingPublisher) Last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

// testEnv wires the lifecycle services to real infrastructure in a temp dir.
type testEnv struct {
	store     *sqlite.Store
	cache     *cache.Registry
	storage   *images.Storage
	index     *search.SearchIndex
	publisher *recordingPublisher
	clock     *testClock

	books   *BookService
	readers *ReaderService
	borrows *BorrowService
}

func setupTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(filepath.Join(dir, "library.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	registry := cache.NewRegistry(cache.NewSturdyc(cache.SturdycConfig{Capacity: 1000, TTL: time.Minute}), time.Minute, logger)
	t.Cleanup(func() { _ = registry.Close() })

	storage, err := images.NewStorage(filepath.Join(dir, "objects"), "library", "http://localhost:8080/files")
	require.NoError(t, err)

	index, err := search.NewSearchIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	options := DefaultOptions()
	for _, o := range opts {
		o(&options)
	}

	env := &testEnv{
		store:     st,
		cache:     registry,
		storage:   storage,
		index:     index,
		publisher: &recordingPublisher{},
		clock:     &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	deps := Dependencies{
		Store:     st,
		Cache:     registry,
		Storage:   storage,
		Index:     index,
		Publisher: env.publisher,
		Options:   options,
		Logger:    logger,
		Now:       env.clock.Now,
	}
	env.books = NewBookService(deps)
	env.readers = NewReaderService(deps)
	env.borrows = NewBorrowService(deps)

	return env
}

func (e *testEnv) createBook(t *testing.T, title string, category domain.BookCategory, authors ...string) string {
	t.Helper()
	if len(authors) == 0 {
		authors = []string{"Frank Herbert"}
	}
	// Books list in creation order; keep creation times distinct.
	e.clock.Advance(time.Second)
	bookID, err := e.books.CreateBook(context.Background(), domain.BookDraft{
		Title:    title,
		Authors:  authors,
		Year:     1965,
		Category: category,
	})
	require.NoError(t, err)
	return bookID
}

func (e *testEnv) createReader(t *testing.T, name, phone string) string {
	t.Helper()
	readerID, err := e.readers.CreateReader(context.Background(), domain.ReaderDraft{
		FullName:    name,
		PhoneNumber: phone,
	})
	require.NoError(t, err)
	return readerID
}

func (e *testEnv) book(t *testing.T, bookID string) *domain.Book {
	t.Helper()
	book, err := e.store.Books().GetByID(context.Background(), bookID)
	require.NoError(t, err)
	return book
}

func TestDependencies_Defaults(t *testing.T) {
	deps := Dependencies{}.withDefaults()

	require.NotNil(t, deps.Cache)
	require.NotNil(t, deps.Storage)
	require.NotNil(t, deps.Index)
	require.NotNil(t, deps.Publisher)
	require.NotNil(t, deps.Validator)
	require.NotNil(t, deps.Logger)
	require.NotNil(t, deps.Now)
	require.Equal(t, DefaultOptions(), deps.Options)
}

func TestOptions_WithDefaultsKeepsOverrides(t *testing.T) {
	opts := Options{LoanPeriod: 14 * 24 * time.Hour}.withDefaults()

	require.Equal(t, 14*24*time.Hour, opts.LoanPeriod)
	require.Equal(t, 365*24*time.Hour, opts.CardValidity)
	require.Equal(t, int64(5_000_000), opts.MaxCoverSize)
	require.Equal(t, 10*time.Minute, opts.CacheTTL)
}
