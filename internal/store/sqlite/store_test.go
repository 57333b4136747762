package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/practicalwork/library-server/internal/domain"
	"github.com/practicalwork/library-server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func makeTestBook(id, title string, authors ...string) *domain.Book {
	return domain.NewBook(id, domain.BookDraft{
		Title:    title,
		Authors:  authors,
		Year:     2001,
		Category: domain.CategoryFiction,
	}, testNow)
}

func makeTestReader(id, name, phone string) *domain.Reader {
	return domain.NewReader(id, domain.ReaderDraft{FullName: name, PhoneNumber: phone}, testNow, 365*24*time.Hour)
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Verify foreign keys are enabled.
	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	for _, table := range []string{"books", "readers", "borrows"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Re-open should work (schema is idempotent).
	s2, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("re-open store: %v", err)
	}
	defer s2.Close()
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(r store.Repositories) error {
		return r.Books().Create(ctx, makeTestBook("book-1", "Dune", "Frank Herbert"))
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	if _, err := s.Books().GetByID(ctx, "book-1"); err != nil {
		t.Errorf("expected committed book, got %v", err)
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(r store.Repositories) error {
		if err := r.Books().Create(ctx, makeTestBook("book-1", "Dune", "Frank Herbert")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := s.Books().GetByID(ctx, "book-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected rollback, got %v", err)
	}
}

func TestWithinTx_RollsBackOnCancel(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(r store.Repositories) error {
		if err := r.Books().Create(ctx, makeTestBook("book-1", "Dune", "Frank Herbert")); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if _, err := s.Books().GetByID(context.Background(), "book-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected rollback, got %v", err)
	}
}

func TestWithinTx_ConcurrentConditionalUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Books().Create(ctx, makeTestBook("book-1", "Dune", "Frank Herbert")); err != nil {
		t.Fatalf("create book: %v", err)
	}

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		conflict int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(r store.Repositories) error {
				return r.Books().UpdateStatus(ctx, "book-1", domain.BookAvailable, domain.BookBorrowed, testNow)
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, store.ErrStatusChanged):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflict != workers-1 {
		t.Errorf("expected 1 win and %d conflicts, got %d and %d", workers-1, wins, conflict)
	}
}
