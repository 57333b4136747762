package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/practicalwork/library-server/internal/cache"
	"github.com/practicalwork/library-server/internal/domain"
	domainerrors "github.com/practicalwork/library-server/internal/errors"
	"github.com/practicalwork/library-server/internal/events"
	"github.com/practicalwork/library-server/internal/id"
	"github.com/practicalwork/library-server/internal/normalize"
	"github.com/practicalwork/library-server/internal/store"
)

// BorrowService lends and takes back books.
//
// A book's status is the single source of truth for availability: a
// borrow is only issued for an Available book and the flip to Borrowed is
// a conditional update, so at most one loan per book is ever outstanding.
type BorrowService struct {
	store     store.Store
	cache     Cache
	publisher events.Publisher
	opts      Options
	now       func() time.Time
	logger    *slog.Logger
}

// NewBorrowService creates a new borrow service.
func NewBorrowService(deps Dependencies) *BorrowService {
	deps = deps.withDefaults()
	return &BorrowService{
		store:     deps.Store,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		opts:      deps.Options,
		now:       deps.Now,
		logger:    deps.Logger,
	}
}

// CreateBorrow lends a book to a reader and returns the borrow id.
func (s *BorrowService) CreateBorrow(ctx context.Context, bookID, readerID string) (string, error) {
	borrowID, err := id.Generate(id.PrefixBorrow)
	if err != nil {
		return "", fmt.Errorf("generate borrow ID: %w", err)
	}

	var borrow *domain.Borrow
	err = s.store.WithinTx(ctx, func(repos store.Repositories) error {
		now := s.now()

		// 1. The book must be on the shelf
		book, err := repos.Books().GetByID(ctx, bookID)
		if err != nil {
			return notFound(err, "get book", "book %s not found", bookID)
		}
		if err := book.MarkBorrowed(now); err != nil {
			return err
		}

		// 2. The reader must hold an active card
		reader, err := repos.Readers().GetByID(ctx, readerID)
		if err != nil {
			return notFound(err, "get reader", "reader %s not found", readerID)
		}
		if err := reader.EnsureActive(); err != nil {
			return err
		}

		// 3. Record the loan and flip the book
		borrow = domain.NewBorrow(borrowID, book.ID, reader.ID, now, s.opts.LoanPeriod)
		err = repos.Borrows().Create(ctx, borrow)
		if errors.Is(err, store.ErrAlreadyExists) {
			return domainerrors.Conflictf("book %s already has an outstanding borrow", bookID).WithCause(err)
		}
		if err != nil {
			return fmt.Errorf("create borrow: %w", err)
		}

		err = repos.Books().UpdateStatus(ctx, bookID, domain.BookAvailable, domain.BookBorrowed, now)
		if errors.Is(err, store.ErrStatusChanged) {
			return domainerrors.Conflictf("book %s was taken by another borrow", bookID).WithCause(err)
		}
		if err != nil {
			return fmt.Errorf("mark book borrowed: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.invalidate(ctx, bookID)
	s.publisher.Publish(events.NewBookBorrowedEvent(borrow))

	s.logger.Info("book borrowed",
		"borrow_id", borrow.ID,
		"book_id", bookID,
		"reader_id", readerID,
		"due_date", borrow.DueDate,
	)

	return borrow.ID, nil
}

// ReturnBook closes the outstanding loan of a book and puts it back on the shelf.
// Overdue loans are returned the same way.
func (s *BorrowService) ReturnBook(ctx context.Context, bookID string) error {
	var borrow *domain.Borrow
	err := s.store.WithinTx(ctx, func(repos store.Repositories) error {
		now := s.now()

		var err error
		borrow, err = repos.Borrows().GetActiveByBook(ctx, bookID)
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.InvalidStatef("book %s has no outstanding borrow", bookID)
		}
		if err != nil {
			return fmt.Errorf("get active borrow: %w", err)
		}

		if err := borrow.Return(now); err != nil {
			return err
		}
		if err := repos.Borrows().Update(ctx, borrow); err != nil {
			return fmt.Errorf("update borrow: %w", err)
		}

		err = repos.Books().UpdateStatus(ctx, bookID, domain.BookBorrowed, domain.BookAvailable, now)
		if errors.Is(err, store.ErrStatusChanged) {
			return domainerrors.Conflictf("book %s is not marked borrowed", bookID).WithCause(err)
		}
		if err != nil {
			return fmt.Errorf("mark book available: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, bookID)
	s.cache.Remove(ctx, cache.BorrowKey(borrow.ID))
	s.publisher.Publish(events.NewBookReturnedEvent(borrow))

	s.logger.Info("book returned",
		"borrow_id", borrow.ID,
		"book_id", bookID,
		"reader_id", borrow.ReaderID,
	)

	return nil
}

// GetAvailableBooks returns the non-archived books matching filter.
func (s *BorrowService) GetAvailableBooks(ctx context.Context, filter domain.BookFilter) ([]*domain.Book, error) {
	filter.ExcludeArchived = true
	filter.Authors = normalize.Authors(filter.Authors)

	key := cache.KeySerializer{}.SerializeKey("AvailableBooks", filter)
	return cache.Through(ctx, s.cache, key, cache.TagAvailableBooks, s.opts.CacheTTL,
		func(ctx context.Context) ([]*domain.Book, error) {
			books, err := s.store.Books().Find(ctx, filter)
			if err != nil {
				return nil, fmt.Errorf("find available books: %w", err)
			}
			if books == nil {
				books = []*domain.Book{}
			}
			return books, nil
		})
}

// GetDetails looks up a borrow by id, or, when the input is not a borrow
// id, returns the latest borrow of the first reader with that exact name.
func (s *BorrowService) GetDetails(ctx context.Context, idOrReaderName string) (*domain.Borrow, error) {
	if id.Is(id.PrefixBorrow, idOrReaderName) {
		return cache.Through(ctx, s.cache, cache.BorrowKey(idOrReaderName), cache.TagBorrows, s.opts.CacheTTL,
			func(ctx context.Context) (*domain.Borrow, error) {
				borrow, err := s.store.Borrows().GetByID(ctx, idOrReaderName)
				if err != nil {
					return nil, notFound(err, "get borrow", "borrow %s not found", idOrReaderName)
				}
				return borrow, nil
			})
	}

	name := normalize.FullName(idOrReaderName)
	reader, err := s.store.Readers().GetByName(ctx, name)
	if err != nil {
		return nil, notFound(err, "get reader by name", "no reader named %q", name)
	}
	borrow, err := s.store.Borrows().GetLatestByReader(ctx, reader.ID)
	if err != nil {
		return nil, notFound(err, "get latest borrow", "reader %s has no borrows", reader.ID)
	}
	return borrow, nil
}

// GetByReader returns the reader's most recent borrow.
func (s *BorrowService) GetByReader(ctx context.Context, readerID string) (*domain.Borrow, error) {
	if _, err := s.store.Readers().GetByID(ctx, readerID); err != nil {
		return nil, notFound(err, "get reader", "reader %s not found", readerID)
	}
	borrow, err := s.store.Borrows().GetLatestByReader(ctx, readerID)
	if err != nil {
		return nil, notFound(err, "get latest borrow", "reader %s has no borrows", readerID)
	}
	return borrow, nil
}

// MarkOverdue moves every issued borrow past its due date at now to
// Overdue and returns how many changed.
func (s *BorrowService) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	var changed []string
	err := s.store.WithinTx(ctx, func(repos store.Repositories) error {
		candidates, err := repos.Borrows().ListOverdueCandidates(ctx, now)
		if err != nil {
			return fmt.Errorf("list overdue candidates: %w", err)
		}
		for _, borrow := range candidates {
			if !borrow.MarkOverdue(now) {
				continue
			}
			if err := repos.Borrows().Update(ctx, borrow); err != nil {
				return fmt.Errorf("update borrow %s: %w", borrow.ID, err)
			}
			changed = append(changed, borrow.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(changed) > 0 {
		s.cache.ClearByTag(ctx, cache.TagBorrows)
		s.logger.Info("borrows marked overdue", "count", len(changed))
	}

	return len(changed), nil
}

// invalidate clears the cached views a loan or return changes.
func (s *BorrowService) invalidate(ctx context.Context, bookID string) {
	s.cache.ClearByTag(ctx, cache.TagBorrows)
	s.cache.ClearByTag(ctx, cache.TagAvailableBooks)
	s.cache.ClearByTag(ctx, cache.TagBooks)
	s.cache.Remove(ctx, cache.BookDetailsKey(bookID))
}
