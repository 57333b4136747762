// Package store defines the persistence interfaces of the library service.
package store

import (
	"context"
	"time"

	"github.com/practicalwork/library-server/internal/domain"
)

// BookRepository persists books.
type BookRepository interface {
	Create(ctx context.Context, book *domain.Book) error
	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*domain.Book, error)
	// Update writes every column of an existing book. Returns ErrNotFound
	// when the row is missing.
	Update(ctx context.Context, book *domain.Book) error
	// Find returns the books matching filter ordered by creation time.
	Find(ctx context.Context, filter domain.BookFilter) ([]*domain.Book, error)
	// UpdateStatus moves the book from one status to another only if it is
	// still in from. Returns ErrStatusChanged when it is not, ErrNotFound
	// when the book does not exist.
	UpdateStatus(ctx context.Context, id string, from, to domain.BookStatus, at time.Time) error
	// BooksForReader returns the books of the reader's outstanding borrows.
	BooksForReader(ctx context.Context, readerID string) ([]*domain.Book, error)
}

// ReaderRepository persists readers.
type ReaderRepository interface {
	// Create returns ErrAlreadyExists when the phone number is taken.
	Create(ctx context.Context, reader *domain.Reader) error
	GetByID(ctx context.Context, id string) (*domain.Reader, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Reader, error)
	// GetByName returns the earliest created reader with this exact full name.
	GetByName(ctx context.Context, fullName string) (*domain.Reader, error)
	Update(ctx context.Context, reader *domain.Reader) error
}

// BorrowRepository persists borrows.
type BorrowRepository interface {
	// Create returns ErrAlreadyExists when the book already has an
	// outstanding borrow.
	Create(ctx context.Context, borrow *domain.Borrow) error
	GetByID(ctx context.Context, id string) (*domain.Borrow, error)
	Update(ctx context.Context, borrow *domain.Borrow) error
	// GetActiveByBook returns the Issued or Overdue borrow of a book.
	GetActiveByBook(ctx context.Context, bookID string) (*domain.Borrow, error)
	// ListByReader returns every borrow of a reader, newest first.
	ListByReader(ctx context.Context, readerID string) ([]*domain.Borrow, error)
	// GetLatestByReader returns the reader's borrow with the latest borrow date.
	GetLatestByReader(ctx context.Context, readerID string) (*domain.Borrow, error)
	// ListOverdueCandidates returns Issued borrows due before now.
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Borrow, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Books() BookRepository
	Readers() ReaderRepository
	Borrows() BorrowRepository
}

// Store is the persistence root.
type Store interface {
	Repositories

	// WithinTx runs fn inside a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise, including when ctx is
	// canceled.
	WithinTx(ctx context.Context, fn func(Repositories) error) error

	Close() error
}
