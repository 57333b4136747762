package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/practicalwork/library-server/internal/domain"
	"github.com/practicalwork/library-server/internal/store"
)

const borrowColumns = `id, book_id, reader_id, borrow_date, due_date, return_date, status`

type borrowRepository struct {
	q querier
}

var _ store.BorrowRepository = (*borrowRepository)(nil)

func scanBorrow(scanner interface{ Scan(dest ...any) error }) (*domain.Borrow, error) {
	var b domain.Borrow

	var (
		borrowDate string
		dueDate    string
		returnDate sql.NullString
		status     string
	)

	err := scanner.Scan(
		&b.ID,
		&b.BookID,
		&b.ReaderID,
		&borrowDate,
		&dueDate,
		&returnDate,
		&status,
	)
	if err != nil {
		return nil, err
	}

	if b.BorrowDate, err = parseTime(borrowDate); err != nil {
		return nil, err
	}
	if b.DueDate, err = parseTime(dueDate); err != nil {
		return nil, err
	}
	if b.ReturnDate, err = parseNullableTime(returnDate); err != nil {
		return nil, err
	}
	b.Status = domain.BorrowStatus(status)

	return &b, nil
}

func (r *borrowRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Borrow, error) {
	borrow, err := scanBorrow(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return borrow, nil
}

func (r *borrowRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Borrow, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var borrows []*domain.Borrow
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, err
		}
		borrows = append(borrows, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return borrows, nil
}

// Create inserts a borrow.
// Returns store.ErrAlreadyExists when the book already has an outstanding
// borrow and store.ErrNotFound when the book or reader is missing.
func (r *borrowRepository) Create(ctx context.Context, borrow *domain.Borrow) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO borrows (`+borrowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		borrow.ID,
		borrow.BookID,
		borrow.ReaderID,
		formatTime(borrow.BorrowDate),
		formatTime(borrow.DueDate),
		nullTimeString(borrow.ReturnDate),
		string(borrow.Status),
	)
	return mapWriteError(err)
}

// GetByID retrieves a borrow by ID.
func (r *borrowRepository) GetByID(ctx context.Context, id string) (*domain.Borrow, error) {
	return r.getOne(ctx, `SELECT `+borrowColumns+` FROM borrows WHERE id = ?`, id)
}

// Update writes the status and return date of a borrow.
func (r *borrowRepository) Update(ctx context.Context, borrow *domain.Borrow) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE borrows SET return_date = ?, status = ?
		WHERE id = ?`,
		nullTimeString(borrow.ReturnDate),
		string(borrow.Status),
		borrow.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return checkAffected(result)
}

// GetActiveByBook retrieves the outstanding borrow of a book.
func (r *borrowRepository) GetActiveByBook(ctx context.Context, bookID string) (*domain.Borrow, error) {
	return r.getOne(ctx, `
		SELECT `+borrowColumns+` FROM borrows
		WHERE book_id = ? AND status IN (?, ?)`,
		bookID, string(domain.BorrowIssued), string(domain.BorrowOverdue))
}

// ListByReader returns the reader's borrows, newest first.
func (r *borrowRepository) ListByReader(ctx context.Context, readerID string) ([]*domain.Borrow, error) {
	return r.list(ctx, `
		SELECT `+borrowColumns+` FROM borrows
		WHERE reader_id = ?
		ORDER BY borrow_date DESC, id ASC`, readerID)
}

// GetLatestByReader returns the reader's most recent borrow.
func (r *borrowRepository) GetLatestByReader(ctx context.Context, readerID string) (*domain.Borrow, error) {
	return r.getOne(ctx, `
		SELECT `+borrowColumns+` FROM borrows
		WHERE reader_id = ?
		ORDER BY borrow_date DESC, id ASC
		LIMIT 1`, readerID)
}

// ListOverdueCandidates returns Issued borrows whose due date is before now.
func (r *borrowRepository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Borrow, error) {
	return r.list(ctx, `
		SELECT `+borrowColumns+` FROM borrows
		WHERE status = ? AND due_date < ?
		ORDER BY due_date ASC, id ASC`,
		string(domain.BorrowIssued), formatTime(now))
}
