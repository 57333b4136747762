package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/practicalwork/library-server/internal/domain"
	"github.com/practicalwork/library-server/internal/store"
)

const readerColumns = `id, created_at, updated_at, full_name, phone_number, expiry_date, is_active`

type readerRepository struct {
	q querier
}

var _ store.ReaderRepository = (*readerRepository)(nil)

func scanReader(scanner interface{ Scan(dest ...any) error }) (*domain.Reader, error) {
	var r domain.Reader

	var (
		createdAt  string
		updatedAt  string
		expiryDate string
		isActive   int
	)

	err := scanner.Scan(
		&r.ID,
		&createdAt,
		&updatedAt,
		&r.FullName,
		&r.PhoneNumber,
		&expiryDate,
		&isActive,
	)
	if err != nil {
		return nil, err
	}

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if r.ExpiryDate, err = parseTime(expiryDate); err != nil {
		return nil, err
	}
	r.IsActive = isActive != 0

	return &r, nil
}

func (r *readerRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Reader, error) {
	reader, err := scanReader(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return reader, nil
}

// Create inserts a reader.
// Returns store.ErrAlreadyExists on duplicate ID or phone number.
func (r *readerRepository) Create(ctx context.Context, reader *domain.Reader) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO readers (`+readerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reader.ID,
		formatTime(reader.CreatedAt),
		formatTime(reader.UpdatedAt),
		reader.FullName,
		reader.PhoneNumber,
		formatTime(reader.ExpiryDate),
		boolToInt(reader.IsActive),
	)
	return mapWriteError(err)
}

// GetByID retrieves a reader by ID.
func (r *readerRepository) GetByID(ctx context.Context, id string) (*domain.Reader, error) {
	return r.getOne(ctx, `SELECT `+readerColumns+` FROM readers WHERE id = ?`, id)
}

// GetByPhone retrieves a reader by phone number.
func (r *readerRepository) GetByPhone(ctx context.Context, phone string) (*domain.Reader, error) {
	return r.getOne(ctx, `SELECT `+readerColumns+` FROM readers WHERE phone_number = ?`, phone)
}

// GetByName retrieves the first reader created with this exact full name.
func (r *readerRepository) GetByName(ctx context.Context, fullName string) (*domain.Reader, error) {
	return r.getOne(ctx, `
		SELECT `+readerColumns+` FROM readers
		WHERE full_name = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1`, fullName)
}

// Update overwrites the mutable columns of a reader.
func (r *readerRepository) Update(ctx context.Context, reader *domain.Reader) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE readers SET
			updated_at = ?,
			full_name = ?,
			phone_number = ?,
			expiry_date = ?,
			is_active = ?
		WHERE id = ?`,
		formatTime(reader.UpdatedAt),
		reader.FullName,
		reader.PhoneNumber,
		formatTime(reader.ExpiryDate),
		boolToInt(reader.IsActive),
		reader.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return checkAffected(result)
}
