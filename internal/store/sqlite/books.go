package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/practicalwork/library-server/internal/domain"
	"github.com/practicalwork/library-server/internal/store"
)

// bookColumnNames is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
var bookColumnNames = []string{
	"id", "created_at", "updated_at",
	"title", "authors", "description", "year",
	"category", "status", "cover_image_path", "cover_blur_hash", "is_archived",
}

var bookColumns = strings.Join(bookColumnNames, ", ")

// bookSelect returns the book columns qualified by table for goqu queries.
func bookSelect(table string) []any {
	cols := make([]any, len(bookColumnNames))
	for i, c := range bookColumnNames {
		cols[i] = goqu.I(table + "." + c)
	}
	return cols
}

type bookRepository struct {
	q querier
}

var _ store.BookRepository = (*bookRepository)(nil)

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		createdAt  string
		updatedAt  string
		authors    string
		desc       sql.NullString
		category   string
		status     string
		coverPath  sql.NullString
		blurHash   sql.NullString
		isArchived int
	)

	err := scanner.Scan(
		&b.ID,
		&createdAt,
		&updatedAt,
		&b.Title,
		&authors,
		&desc,
		&b.Year,
		&category,
		&status,
		&coverPath,
		&blurHash,
		&isArchived,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(authors), &b.Authors); err != nil {
		return nil, fmt.Errorf("unmarshal authors: %w", err)
	}

	b.Category = domain.BookCategory(category)
	b.Status = domain.BookStatus(status)
	b.IsArchived = isArchived != 0

	if desc.Valid {
		b.Description = desc.String
	}
	if coverPath.Valid {
		p := coverPath.String
		b.CoverImagePath = &p
	}
	if blurHash.Valid {
		b.CoverBlurHash = blurHash.String
	}

	return &b, nil
}

func scanBooks(rows *sql.Rows) ([]*domain.Book, error) {
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

func marshalAuthors(authors []string) (string, error) {
	if authors == nil {
		authors = []string{}
	}
	data, err := json.Marshal(authors)
	if err != nil {
		return "", fmt.Errorf("marshal authors: %w", err)
	}
	return string(data), nil
}

// Create inserts a book row.
// Returns store.ErrAlreadyExists on duplicate ID.
func (r *bookRepository) Create(ctx context.Context, book *domain.Book) error {
	authors, err := marshalAuthors(book.Authors)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
		book.Title,
		authors,
		nullString(book.Description),
		book.Year,
		string(book.Category),
		string(book.Status),
		nullableString(book.CoverImagePath),
		nullString(book.CoverBlurHash),
		boolToInt(book.IsArchived),
	)
	return mapWriteError(err)
}

// GetByID retrieves a book by ID.
// Returns store.ErrNotFound if the book does not exist.
func (r *bookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Update overwrites the mutable columns of a book.
// Returns store.ErrNotFound if the book does not exist.
func (r *bookRepository) Update(ctx context.Context, book *domain.Book) error {
	authors, err := marshalAuthors(book.Authors)
	if err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE books SET
			updated_at = ?,
			title = ?,
			authors = ?,
			description = ?,
			year = ?,
			status = ?,
			cover_image_path = ?,
			cover_blur_hash = ?,
			is_archived = ?
		WHERE id = ?`,
		formatTime(book.UpdatedAt),
		book.Title,
		authors,
		nullString(book.Description),
		book.Year,
		string(book.Status),
		nullableString(book.CoverImagePath),
		nullString(book.CoverBlurHash),
		boolToInt(book.IsArchived),
		book.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return checkAffected(result)
}

// Find returns the books matching the filter, oldest first.
func (r *bookRepository) Find(ctx context.Context, filter domain.BookFilter) ([]*domain.Book, error) {
	query, args, err := bookFilterQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build book query: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanBooks(rows)
}

// bookFilterQuery builds the SELECT for a filter. Every listed author must
// appear in the book's authors array.
func bookFilterQuery(filter domain.BookFilter) (string, []any, error) {
	ds := dialect.From("books").Select(bookSelect("books")...)

	if filter.Category != nil {
		ds = ds.Where(goqu.I("books.category").Eq(string(*filter.Category)))
	}
	if filter.Status != nil {
		ds = ds.Where(goqu.I("books.status").Eq(string(*filter.Status)))
	}
	if filter.Year != 0 {
		ds = ds.Where(goqu.I("books.year").Eq(filter.Year))
	}
	if filter.ExcludeArchived {
		ds = ds.Where(goqu.I("books.is_archived").Eq(0))
	}
	for _, author := range filter.Authors {
		ds = ds.Where(goqu.L("EXISTS (SELECT 1 FROM json_each(books.authors) WHERE json_each.value = ?)", author))
	}

	return ds.Order(goqu.I("books.created_at").Asc(), goqu.I("books.id").Asc()).Prepared(true).ToSQL()
}

// UpdateStatus moves a book between statuses only if it is still in from.
func (r *bookRepository) UpdateStatus(ctx context.Context, id string, from, to domain.BookStatus, at time.Time) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE books SET status = ?, is_archived = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), boolToInt(to == domain.BookArchived), formatTime(at),
		id, string(from),
	)
	if err != nil {
		return mapWriteError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Nothing changed: either the book is gone or someone moved it first.
	var exists int
	err = r.q.QueryRowContext(ctx, `SELECT 1 FROM books WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrStatusChanged
}

// BooksForReader returns the books the reader currently holds, in borrow order.
func (r *bookRepository) BooksForReader(ctx context.Context, readerID string) ([]*domain.Book, error) {
	query, args, err := dialect.From("books").
		Select(bookSelect("books")...).
		Join(goqu.T("borrows"), goqu.On(goqu.I("borrows.book_id").Eq(goqu.I("books.id")))).
		Where(
			goqu.I("borrows.reader_id").Eq(readerID),
			goqu.I("borrows.return_date").IsNull(),
		).
		Order(goqu.I("borrows.borrow_date").Asc(), goqu.I("books.id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build reader books query: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanBooks(rows)
}
