package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/practicalwork/library-server/internal/cache"
	"github.com/practicalwork/library-server/internal/domain"
	domainerrors "github.com/practicalwork/library-server/internal/errors"
	"github.com/practicalwork/library-server/internal/events"
	"github.com/practicalwork/library-server/internal/id"
	"github.com/practicalwork/library-server/internal/media/images"
	"github.com/practicalwork/library-server/internal/normalize"
	"github.com/practicalwork/library-server/internal/search"
	"github.com/practicalwork/library-server/internal/store"
	"github.com/practicalwork/library-server/internal/validation"
)

const (
	// DefaultPageSize is used when a caller asks for a page size below 1.
	DefaultPageSize = 10
	// MaxPageSize is the largest page GetBooks serves.
	MaxPageSize = 100
)

// Cover is an uploaded cover image.
type Cover struct {
	Data        []byte
	FileName    string
	ContentType string
}

// BookService manages the catalogue.
type BookService struct {
	store     store.Store
	cache     Cache
	storage   ObjectStorage
	index     BookIndex
	publisher events.Publisher
	validator *validation.Validator
	opts      Options
	now       func() time.Time
	logger    *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(deps Dependencies) *BookService {
	deps = deps.withDefaults()
	return &BookService{
		store:     deps.Store,
		cache:     deps.Cache,
		storage:   deps.Storage,
		index:     deps.Index,
		publisher: deps.Publisher,
		validator: deps.Validator,
		opts:      deps.Options,
		now:       deps.Now,
		logger:    deps.Logger,
	}
}

// CreateBook adds an available book to the catalogue and returns its id.
// Titles and authors are not unique.
func (s *BookService) CreateBook(ctx context.Context, draft domain.BookDraft) (string, error) {
	draft.Title = normalize.Text(draft.Title)
	draft.Authors = normalize.Authors(draft.Authors)
	draft.Description = normalize.Description(draft.Description)
	if draft.Category == "" {
		draft.Category = domain.CategoryDefault
	}

	if err := s.validator.Validate(draft); err != nil {
		return "", err
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return "", fmt.Errorf("generate book ID: %w", err)
	}

	book := domain.NewBook(bookID, draft, s.now())

	if err := s.store.WithinTx(ctx, func(repos store.Repositories) error {
		return repos.Books().Create(ctx, book)
	}); err != nil {
		return "", fmt.Errorf("create book: %w", err)
	}

	s.cache.ClearByTag(ctx, cache.TagBooks)
	s.cache.ClearByTag(ctx, cache.TagAvailableBooks)
	s.indexBook(book)
	s.publisher.Publish(events.NewBookCreatedEvent(book))

	s.logger.Info("book created",
		"book_id", book.ID,
		"title", book.Title,
		"category", book.Category,
	)

	return book.ID, nil
}

// UpdateBook replaces the editable fields of a book. The category cannot
// change; a status change is accepted only towards Archived.
func (s *BookService) UpdateBook(ctx context.Context, bookID string, update domain.BookUpdate) error {
	update.Title = normalize.Text(update.Title)
	update.Authors = normalize.Authors(update.Authors)
	update.Description = normalize.Description(update.Description)

	var (
		book     *domain.Book
		archived bool
	)
	err := s.store.WithinTx(ctx, func(repos store.Repositories) error {
		var err error
		book, err = repos.Books().GetByID(ctx, bookID)
		if err != nil {
			return notFound(err, "get book", "book %s not found", bookID)
		}

		// Category mismatch is reported before field validation.
		if update.Category != book.Category {
			return domainerrors.InvalidTransitionf("book %s category cannot change from %s to %s",
				bookID, book.Category, update.Category)
		}
		if err := s.validator.Validate(update); err != nil {
			return err
		}

		wasArchived := book.IsArchived
		if err := book.Apply(update, s.now()); err != nil {
			return err
		}
		archived = book.IsArchived && !wasArchived

		return repos.Books().Update(ctx, book)
	})
	if err != nil {
		return err
	}

	s.invalidateBook(ctx, bookID)
	s.indexBook(book)
	if archived {
		s.publisher.Publish(events.NewBookArchivedEvent(book))
	}

	s.logger.Info("book updated", "book_id", bookID, "archived", archived)

	return nil
}

// ArchiveBook takes a book out of circulation and returns it.
// A borrowed book cannot be archived.
func (s *BookService) ArchiveBook(ctx context.Context, bookID string) (*domain.Book, error) {
	var book *domain.Book
	err := s.store.WithinTx(ctx, func(repos store.Repositories) error {
		var err error
		book, err = repos.Books().GetByID(ctx, bookID)
		if err != nil {
			return notFound(err, "get book", "book %s not found", bookID)
		}

		from := book.Status
		if err := book.Archive(s.now()); err != nil {
			return err
		}

		err = repos.Books().UpdateStatus(ctx, bookID, from, domain.BookArchived, book.UpdatedAt)
		if errors.Is(err, store.ErrStatusChanged) {
			return domainerrors.Conflictf("book %s changed status while archiving", bookID)
		}
		if err != nil {
			return notFound(err, "archive book", "book %s not found", bookID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateBook(ctx, bookID)
	s.indexBook(book)
	s.publisher.Publish(events.NewBookArchivedEvent(book))

	s.logger.Info("book archived", "book_id", bookID)

	return book, nil
}

// GetBooks returns one page of the books matching filter, oldest first.
// page starts at 1; page < 1 is treated as 1 and pageSize < 1 as DefaultPageSize.
func (s *BookService) GetBooks(ctx context.Context, filter domain.BookFilter, page, pageSize int) ([]*domain.Book, error) {
	page, pageSize, err := normalizePage(page, pageSize)
	if err != nil {
		return nil, err
	}
	filter.Authors = normalize.Authors(filter.Authors)

	key := cache.KeySerializer{}.SerializeKey("Books", filter, page, pageSize)
	return cache.Through(ctx, s.cache, key, cache.TagBooks, s.opts.CacheTTL,
		func(ctx context.Context) ([]*domain.Book, error) {
			books, err := s.store.Books().Find(ctx, filter)
			if err != nil {
				return nil, fmt.Errorf("find books: %w", err)
			}
			return paginate(books, page, pageSize), nil
		})
}

// GetBookDetails returns a single book.
func (s *BookService) GetBookDetails(ctx context.Context, bookID string) (*domain.Book, error) {
	return cache.Through(ctx, s.cache, cache.BookDetailsKey(bookID), cache.TagBookDetails, s.opts.CacheTTL,
		func(ctx context.Context) (*domain.Book, error) {
			book, err := s.store.Books().GetByID(ctx, bookID)
			if err != nil {
				return nil, notFound(err, "get book", "book %s not found", bookID)
			}
			return book, nil
		})
}

// UpdateBookDetails replaces the description and, when cover is not nil,
// uploads it as the book's new cover. Covers must be images no larger
// than the configured maximum.
func (s *BookService) UpdateBookDetails(ctx context.Context, bookID, description string, cover *Cover) error {
	// 1. The book must exist before anything is uploaded
	if _, err := s.store.Books().GetByID(ctx, bookID); err != nil {
		return notFound(err, "get book", "book %s not found", bookID)
	}

	// 2. Validate and upload the cover
	var (
		coverRef *string
		blurHash string
	)
	if cover != nil {
		if err := s.validateCover(cover); err != nil {
			return err
		}

		objectName := images.CoverObjectName(bookID, cover.FileName)
		ref, err := s.storage.Upload(ctx, bytes.NewReader(cover.Data), objectName, cover.ContentType)
		if err != nil {
			return fmt.Errorf("upload cover: %w", err)
		}
		coverRef = &ref

		// Placeholder is optional; a decode failure keeps the cover.
		blurHash, err = images.ComputeBlurHashFromBytes(cover.Data)
		if err != nil {
			s.logger.Warn("failed to compute cover blurhash", "book_id", bookID, "error", err)
			blurHash = ""
		}
	}

	// 3. Persist
	var (
		book     *domain.Book
		oldCover *string
	)
	err := s.store.WithinTx(ctx, func(repos store.Repositories) error {
		var err error
		book, err = repos.Books().GetByID(ctx, bookID)
		if err != nil {
			return notFound(err, "get book", "book %s not found", bookID)
		}
		oldCover = book.CoverImagePath
		book.UpdateDetails(normalize.Description(description), coverRef, blurHash, s.now())
		return repos.Books().Update(ctx, book)
	})
	if err != nil {
		if coverRef != nil && (oldCover == nil || *oldCover != *coverRef) {
			s.deleteObject(ctx, *coverRef)
		}
		return err
	}

	// 4. Drop the replaced cover
	if coverRef != nil && oldCover != nil && *oldCover != *coverRef {
		s.deleteObject(ctx, *oldCover)
	}

	s.invalidateBook(ctx, bookID)
	s.indexBook(book)

	s.logger.Info("book details updated",
		"book_id", bookID,
		"cover", coverRef != nil,
	)

	return nil
}

// SearchBooks runs a full-text query over titles, authors and descriptions.
func (s *BookService) SearchBooks(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if params.Limit > MaxPageSize {
		return nil, domainerrors.InvalidInputf("limit must be at most %d", MaxPageSize)
	}
	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return result, nil
}

// CoverURL returns the public URL of a book's cover.
func (s *BookService) CoverURL(ctx context.Context, bookID string) (string, error) {
	book, err := s.GetBookDetails(ctx, bookID)
	if err != nil {
		return "", err
	}
	if book.CoverImagePath == nil {
		return "", domainerrors.NotFoundf("book %s has no cover", bookID)
	}

	name, ok := s.storage.ObjectName(*book.CoverImagePath)
	if !ok {
		return "", fmt.Errorf("cover reference %q is not in the cover bucket", *book.CoverImagePath)
	}
	return s.storage.URL(name)
}

// Reindex writes every book to the search index.
func (s *BookService) Reindex(ctx context.Context) (int, error) {
	books, err := s.store.Books().Find(ctx, domain.BookFilter{})
	if err != nil {
		return 0, fmt.Errorf("list books: %w", err)
	}
	for _, book := range books {
		if err := s.index.IndexBook(search.NewBookDocument(book)); err != nil {
			return 0, fmt.Errorf("index book %s: %w", book.ID, err)
		}
	}

	s.logger.Info("search index rebuilt", "books", len(books))

	return len(books), nil
}

func (s *BookService) validateCover(cover *Cover) error {
	if !strings.HasPrefix(strings.ToLower(cover.ContentType), "image/") {
		return domainerrors.InvalidInputf("cover content type %q is not an image", cover.ContentType)
	}
	if len(cover.Data) == 0 {
		return domainerrors.InvalidInput("cover is empty")
	}
	if int64(len(cover.Data)) > s.opts.MaxCoverSize {
		return domainerrors.InvalidInputf("cover is %d bytes, the limit is %d", len(cover.Data), s.opts.MaxCoverSize)
	}
	return nil
}

// invalidateBook clears every list that may contain the book and its detail entry.
func (s *BookService) invalidateBook(ctx context.Context, bookID string) {
	s.cache.ClearByTag(ctx, cache.TagBooks)
	s.cache.ClearByTag(ctx, cache.TagAvailableBooks)
	s.cache.Remove(ctx, cache.BookDetailsKey(bookID))
}

func (s *BookService) indexBook(book *domain.Book) {
	if err := s.index.IndexBook(search.NewBookDocument(book)); err != nil {
		s.logger.Warn("failed to index book", "book_id", book.ID, "error", err)
	}
}

func (s *BookService) deleteObject(ctx context.Context, ref string) {
	name, ok := s.storage.ObjectName(ref)
	if !ok {
		return
	}
	if err := s.storage.Delete(ctx, name); err != nil {
		s.logger.Warn("failed to delete cover object", "object", name, "error", err)
	}
}

// normalizePage applies the paging defaults.
func normalizePage(page, pageSize int) (int, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		return 0, 0, domainerrors.InvalidInputf("page size must be at most %d", MaxPageSize)
	}
	return page, pageSize, nil
}

// paginate returns the 1-based page of items. Pages past the end are empty.
func paginate[T any](items []T, page, pageSize int) []T {
	if len(items) == 0 || page-1 > (len(items)-1)/pageSize {
		return []T{}
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, len(items))
	return items[start:end]
}
