package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/practicalwork/library-server/internal/domain"
	domainerrors "github.com/practicalwork/library-server/internal/errors"
	"github.com/practicalwork/library-server/internal/events"
	"github.com/practicalwork/library-server/internal/id"
	"github.com/practicalwork/library-server/internal/normalize"
	"github.com/practicalwork/library-server/internal/store"
	"github.com/practicalwork/library-server/internal/validation"
)

// ReaderService manages library cards.
type ReaderService struct {
	store     store.Store
	publisher events.Publisher
	validator *validation.Validator
	opts      Options
	now       func() time.Time
	logger    *slog.Logger
}

// NewReaderService creates a new reader service.
func NewReaderService(deps Dependencies) *ReaderService {
	deps = deps.withDefaults()
	return &ReaderService{
		store:     deps.Store,
		publisher: deps.Publisher,
		validator: deps.Validator,
		opts:      deps.Options,
		now:       deps.Now,
		logger:    deps.Logger,
	}
}

// CreateReader opens an active card and returns the reader id.
// Phone numbers are unique across readers.
func (s *ReaderService) CreateReader(ctx context.Context, draft domain.ReaderDraft) (string, error) {
	draft.FullName = normalize.FullName(draft.FullName)
	draft.PhoneNumber = normalize.Phone(draft.PhoneNumber)

	if err := s.validator.Validate(draft); err != nil {
		return "", err
	}

	readerID, err := id.Generate(id.PrefixReader)
	if err != nil {
		return "", fmt.Errorf("generate reader ID: %w", err)
	}

	reader := domain.NewReader(readerID, draft, s.now(), s.opts.CardValidity)

	err = s.store.WithinTx(ctx, func(repos store.Repositories) error {
		_, err := repos.Readers().GetByPhone(ctx, draft.PhoneNumber)
		switch {
		case err == nil:
			return domainerrors.Conflictf("phone number %s is already registered", draft.PhoneNumber)
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("check phone: %w", err)
		}

		err = repos.Readers().Create(ctx, reader)
		if errors.Is(err, store.ErrAlreadyExists) {
			return domainerrors.Conflictf("phone number %s is already registered", draft.PhoneNumber).WithCause(err)
		}
		return err
	})
	if err != nil {
		return "", err
	}

	s.publisher.Publish(events.NewReaderCreatedEvent(reader))

	s.logger.Info("reader created",
		"reader_id", reader.ID,
		"expiry_date", reader.ExpiryDate,
	)

	return reader.ID, nil
}

// ExtendReader moves an active card's expiry forward.
func (s *ReaderService) ExtendReader(ctx context.Context, readerID string, newExpiry time.Time) error {
	err := s.store.WithinTx(ctx, func(repos store.Repositories) error {
		reader, err := repos.Readers().GetByID(ctx, readerID)
		if err != nil {
			return notFound(err, "get reader", "reader %s not found", readerID)
		}
		if err := reader.Extend(newExpiry, s.now()); err != nil {
			return err
		}
		return repos.Readers().Update(ctx, reader)
	})
	if err != nil {
		return err
	}

	s.logger.Info("reader card extended", "reader_id", readerID, "expiry_date", newExpiry.UTC())

	return nil
}

// CloseReader deactivates a card. Every borrowed book must be returned first.
func (s *ReaderService) CloseReader(ctx context.Context, readerID string) error {
	var reader *domain.Reader
	err := s.store.WithinTx(ctx, func(repos store.Repositories) error {
		var err error
		reader, err = repos.Readers().GetByID(ctx, readerID)
		if err != nil {
			return notFound(err, "get reader", "reader %s not found", readerID)
		}
		if err := reader.EnsureActive(); err != nil {
			return err
		}

		borrows, err := repos.Borrows().ListByReader(ctx, readerID)
		if err != nil {
			return fmt.Errorf("list borrows: %w", err)
		}
		var outstanding []string
		for _, b := range borrows {
			if b.IsOutstanding() {
				outstanding = append(outstanding, b.BookID)
			}
		}
		if len(outstanding) > 0 {
			return domainerrors.Conflictf("reader %s has %d unreturned books", readerID, len(outstanding)).
				WithDetails(map[string]any{"book_ids": outstanding})
		}

		if err := reader.Close(s.now()); err != nil {
			return err
		}
		return repos.Readers().Update(ctx, reader)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(events.NewReaderClosedEvent(reader))

	s.logger.Info("reader closed", "reader_id", readerID)

	return nil
}

// GetBooksForReader returns the books an active reader currently holds.
func (s *ReaderService) GetBooksForReader(ctx context.Context, readerID string) ([]*domain.Book, error) {
	reader, err := s.GetReader(ctx, readerID)
	if err != nil {
		return nil, err
	}
	if err := reader.EnsureActive(); err != nil {
		return nil, err
	}

	books, err := s.store.Books().BooksForReader(ctx, readerID)
	if err != nil {
		return nil, fmt.Errorf("list reader books: %w", err)
	}
	if books == nil {
		books = []*domain.Book{}
	}
	return books, nil
}

// GetReader returns a reader by id.
func (s *ReaderService) GetReader(ctx context.Context, readerID string) (*domain.Reader, error) {
	reader, err := s.store.Readers().GetByID(ctx, readerID)
	if err != nil {
		return nil, notFound(err, "get reader", "reader %s not found", readerID)
	}
	return reader, nil
}

// FindReaderIDByPhone returns the id of the reader with this phone number.
func (s *ReaderService) FindReaderIDByPhone(ctx context.Context, phone string) (string, error) {
	phone = normalize.Phone(phone)
	reader, err := s.store.Readers().GetByPhone(ctx, phone)
	if err != nil {
		return "", notFound(err, "get reader by phone", "no reader with phone number %s", phone)
	}
	return reader.ID, nil
}

// FindReaderIDByName returns the id of the first reader with this exact full name.
func (s *ReaderService) FindReaderIDByName(ctx context.Context, fullName string) (string, error) {
	fullName = normalize.FullName(fullName)
	reader, err := s.store.Readers().GetByName(ctx, fullName)
	if err != nil {
		return "", notFound(err, "get reader by name", "no reader named %q", fullName)
	}
	return reader.ID, nil
}
