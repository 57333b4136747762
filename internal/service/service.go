// Package service implements the book, reader and borrow lifecycles on top of
// the store, the read-through cache, object storage and the event publisher.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/practicalwork/library-server/internal/cache"
	domainerrors "github.com/practicalwork/library-server/internal/errors"
	"github.com/practicalwork/library-server/internal/events"
	"github.com/practicalwork/library-server/internal/search"
	"github.com/practicalwork/library-server/internal/store"
	"github.com/practicalwork/library-server/internal/validation"
)

// Cache is the read-through cache the services read from and invalidate.
// Implementations swallow their own failures.
type Cache interface {
	cache.Tagged
	Remove(ctx context.Context, key string)
	ClearByTag(ctx context.Context, tag string)
}

// ObjectStorage stores cover images.
type ObjectStorage interface {
	Upload(ctx context.Context, r io.Reader, objectName, contentType string) (string, error)
	Delete(ctx context.Context, objectName string) error
	URL(objectName string) (string, error)
	ObjectName(ref string) (string, bool)
}

// BookIndex is the full-text index of the catalogue.
type BookIndex interface {
	IndexBook(doc *search.BookDocument) error
	DeleteBook(id string) error
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error)
}

// Options holds the lending rules and cache lifetime.
type Options struct {
	LoanPeriod   time.Duration
	CardValidity time.Duration
	MaxCoverSize int64
	CacheTTL     time.Duration
}

// DefaultOptions returns the library defaults: 30 day loans, one year
// cards, 5 MB covers and a 10 minute cache.
func DefaultOptions() Options {
	return Options{
		LoanPeriod:   30 * 24 * time.Hour,
		CardValidity: 365 * 24 * time.Hour,
		MaxCoverSize: 5_000_000,
		CacheTTL:     10 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LoanPeriod <= 0 {
		o.LoanPeriod = d.LoanPeriod
	}
	if o.CardValidity <= 0 {
		o.CardValidity = d.CardValidity
	}
	if o.MaxCoverSize <= 0 {
		o.MaxCoverSize = d.MaxCoverSize
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = d.CacheTTL
	}
	return o
}

// Dependencies are the collaborators shared by every lifecycle service.
// Store is required; the rest fall back to no-op implementations.
type Dependencies struct {
	Store     store.Store
	Cache     Cache
	Storage   ObjectStorage
	Index     BookIndex
	Publisher events.Publisher
	Validator *validation.Validator
	Options   Options
	Logger    *slog.Logger

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Cache == nil {
		d.Cache = nopCache{}
	}
	if d.Storage == nil {
		d.Storage = nopStorage{}
	}
	if d.Index == nil {
		d.Index = nopIndex{}
	}
	if d.Publisher == nil {
		d.Publisher = events.NopPublisher{}
	}
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	d.Options = d.Options.withDefaults()
	return d
}

// notFound translates store.ErrNotFound into a NOT_FOUND domain error and
// wraps anything else with op.
func notFound(err error, op, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFoundf(format, args...)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// nopCache never hits.
type nopCache struct{}

func (nopCache) Get(context.Context, string, any) bool           { return false }
func (nopCache) Set(context.Context, string, any, time.Duration) {}
func (nopCache) TrackKey(context.Context, string, string)        {}
func (nopCache) Remove(context.Context, string)                  {}
func (nopCache) ClearByTag(context.Context, string)              {}

// nopStorage rejects uploads.
type nopStorage struct{}

var errNoStorage = errors.New("object storage not configured")

func (nopStorage) Upload(context.Context, io.Reader, string, string) (string, error) {
	return "", errNoStorage
}
func (nopStorage) Delete(context.Context, string) error { return nil }
func (nopStorage) URL(string) (string, error)           { return "", errNoStorage }
func (nopStorage) ObjectName(string) (string, bool)     { return "", false }

// nopIndex indexes nothing and finds nothing.
type nopIndex struct{}

func (nopIndex) IndexBook(*search.BookDocument) error { return nil }
func (nopIndex) DeleteBook(string) error              { return nil }
func (nopIndex) Search(_ context.Context, params search.SearchParams) (*search.SearchResult, error) {
	return &search.SearchResult{Query: params.Query, Hits: []search.SearchHit{}}, nil
}
