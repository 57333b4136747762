package domain

import (
	"slices"
	"time"

	domainerrors "github.com/practicalwork/library-server/internal/errors"
)

// BookCategory classifies a book. It is fixed when the book is created.
type BookCategory string

const (
	CategoryDefault     BookCategory = "Default"
	CategoryScientific  BookCategory = "Scientific"
	CategoryEducational BookCategory = "Educational"
	CategoryFiction     BookCategory = "Fiction"
)

// BookCategories lists every valid category in display order.
var BookCategories = []BookCategory{CategoryDefault, CategoryScientific, CategoryEducational, CategoryFiction}

// ParseBookCategory converts a string into a BookCategory.
func ParseBookCategory(s string) (BookCategory, error) {
	c := BookCategory(s)
	if !slices.Contains(BookCategories, c) {
		return "", domainerrors.InvalidInputf("unknown book category %q", s)
	}
	return c, nil
}

// BookStatus is the circulation state of a book.
type BookStatus string

const (
	BookAvailable BookStatus = "Available"
	BookBorrowed  BookStatus = "Borrowed"
	BookArchived  BookStatus = "Archived"
)

// ParseBookStatus converts a string into a BookStatus.
func ParseBookStatus(s string) (BookStatus, error) {
	switch st := BookStatus(s); st {
	case BookAvailable, BookBorrowed, BookArchived:
		return st, nil
	default:
		return "", domainerrors.InvalidInputf("unknown book status %q", s)
	}
}

// Book is a single copy in the library catalogue.
//
// Status and IsArchived move together: IsArchived is true exactly when
// Status is BookArchived. Archived is terminal.
type Book struct {
	Entity
	Title          string       `json:"title"`
	Authors        []string     `json:"authors"`
	Description    string       `json:"description,omitempty"`
	Year           int          `json:"year"`
	Category       BookCategory `json:"category"`
	Status         BookStatus   `json:"status"`
	CoverImagePath *string      `json:"cover_image_path,omitempty"`
	CoverBlurHash  string       `json:"cover_blur_hash,omitempty"`
	IsArchived     bool         `json:"is_archived"`
}

// NewBook creates an available book.
func NewBook(id string, draft BookDraft, now time.Time) *Book {
	b := &Book{
		Title:       draft.Title,
		Authors:     slices.Clone(draft.Authors),
		Description: draft.Description,
		Year:        draft.Year,
		Category:    draft.Category,
		Status:      BookAvailable,
	}
	b.ID = id
	b.InitTimestamps(now)
	return b
}

// BookDraft carries the fields needed to create a book.
type BookDraft struct {
	Title       string       `json:"title" validate:"notblank,max=500"`
	Authors     []string     `json:"authors" validate:"min=1,nonblank"`
	Description string       `json:"description" validate:"max=20000"`
	Year        int          `json:"year" validate:"gte=0,lte=9999"`
	Category    BookCategory `json:"category" validate:"oneof=Default Scientific Educational Fiction"`
}

// BookUpdate carries the editable fields of a book. Category must match
// the stored category; Status and CoverImagePath are left alone when nil.
type BookUpdate struct {
	Title          string       `json:"title" validate:"notblank,max=500"`
	Authors        []string     `json:"authors" validate:"min=1,nonblank"`
	Description    string       `json:"description" validate:"max=20000"`
	Year           int          `json:"year" validate:"gte=0,lte=9999"`
	Category       BookCategory `json:"category" validate:"oneof=Default Scientific Educational Fiction"`
	Status         *BookStatus  `json:"status,omitempty"`
	CoverImagePath *string      `json:"cover_image_path,omitempty"`
}

// CanBeArchived reports whether the book may move to Archived.
func (b *Book) CanBeArchived() bool {
	return b.Status != BookBorrowed
}

// CanBeBorrowed reports whether the book may be lent out.
func (b *Book) CanBeBorrowed() bool {
	return !b.IsArchived && b.Status == BookAvailable
}

// Archive moves the book out of circulation.
func (b *Book) Archive(now time.Time) error {
	if !b.CanBeArchived() {
		return domainerrors.InvalidTransitionf("book %s is borrowed and cannot be archived", b.ID)
	}
	if b.Status == BookArchived {
		return domainerrors.InvalidTransitionf("book %s is already archived", b.ID)
	}
	b.Status = BookArchived
	b.IsArchived = true
	b.Touch(now)
	return nil
}

// MarkBorrowed flips an available book to Borrowed.
func (b *Book) MarkBorrowed(now time.Time) error {
	if b.Status == BookArchived || b.IsArchived {
		return domainerrors.InvalidStatef("book %s is archived", b.ID)
	}
	if b.Status == BookBorrowed {
		return domainerrors.InvalidStatef("book %s is already borrowed", b.ID)
	}
	b.Status = BookBorrowed
	b.Touch(now)
	return nil
}

// MarkReturned flips a borrowed book back to Available.
func (b *Book) MarkReturned(now time.Time) error {
	if b.Status != BookBorrowed {
		return domainerrors.InvalidStatef("book %s is not borrowed", b.ID)
	}
	b.Status = BookAvailable
	b.Touch(now)
	return nil
}

// Apply copies u onto the book.
//
// A status change is only accepted towards Archived and follows the same
// rule as Archive; Borrowed and Available are driven by borrows.
func (b *Book) Apply(u BookUpdate, now time.Time) error {
	if u.Category != b.Category {
		return domainerrors.InvalidTransitionf("book %s category cannot change from %s to %s", b.ID, b.Category, u.Category)
	}

	if u.Status != nil && *u.Status != b.Status {
		if *u.Status != BookArchived {
			return domainerrors.InvalidTransitionf("book %s cannot move from %s to %s", b.ID, b.Status, *u.Status)
		}
		if err := b.Archive(now); err != nil {
			return err
		}
	}

	b.Title = u.Title
	b.Authors = slices.Clone(u.Authors)
	b.Description = u.Description
	b.Year = u.Year
	if u.CoverImagePath != nil {
		b.CoverImagePath = u.CoverImagePath
	}
	b.Touch(now)
	return nil
}

// UpdateDetails replaces the description and, when cover is non-nil, the cover reference.
func (b *Book) UpdateDetails(description string, cover *string, blurHash string, now time.Time) {
	b.Description = description
	if cover != nil {
		b.CoverImagePath = cover
		b.CoverBlurHash = blurHash
	}
	b.Touch(now)
}

// HasAuthors reports whether every name in authors is on the book.
func (b *Book) HasAuthors(authors []string) bool {
	for _, a := range authors {
		if !slices.Contains(b.Authors, a) {
			return false
		}
	}
	return true
}

// BookFilter narrows book queries. Zero values mean no constraint.
type BookFilter struct {
	Category        *BookCategory `json:"category,omitempty"`
	Status          *BookStatus   `json:"status,omitempty"`
	Authors         []string      `json:"authors,omitempty"`
	Year            int           `json:"year,omitempty"`
	ExcludeArchived bool          `json:"exclude_archived,omitempty"`
}

// Matches reports whether b satisfies the filter.
func (f BookFilter) Matches(b *Book) bool {
	if f.Category != nil && b.Category != *f.Category {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	if f.Year != 0 && b.Year != f.Year {
		return false
	}
	if f.ExcludeArchived && b.IsArchived {
		return false
	}
	return b.HasAuthors(f.Authors)
}
