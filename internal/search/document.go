// Package search provides full-text book search using Bleve.
package search

import (
	"strings"

	"github.com/practicalwork/library-server/internal/domain"
)

// BookDocument is the indexed form of a book.
type BookDocument struct {
	ID          string
	Title       string
	Authors     []string
	Description string
	Category    domain.BookCategory
	Status      domain.BookStatus
	Year        int
	CreatedAt   int64 // Unix millis
	UpdatedAt   int64 // Unix millis
}

// NewBookDocument converts a domain Book to its indexed form.
func NewBookDocument(book *domain.Book) *BookDocument {
	return &BookDocument{
		ID:          book.ID,
		Title:       book.Title,
		Authors:     book.Authors,
		Description: book.Description,
		Category:    book.Category,
		Status:      book.Status,
		Year:        book.Year,
		CreatedAt:   book.CreatedAt.UnixMilli(),
		UpdatedAt:   book.UpdatedAt.UnixMilli(),
	}
}

// ToMap converts the document to a map with the field names used by the
// index mapping.
func (d *BookDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"category":   string(d.Category),
		"status":     string(d.Status),
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}

	if len(d.Authors) > 0 {
		m["authors"] = strings.Join(d.Authors, ", ")
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Year > 0 {
		m["year"] = d.Year
	}

	return m
}
