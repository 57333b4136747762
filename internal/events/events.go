// Package events defines the domain events published by the library service
// and the in-process broker that fans them out to consumers.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/practicalwork/library-server/internal/domain"
)

// Source identifies this service on every event.
const Source = "library-service"

// Version is the payload schema version of every event type.
const Version = 1

// EventType is the routing key of an event.
type EventType string

const (
	// EventBookCreated is published when a book enters the catalogue.
	EventBookCreated EventType = "book.created"
	// EventBookArchived is published when a book leaves circulation.
	EventBookArchived EventType = "book.archived"
	// EventBookBorrowed is published when a loan is issued.
	EventBookBorrowed EventType = "book.borrowed"
	// EventBookReturned is published when a loan is closed.
	EventBookReturned EventType = "book.returned"
	// EventReaderCreated is published when a card is opened.
	EventReaderCreated EventType = "reader.created"
	// EventReaderClosed is published when a card is closed.
	EventReaderClosed EventType = "reader.closed"
)

// Event is the envelope shared by all domain events.
type Event struct {
	ID         string    `json:"event_id"`
	Type       EventType `json:"event_type"`
	Version    int       `json:"version"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_on"`
	Data       any       `json:"data"`
}

// BookCreatedData is the payload of book.created.
type BookCreatedData struct {
	BookID    string              `json:"book_id"`
	Title     string              `json:"title"`
	Category  domain.BookCategory `json:"category"`
	CreatedAt time.Time           `json:"created_at"`
}

// BookArchivedData is the payload of book.archived.
type BookArchivedData struct {
	BookID     string    `json:"book_id"`
	ArchivedAt time.Time `json:"archived_at"`
}

// BookBorrowedData is the payload of book.borrowed.
type BookBorrowedData struct {
	BorrowID   string    `json:"borrow_id"`
	BookID     string    `json:"book_id"`
	ReaderID   string    `json:"reader_id"`
	BorrowedAt time.Time `json:"borrowed_at"`
	DueDate    time.Time `json:"due_date"`
}

// BookReturnedData is the payload of book.returned.
type BookReturnedData struct {
	BorrowID   string    `json:"borrow_id"`
	BookID     string    `json:"book_id"`
	ReaderID   string    `json:"reader_id"`
	ReturnedAt time.Time `json:"returned_at"`
}

// ReaderCreatedData is the payload of reader.created.
type ReaderCreatedData struct {
	ReaderID    string    `json:"reader_id"`
	FullName    string    `json:"full_name"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReaderClosedData is the payload of reader.closed.
type ReaderClosedData struct {
	ReaderID string    `json:"reader_id"`
	ClosedAt time.Time `json:"closed_at"`
}

func newEvent(eventType EventType, at time.Time, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Version:    Version,
		Source:     Source,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}

// NewBookCreatedEvent creates a book.created event.
func NewBookCreatedEvent(book *domain.Book) Event {
	return newEvent(EventBookCreated, book.CreatedAt, BookCreatedData{
		BookID:    book.ID,
		Title:     book.Title,
		Category:  book.Category,
		CreatedAt: book.CreatedAt,
	})
}

// NewBookArchivedEvent creates a book.archived event.
func NewBookArchivedEvent(book *domain.Book) Event {
	return newEvent(EventBookArchived, book.UpdatedAt, BookArchivedData{
		BookID:     book.ID,
		ArchivedAt: book.UpdatedAt,
	})
}

// NewBookBorrowedEvent creates a book.borrowed event.
func NewBookBorrowedEvent(borrow *domain.Borrow) Event {
	return newEvent(EventBookBorrowed, borrow.BorrowDate, BookBorrowedData{
		BorrowID:   borrow.ID,
		BookID:     borrow.BookID,
		ReaderID:   borrow.ReaderID,
		BorrowedAt: borrow.BorrowDate,
		DueDate:    borrow.DueDate,
	})
}

// NewBookReturnedEvent creates a book.returned event. The borrow must be returned.
func NewBookReturnedEvent(borrow *domain.Borrow) Event {
	var returnedAt time.Time
	if borrow.ReturnDate != nil {
		returnedAt = *borrow.ReturnDate
	}
	return newEvent(EventBookReturned, returnedAt, BookReturnedData{
		BorrowID:   borrow.ID,
		BookID:     borrow.BookID,
		ReaderID:   borrow.ReaderID,
		ReturnedAt: returnedAt,
	})
}

// NewReaderCreatedEvent creates a reader.created event.
func NewReaderCreatedEvent(reader *domain.Reader) Event {
	return newEvent(EventReaderCreated, reader.CreatedAt, ReaderCreatedData{
		ReaderID:    reader.ID,
		FullName:    reader.FullName,
		PhoneNumber: reader.PhoneNumber,
		CreatedAt:   reader.CreatedAt,
	})
}

// NewReaderClosedEvent creates a reader.closed event.
func NewReaderClosedEvent(reader *domain.Reader) Event {
	return newEvent(EventReaderClosed, reader.UpdatedAt, ReaderClosedData{
		ReaderID: reader.ID,
		ClosedAt: reader.UpdatedAt,
	})
}

// Publisher sends events to consumers. Publish must not block and has no
// result: delivery is best effort.
type Publisher interface {
	Publish(event Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(event Event) { f(event) }

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(Event) {}
