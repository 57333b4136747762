package domain

import (
	"time"

	domainerrors "github.com/practicalwork/library-server/internal/errors"
)

// BorrowStatus is the state of a loan.
type BorrowStatus string

const (
	BorrowIssued   BorrowStatus = "Issued"
	BorrowReturned BorrowStatus = "Returned"
	BorrowOverdue  BorrowStatus = "Overdue"
)

// Borrow records one loan of a book to a reader. Once returned it is history.
type Borrow struct {
	ID         string       `json:"id"`
	BookID     string       `json:"book_id"`
	ReaderID   string       `json:"reader_id"`
	BorrowDate time.Time    `json:"borrow_date"`
	DueDate    time.Time    `json:"due_date"`
	ReturnDate *time.Time   `json:"return_date,omitempty"`
	Status     BorrowStatus `json:"status"`
}

// NewBorrow issues a loan starting at now and due after loan.
func NewBorrow(id, bookID, readerID string, now time.Time, loan time.Duration) *Borrow {
	now = now.UTC()
	return &Borrow{
		ID:         id,
		BookID:     bookID,
		ReaderID:   readerID,
		BorrowDate: now,
		DueDate:    now.Add(loan),
		Status:     BorrowIssued,
	}
}

// IsOutstanding reports whether the book has not come back yet.
func (b *Borrow) IsOutstanding() bool {
	return b.ReturnDate == nil
}

// IsOverdue reports whether an outstanding loan is past its due date at now.
func (b *Borrow) IsOverdue(now time.Time) bool {
	return b.IsOutstanding() && now.After(b.DueDate)
}

// MarkOverdue moves an issued loan past its due date to Overdue.
// It reports whether the status changed.
func (b *Borrow) MarkOverdue(now time.Time) bool {
	if b.Status != BorrowIssued || !b.IsOverdue(now) {
		return false
	}
	b.Status = BorrowOverdue
	return true
}

// Return closes the loan. It may happen only once.
func (b *Borrow) Return(now time.Time) error {
	if !b.IsOutstanding() || b.Status == BorrowReturned {
		return domainerrors.InvalidStatef("borrow %s is already returned", b.ID)
	}
	returned := now.UTC()
	if returned.Before(b.BorrowDate) {
		returned = b.BorrowDate
	}
	b.ReturnDate = &returned
	b.Status = BorrowReturned
	return nil
}
