package domain

import (
	"time"

	domainerrors "github.com/practicalwork/library-server/internal/errors"
)

// Reader is a library card holder.
type Reader struct {
	Entity
	FullName    string    `json:"full_name"`
	PhoneNumber string    `json:"phone_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	IsActive    bool      `json:"is_active"`
}

// ReaderDraft carries the fields needed to open a card.
type ReaderDraft struct {
	FullName    string `json:"full_name" validate:"notblank,max=200"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}

// NewReader opens an active card valid for the given period.
func NewReader(id string, draft ReaderDraft, now time.Time, validity time.Duration) *Reader {
	r := &Reader{
		FullName:    draft.FullName,
		PhoneNumber: draft.PhoneNumber,
		ExpiryDate:  now.UTC().Add(validity),
		IsActive:    true,
	}
	r.ID = id
	r.InitTimestamps(now)
	return r
}

// EnsureActive returns INVALID_STATE for a closed card.
func (r *Reader) EnsureActive() error {
	if !r.IsActive {
		return domainerrors.InvalidStatef("reader %s card is inactive", r.ID)
	}
	return nil
}

// Extend moves the card expiry forward. The new expiry must be strictly later.
func (r *Reader) Extend(newExpiry, now time.Time) error {
	if err := r.EnsureActive(); err != nil {
		return err
	}
	if !newExpiry.After(r.ExpiryDate) {
		return domainerrors.InvalidTransitionf("reader %s new expiry %s must be after %s",
			r.ID, newExpiry.UTC().Format(time.DateOnly), r.ExpiryDate.UTC().Format(time.DateOnly))
	}
	r.ExpiryDate = newExpiry.UTC()
	r.Touch(now)
	return nil
}

// Close deactivates the card. Outstanding loans are checked by the caller.
func (r *Reader) Close(now time.Time) error {
	if err := r.EnsureActive(); err != nil {
		return err
	}
	r.IsActive = false
	r.Touch(now)
	return nil
}
