package store

import (
	"errors"
	"fmt"
)

// Error is a persistence error. Errors compare equal under errors.Is when
// their messages match, so a sentinel keeps its identity after WithCause.
type Error struct {
	Message string
	Err     error // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == e.Message
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Message: e.Message,
		Err:     err,
	}
}

// Sentinel errors.
var (
	// ErrNotFound means no row matched the lookup.
	ErrNotFound = &Error{Message: "resource not found"}

	// ErrAlreadyExists means a unique constraint rejected the write.
	ErrAlreadyExists = &Error{Message: "resource already exists"}

	// ErrStatusChanged means a conditional status update found the row in
	// a different status than expected.
	ErrStatusChanged = &Error{Message: "status changed concurrently"}
)
