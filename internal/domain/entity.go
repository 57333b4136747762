// Package domain contains the core business entities and lifecycle rules for the library: books, readers, and borrows.
package domain

import "time"

// Entity provides the identity and timestamp fields shared by every persisted type.
type Entity struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
// Call this when creating a new entity.
func (e *Entity) InitTimestamps(now time.Time) {
	now = now.UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
}

// Touch updates the UpdatedAt timestamp.
// Call this whenever the underlying entity changes.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now.UTC()
}
