// Package cache provides the read-through cache used by every list and detail
// read path, with tag-based group invalidation on top of a pluggable backend.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a backend after Close.
var ErrClosed = errors.New("cache: backend closed")

// Backend is the string-keyed byte store behind a Registry.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the stored value and true, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A zero ttl keeps the entry for the backend maximum.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
