package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/viccon/sturdyc"
)

// SturdycConfig sizes the in-memory backend.
type SturdycConfig struct {
	// Capacity is the maximum number of entries. Must be greater than 0.
	Capacity int
	// NumShards splits the cache for concurrent access. Default: Capacity/100, between 1 and 64.
	NumShards int
	// TTL is the lifetime of every entry and the upper bound for per-entry ttls.
	TTL time.Duration
	// EvictionPercentage is evicted when the cache is full. Default: 10.
	EvictionPercentage int
}

// sturdycEntry carries a per-entry expiry on top of the client wide TTL.
type sturdycEntry struct {
	value     []byte
	expiresAt time.Time
}

// Sturdyc is an in-memory Backend built on a sturdyc client.
type Sturdyc struct {
	client *sturdyc.Client[sturdycEntry]
	ttl    time.Duration
	now    func() time.Time
	closed atomic.Bool
}

// NewSturdyc creates an in-memory backend.
func NewSturdyc(cfg SturdycConfig) *Sturdyc {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10000
	}
	if cfg.NumShards <= 0 {
		// Keep at least ~100 entries per shard so small caches do not evict early.
		cfg.NumShards = max(1, min(64, cfg.Capacity/100))
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.EvictionPercentage <= 0 || cfg.EvictionPercentage > 100 {
		cfg.EvictionPercentage = 10
	}

	return &Sturdyc{
		client: sturdyc.New[sturdycEntry](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage),
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

// Get implements Backend.
func (s *Sturdyc) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, false, err
	}

	entry, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.client.Delete(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set implements Backend. A ttl longer than the client TTL is capped by it.
func (s *Sturdyc) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	entry := sturdycEntry{value: append([]byte(nil), value...)}
	if ttl > 0 && ttl < s.ttl {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.client.Set(key, entry)
	return nil
}

// Delete implements Backend.
func (s *Sturdyc) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.client.Delete(key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *Sturdyc) Len() int {
	return s.client.Size()
}

// Close drops every entry. Later calls fail with ErrClosed.
func (s *Sturdyc) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
	return nil
}

func (s *Sturdyc) check(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}
