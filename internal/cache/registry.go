package cache

import (
	"context"
	"log/slog"
	"slices"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Registry is a JSON value cache with tag based group invalidation.
//
// A tag is itself a cache entry holding the sorted set of member keys.
// ClearByTag removes every member and then the tag. TrackKey is a
// read-modify-write, so two concurrent calls on one tag can lose a key;
// such a key lives until its TTL runs out.
//
// Cache failures never reach the caller: reads degrade to a miss and
// writes or invalidations are logged and dropped.
type Registry struct {
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
}

// NewRegistry creates a registry over backend. ttl is used by Set when the
// caller passes zero.
func NewRegistry(backend Backend, ttl time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		backend: backend,
		ttl:     ttl,
		logger:  logger,
	}
}

// Get decodes the value stored under key into dest and reports whether it was found.
func (r *Registry) Get(ctx context.Context, key string, dest any) bool {
	data, ok, err := r.backend.Get(ctx, key)
	if err != nil {
		r.logger.Warn("cache get failed", "key", key, "error", err)
		return false
	}
	if !ok {
		r.logger.Debug("cache miss", "key", key)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		r.logger.Warn("cache entry undecodable", "key", key, "error", err)
		return false
	}
	r.logger.Debug("cache hit", "key", key)
	return true
}

// Set stores value under key for ttl, or the registry default when ttl is zero.
func (r *Registry) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("cache value unencodable", "key", key, "error", err)
		return
	}
	if ttl <= 0 {
		ttl = r.ttl
	}
	if err := r.backend.Set(ctx, key, data, ttl); err != nil {
		r.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Remove deletes a single key.
func (r *Registry) Remove(ctx context.Context, key string) {
	if err := r.backend.Delete(ctx, key); err != nil {
		r.logger.Warn("cache remove failed", "key", key, "error", err)
	}
}

// TrackKey registers key under tag, creating the tag when needed.
func (r *Registry) TrackKey(ctx context.Context, tag, key string) {
	members, ok := r.members(ctx, tag)
	if !ok {
		return
	}

	i, found := slices.BinarySearch(members, key)
	if found {
		return
	}
	members = slices.Insert(members, i, key)

	data, err := json.Marshal(members)
	if err != nil {
		r.logger.Warn("cache tag unencodable", "tag", tag, "error", err)
		return
	}
	// Tags carry no TTL of their own; the backend maximum applies.
	if err := r.backend.Set(ctx, tag, data, 0); err != nil {
		r.logger.Warn("cache track failed", "tag", tag, "key", key, "error", err)
	}
}

// ClearByTag removes every key registered under tag, then the tag itself.
// An absent tag is a no-op.
func (r *Registry) ClearByTag(ctx context.Context, tag string) {
	data, ok, err := r.backend.Get(ctx, tag)
	if err != nil {
		r.logger.Warn("cache tag read failed", "tag", tag, "error", err)
		return
	}
	if !ok {
		return
	}

	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		r.logger.Warn("cache tag undecodable", "tag", tag, "error", err)
	}
	for _, key := range members {
		r.Remove(ctx, key)
	}
	r.Remove(ctx, tag)

	r.logger.Debug("cache tag cleared", "tag", tag, "keys", len(members))
}

// Members returns the keys currently registered under tag.
func (r *Registry) Members(ctx context.Context, tag string) []string {
	members, _ := r.members(ctx, tag)
	return members
}

// members loads the member set of tag. ok is false only when the backend
// failed, in which case the tag must not be overwritten.
func (r *Registry) members(ctx context.Context, tag string) ([]string, bool) {
	data, found, err := r.backend.Get(ctx, tag)
	if err != nil {
		r.logger.Warn("cache tag read failed", "tag", tag, "error", err)
		return nil, false
	}
	if !found {
		return nil, true
	}

	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		// A corrupt tag is replaced by a fresh one.
		r.logger.Warn("cache tag undecodable", "tag", tag, "error", err)
		return nil, true
	}
	slices.Sort(members)
	return slices.Compact(members), true
}

// Close closes the backend.
func (r *Registry) Close() error {
	return r.backend.Close()
}

// Tagged is the subset of Registry used by read-through helpers.
type Tagged interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	TrackKey(ctx context.Context, tag, key string)
}

// Through returns the cached value under key, or calls load, caches its
// result for ttl and registers key under tag. Errors from load are
// returned unchanged and nothing is cached.
func Through[T any](ctx context.Context, c Tagged, key, tag string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.Set(ctx, key, value, ttl)
	c.TrackKey(ctx, tag, key)
	return value, nil
}
