package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSturdyc_PerEntryTTL(t *testing.T) {
	ctx := context.Background()
	s := NewSturdyc(SturdycConfig{Capacity: 10, TTL: time.Hour})
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "short", []byte("v"), time.Minute))
	require.NoError(t, s.Set(ctx, "long", []byte("v"), 0))

	now = now.Add(2 * time.Minute)

	_, ok, err := s.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestSturdyc_CopiesValue(t *testing.T) {
	ctx := context.Background()
	s := NewSturdyc(SturdycConfig{Capacity: 10, TTL: time.Hour})

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	v, _, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), v)
}

func TestSturdyc_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewSturdyc(SturdycConfig{Capacity: 10, TTL: time.Hour})
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, s.Len())
}

func TestSturdyc_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSturdyc(SturdycConfig{})

	assert.ErrorIs(t, s.Set(ctx, "k", nil, 0), context.Canceled)
}

func TestBadger_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBadger("", nil)
	require.NoError(t, err)
	defer b.Close()

	_, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "k", []byte("v1"), time.Minute))
	require.NoError(t, b.Set(ctx, "k", []byte("v2"), 0))

	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, b.Delete(ctx, "k"))
	require.NoError(t, b.Delete(ctx, "k"))

	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := OpenBadger(dir, nil)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "Book:book-1:Details", []byte(`{"id":"book-1"}`), 0))
	require.NoError(t, b.Close())

	b, err = OpenBadger(dir, nil)
	require.NoError(t, err)
	defer b.Close()

	v, ok, err := b.Get(ctx, "Book:book-1:Details")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"book-1"}`, string(v))
}

func TestRegistry_OverBadger(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBadger("", nil)
	require.NoError(t, err)
	r := NewRegistry(b, time.Minute, nil)
	defer r.Close()

	r.Set(ctx, BorrowKey("borrow-1"), map[string]string{"status": "Issued"}, 0)
	r.TrackKey(ctx, TagBorrows, BorrowKey("borrow-1"))
	r.ClearByTag(ctx, TagBorrows)

	var got map[string]string
	assert.False(t, r.Get(ctx, BorrowKey("borrow-1"), &got))
}
