package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		burst    int
		calls    int
		wantPass int
	}{
		{"within burst", 3, 3, 3},
		{"beyond burst", 2, 5, 2},
		{"single token", 1, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(0.001, tt.burst)
			t.Cleanup(rl.Stop)

			passed := 0
			for range tt.calls {
				if rl.Allow("203.0.113.7") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := New(0.001, 1)
	t.Cleanup(rl.Stop)

	require.True(t, rl.Allow("203.0.113.7"))
	assert.False(t, rl.Allow("203.0.113.7"))
	assert.True(t, rl.Allow("198.51.100.2"))
	assert.Equal(t, 2, rl.Len())
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	rl := New(1000, 1)
	t.Cleanup(rl.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, rl.Wait(ctx, "desk-1"))
	require.NoError(t, rl.Wait(ctx, "desk-1"))
}

func TestKeyedRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := New(0.001, 1)
	t.Cleanup(rl.Stop)

	rl.Allow("desk-1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "desk-1"))
}

func TestKeyedRateLimiter_EvictIdle(t *testing.T) {
	rl := NewWithIdleTTL(1, 1, time.Minute)
	t.Cleanup(rl.Stop)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(50 * time.Second)
	rl.Allow("recent")
	require.Equal(t, 2, rl.Len())

	now = now.Add(20 * time.Second)
	assert.Equal(t, 1, rl.evictIdle())
	assert.Equal(t, 1, rl.Len())

	// An evicted key starts over with a full burst.
	assert.True(t, rl.Allow("old"))
}

func TestKeyedRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := New(1, 1)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
