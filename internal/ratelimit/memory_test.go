package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) (*MemoryLimiter, *time.Time) {
	t.Helper()

	l := NewMemoryLimiter(context.Background(), max, window)
	t.Cleanup(l.Stop)

	now := time.Now()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestMemoryLimiter_AllowsUpToCap(t *testing.T) {
	l, _ := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}

	ok, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, ok, "sixth request in the window must be rejected")
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = l.Allow(ctx, "198.51.100.9")
	require.NoError(t, err)
	assert.True(t, ok, "a different client starts with a fresh window")
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l, now := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.False(t, ok)

	*now = now.Add(time.Minute + time.Second)

	ok, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts clean")
}

func TestMemoryLimiter_RemoveExpired(t *testing.T) {
	l, now := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	_, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	_, err = l.Allow(ctx, "198.51.100.9")
	require.NoError(t, err)

	*now = now.Add(2 * time.Minute)
	l.removeExpired()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.entries)
}
