package ratelimit

import (
	"context"
	"sync"
	"time"
)

// maxTrackedKeys bounds the counter map so a scan across many source IPs
// cannot grow memory without limit.
const maxTrackedKeys = 10000

const cleanupInterval = time.Minute

type windowEntry struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter is the in-process fixed-window counter. It honors the same
// contract as the Redis limiter and backs tests and single-node deployments
// that run without Redis.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	max     int
	window  time.Duration
	now     func() time.Time
	cancel  context.CancelFunc
}

func NewMemoryLimiter(ctx context.Context, max int, window time.Duration) *MemoryLimiter {
	if max <= 0 {
		panic("ratelimit: max must be positive")
	}
	if window <= 0 {
		panic("ratelimit: window must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &MemoryLimiter{
		entries: make(map[string]*windowEntry),
		max:     max,
		window:  window,
		now:     time.Now,
		cancel:  cancel,
	}
	go l.cleanup(ctx)
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	e, ok := l.entries[key]
	if !ok || now.Sub(e.windowStart) >= l.window {
		if !ok && len(l.entries) >= maxTrackedKeys {
			l.evictOldestLocked()
		}
		l.entries[key] = &windowEntry{count: 1, windowStart: now}
		return l.max >= 1, nil
	}

	e.count++
	return e.count <= l.max, nil
}

// Stop cancels the background cleanup goroutine.
func (l *MemoryLimiter) Stop() {
	l.cancel()
}

func (l *MemoryLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.removeExpired()
		}
	}
}

func (l *MemoryLimiter) removeExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, e := range l.entries {
		if now.Sub(e.windowStart) >= l.window {
			delete(l.entries, key)
		}
	}
}

func (l *MemoryLimiter) evictOldestLocked() {
	var oldestKey string
	var oldestStart time.Time
	first := true
	for key, e := range l.entries {
		if first || e.windowStart.Before(oldestStart) {
			oldestKey = key
			oldestStart = e.windowStart
			first = false
		}
	}
	if oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}
