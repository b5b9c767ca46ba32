package store

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sweepRecorder counts DeleteOlderThan calls and remembers the last cutoff.
type sweepRecorder struct {
	calls  atomic.Int64
	cutoff atomic.Value // time.Time
	err    error
}

func (s *sweepRecorder) SaveLog(context.Context, *LogEntry) error { return nil }

func (s *sweepRecorder) LatestByConsentID(context.Context, string) (*LogEntry, error) {
	return nil, ErrNotFound
}

func (s *sweepRecorder) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.calls.Add(1)
	s.cutoff.Store(cutoff)
	if s.err != nil {
		return 0, s.err
	}
	return 3, nil
}

var _ ConsentLogRepository = (*sweepRecorder)(nil)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestJanitor_SweepsImmediatelyAndOnTick(t *testing.T) {
	rec := &sweepRecorder{}
	j := NewJanitor(rec, 30*24*time.Hour, 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return rec.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond, "expected the initial sweep plus at least one tick")

	cancel()
	<-done

	cutoff, ok := rec.cutoff.Load().(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(-30*24*time.Hour), cutoff, time.Minute)
}

func TestJanitor_StopsOnCancel(t *testing.T) {
	rec := &sweepRecorder{}
	j := NewJanitor(rec, time.Hour, time.Hour, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancellation")
	}

	// The initial sweep still ran before the cancellation was observed.
	assert.GreaterOrEqual(t, rec.calls.Load(), int64(1))
}

func TestNewJanitor_Validation(t *testing.T) {
	assert.Panics(t, func() { NewJanitor(nil, time.Hour, time.Hour, nil) })
	assert.Panics(t, func() { NewJanitor(&sweepRecorder{}, 0, time.Hour, nil) })
}
