package store

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter"
)

var _ ConsentLogRepository = (*CachedConsentLogStore)(nil)

// CachedConsentLogStore layers an in-process S3-FIFO cache over a
// ConsentLogRepository for the lookup path. Consent records are read far more
// often than written, and a short TTL keeps a superseded decision from being
// served for long.
type CachedConsentLogStore struct {
	inner ConsentLogRepository
	cache otter.Cache[string, *LogEntry]
}

func NewCachedConsentLogStore(inner ConsentLogRepository, capacity int, ttl time.Duration) (*CachedConsentLogStore, error) {
	if inner == nil {
		panic("store: inner repository cannot be nil")
	}

	cache, err := otter.MustBuilder[string, *LogEntry](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build consent log cache: %w", err)
	}

	return &CachedConsentLogStore{
		inner: inner,
		cache: cache,
	}, nil
}

// SaveLog writes through and replaces the cached entry so the next read
// reflects the new decision immediately.
func (s *CachedConsentLogStore) SaveLog(ctx context.Context, e *LogEntry) error {
	if err := s.inner.SaveLog(ctx, e); err != nil {
		return err
	}
	s.cache.Set(e.ConsentID, e)
	return nil
}

func (s *CachedConsentLogStore) LatestByConsentID(ctx context.Context, consentID string) (*LogEntry, error) {
	if e, ok := s.cache.Get(consentID); ok {
		return e, nil
	}

	e, err := s.inner.LatestByConsentID(ctx, consentID)
	if err != nil {
		// Misses are not cached: a consent id that does not exist yet
		// usually will shortly.
		return nil, err
	}

	s.cache.Set(consentID, e)
	return e, nil
}

func (s *CachedConsentLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.inner.DeleteOlderThan(ctx, cutoff)
}

// Close releases the cache's resources.
func (s *CachedConsentLogStore) Close() {
	s.cache.Close()
}
