package geo

import (
	"net/http"
	"time"

	"github.com/maypok86/otter"
)

// CachedLocator memoizes per-IP lookups in front of a slower Locator.
// The original lookup providers charge per query, so resolved countries are
// remembered for the configured TTL (a day by default).
//
// Negative results are cached too: an IP that resolved to "unknown" will not
// be retried until the entry expires.
type CachedLocator struct {
	inner Locator
	store otter.Cache[string, string]
}

// NewCachedLocator wraps inner with an S3-FIFO TTL cache of the given
// capacity.
func NewCachedLocator(inner Locator, capacity int, ttl time.Duration) (*CachedLocator, error) {
	cache, err := otter.MustBuilder[string, string](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &CachedLocator{inner: inner, store: cache}, nil
}

// Country resolves the visitor's country, serving repeat lookups for the
// same IP from memory.
func (l *CachedLocator) Country(r *http.Request) string {
	ip := ClientIP(r)
	if ip == "" {
		return l.inner.Country(r)
	}

	if country, ok := l.store.Get(ip); ok {
		return country
	}

	country := l.inner.Country(r)
	l.store.Set(ip, country)
	return country
}

// Close releases the cache's background resources.
func (l *CachedLocator) Close() {
	l.store.Close()
}
