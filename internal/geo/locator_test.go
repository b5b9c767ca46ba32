package geo

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderLocator(t *testing.T) {
	l := NewHeaderLocator("CF-IPCountry")

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid country code", "DE", "DE"},
		{"lowercase is normalized", "fr", "FR"},
		{"padded value is trimmed", " NL ", "NL"},
		{"missing header means unknown", "", ""},
		{"cloudflare unknown sentinel", "XX", ""},
		{"garbage value means unknown", "EUROPE", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("CF-IPCountry", tt.header)
			}
			assert.Equal(t, tt.want, l.Country(r))
		})
	}
}

func TestStaticLocator(t *testing.T) {
	l := NewStaticLocator(map[string]string{"203.0.113.7": "ua"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:61234"
	assert.Equal(t, "UA", l.Country(r))

	r.RemoteAddr = "198.51.100.1:80"
	assert.Equal(t, "", l.Country(r))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
	}{
		{"ipv4 with port", "203.0.113.7:61234", "203.0.113.7"},
		{"bare ipv4", "203.0.113.7", "203.0.113.7"},
		{"ipv6 with port", "[2001:db8::1]:443", "2001:db8::1"},
		// RealIP leaves a bare address in RemoteAddr when a proxy header
		// carried an IPv6 client; the colons must not be mistaken for a
		// port separator.
		{"bare ipv6", "2001:db8::1", "2001:db8::1"},
		{"bare ipv6 loopback", "::1", "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.addr
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestClientIP_DistinctIPv6ClientsStayDistinct(t *testing.T) {
	a := httptest.NewRequest(http.MethodGet, "/", nil)
	a.RemoteAddr = "2001:db8::1"
	b := httptest.NewRequest(http.MethodGet, "/", nil)
	b.RemoteAddr = "2001:db8::2"

	// Each client must key its own rate-limit counter and cache entry.
	assert.NotEqual(t, ClientIP(a), ClientIP(b))
}

// countingLocator records how many times the inner lookup runs.
type countingLocator struct {
	country string
	calls   int
}

func (c *countingLocator) Country(*http.Request) string {
	c.calls++
	return c.country
}

func TestCachedLocator_MemoizesPerIP(t *testing.T) {
	inner := &countingLocator{country: "SE"}
	l, err := NewCachedLocator(inner, 100, time.Minute)
	require.NoError(t, err)
	defer l.Close()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:1000"

	assert.Equal(t, "SE", l.Country(r))
	assert.Equal(t, "SE", l.Country(r))
	assert.Equal(t, "SE", l.Country(r))
	assert.Equal(t, 1, inner.calls)

	// A different IP misses the cache.
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.RemoteAddr = "198.51.100.1:1000"
	l.Country(r2)
	assert.Equal(t, 2, inner.calls)
}
