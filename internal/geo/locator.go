// Package geo provides the injected visitor-country lookup used by the geo
// rule evaluator. Provider integration details are out of scope; the service
// only consumes a Locator.
package geo

import (
	"net"
	"net/http"
	"strings"
)

// Locator resolves a visitor's two-letter country code from the request.
// An empty return value means the location could not be determined; callers
// must treat that as "unknown", never as a default region.
type Locator interface {
	Country(r *http.Request) string
}

// HeaderLocator trusts an edge-injected header (e.g. CF-IPCountry behind
// Cloudflare) to carry the visitor's country.
type HeaderLocator struct {
	header string
}

// NewHeaderLocator creates a locator reading the given header name.
func NewHeaderLocator(header string) *HeaderLocator {
	return &HeaderLocator{header: header}
}

// Country returns the upper-cased country code, or "" when the header is
// absent or carries a non-country sentinel ("XX" is Cloudflare's unknown).
func (l *HeaderLocator) Country(r *http.Request) string {
	code := strings.ToUpper(strings.TrimSpace(r.Header.Get(l.header)))
	if len(code) != 2 || code == "XX" {
		return ""
	}
	return code
}

// StaticLocator resolves countries from a fixed IP map. Used in tests and
// single-node deployments without an edge provider.
type StaticLocator struct {
	byIP map[string]string
}

// NewStaticLocator copies the provided IP-to-country map.
func NewStaticLocator(byIP map[string]string) *StaticLocator {
	m := make(map[string]string, len(byIP))
	for ip, country := range byIP {
		m[ip] = strings.ToUpper(country)
	}
	return &StaticLocator{byIP: m}
}

// Country looks up the request's remote IP in the static map.
func (l *StaticLocator) Country(r *http.Request) string {
	return l.byIP[ClientIP(r)]
}

// ClientIP extracts the client IP from a request, stripping the port from
// RemoteAddr. chi's RealIP middleware has already folded X-Forwarded-For /
// X-Real-IP into RemoteAddr by the time handlers run, which leaves a bare
// address with no port at all — including bare IPv6, where a last-colon
// split would truncate the address and collapse distinct clients.
func ClientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return addr
}
