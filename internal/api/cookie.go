package api

import (
	"net/http"
	"time"

	"github.com/mediciweb/consentd/internal/consent"
)

// CookieStore adapts one HTTP exchange to the consent.Store interface: Load
// decodes the record from the request cookie, Save and Clear emit Set-Cookie
// headers on the response. One store serves exactly one request.
type CookieStore struct {
	w    http.ResponseWriter
	r    *http.Request
	name string

	// preferredID, when set, replaces the minted id on the first save so
	// the cookie stays aligned with an id the client already holds. It is
	// ignored once a valid cookie exists: the stored id wins.
	preferredID string

	loaded     *consent.Record
	loadedOnce bool
}

// NewCookieStore builds a store bound to the given exchange.
func NewCookieStore(w http.ResponseWriter, r *http.Request, name string) *CookieStore {
	if w == nil || r == nil {
		panic("api: cookie store needs a live request and response")
	}
	if name == "" {
		panic("api: cookie name cannot be empty")
	}
	return &CookieStore{w: w, r: r, name: name}
}

// WithPreferredID sets the id adopted on first save. Returns the store for
// chaining.
func (s *CookieStore) WithPreferredID(id string) *CookieStore {
	s.preferredID = id
	return s
}

// Load returns the record decoded from the request cookie, or nil when the
// cookie is absent or malformed. The decode happens once per store.
func (s *CookieStore) Load() *consent.Record {
	if s.loadedOnce {
		return s.loaded
	}
	s.loadedOnce = true

	c, err := s.r.Cookie(s.name)
	if err != nil {
		return nil
	}
	s.loaded = consent.DecodeCookie(c.Value)
	return s.loaded
}

// Save writes the record to a response cookie with the given lifetime.
func (s *CookieStore) Save(rec *consent.Record, ttl time.Duration) error {
	if s.preferredID != "" && !s.Load().Valid() {
		rec.ID = s.preferredID
	}

	value, err := consent.EncodeCookie(rec)
	if err != nil {
		return err
	}

	http.SetCookie(s.w, &http.Cookie{
		Name:   s.name,
		Value:  value,
		Path:   "/",
		MaxAge: int(ttl.Seconds()),
		// Read by client-side scripts to replay the decision, so no
		// HttpOnly.
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the cookie on the client.
func (s *CookieStore) Clear() error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

var _ consent.Store = (*CookieStore)(nil)
