package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mediciweb/consentd/internal/api"
	"github.com/mediciweb/consentd/internal/config"
	"github.com/mediciweb/consentd/internal/consent"
	"github.com/mediciweb/consentd/internal/geo"
	"github.com/mediciweb/consentd/internal/nonce"
	"github.com/mediciweb/consentd/internal/ratelimit"
	"github.com/mediciweb/consentd/internal/ruleengine"
	"github.com/mediciweb/consentd/internal/store"
)

// memoryLogs is an in-memory ConsentLogRepository used to observe the audit
// side effects of the handlers.
type memoryLogs struct {
	mu      sync.Mutex
	entries []*store.LogEntry
	nextID  int64
}

func (m *memoryLogs) SaveLog(_ context.Context, e *store.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	e.CreatedAt = time.Now()
	clone := *e
	m.entries = append(m.entries, &clone)
	return nil
}

func (m *memoryLogs) LatestByConsentID(_ context.Context, consentID string) (*store.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ConsentID == consentID {
			clone := *m.entries[i]
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryLogs) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	var removed int64
	for _, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed, nil
}

func (m *memoryLogs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// testFixture bundles the API under test with its observable dependencies.
type testFixture struct {
	api   *api.API
	rules *store.MemoryRuleStore
	logs  *memoryLogs
}

func defaultConsentConfig() config.ConsentConfig {
	return config.ConsentConfig{
		CookieName:         "mcn_consent",
		CookieTTL:          8760 * time.Hour,
		CookieTTLRejected:  720 * time.Hour,
		Categories:         []string{"necessary", "analytics", "marketing", "preferences"},
		RequiredCategories: []string{"necessary"},
	}
}

func newTestFixture(t *testing.T, mutate func(*api.Options)) *testFixture {
	t.Helper()

	limiter := ratelimit.NewMemoryLimiter(context.Background(), 1000, time.Minute)
	t.Cleanup(limiter.Stop)

	rules := store.NewMemoryRuleStore()
	logs := &memoryLogs{}
	cfg := defaultConsentConfig()

	opts := api.Options{
		Rules:    rules,
		Logs:     logs,
		Resolver: ruleengine.NewResolver(ruleengine.NewRegistry(), nil),
		Catalog:  consent.NewCatalog(cfg.Categories, cfg.RequiredCategories),
		Limiter:  limiter,
		Locator:  geo.NewHeaderLocator("CF-IPCountry"),
		Consent:  cfg,
	}
	if mutate != nil {
		mutate(&opts)
	}

	return &testFixture{api: api.NewAPI(opts), rules: rules, logs: logs}
}

// serve runs one request through the router and returns the recorder.
func (f *testFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.api.Router.ServeHTTP(rr, req)
	return rr
}

// consentCookie builds a cookie carrying a valid consent record, as a
// returning visitor would present it.
func consentCookie(t *testing.T, name string, categories map[string]bool, status consent.Status) (*http.Cookie, *consent.Record) {
	t.Helper()
	rec := consent.NewRecord(categories, status, time.Now())
	value, err := consent.EncodeCookie(rec)
	if err != nil {
		t.Fatalf("encode cookie: %v", err)
	}
	return &http.Cookie{Name: name, Value: value}, rec
}

// responseCookie digs the named cookie out of a recorded response.
func responseCookie(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var testNonce = nonce.New("test-secret")
