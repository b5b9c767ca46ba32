package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediciweb/consentd/internal/api"
	"github.com/mediciweb/consentd/internal/consent"
	"github.com/mediciweb/consentd/internal/ratelimit"
	"github.com/mediciweb/consentd/internal/store"
	"github.com/mediciweb/consentd/internal/testsupport"
)

func postJSON(t *testing.T, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSaveConsent_AcceptAll(t *testing.T) {
	f := newTestFixture(t, nil)

	req := postJSON(t, "/api/v1/consent", api.SaveConsentRequest{
		Status:     "accepted",
		Categories: map[string]bool{"analytics": true},
		PageURL:    "https://example.com/pricing",
	})
	req.Header.Set("CF-IPCountry", "DE")

	var rr *httptest.ResponseRecorder
	testsupport.AssertCounterDelta(t, "consentd_consent_saved_total",
		map[string]string{"status": "accepted"}, 1, func() {
			rr = f.serve(req)
		})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp api.SaveConsentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ConsentID)
	assert.Equal(t, "accepted", resp.Status)
	// Accept-all grants every known category, not just the ones sent.
	for _, key := range []string{"necessary", "analytics", "marketing", "preferences"} {
		assert.True(t, resp.Categories[key], key)
	}

	// The decision lands in the response cookie with the long TTL.
	cookie := responseCookie(t, rr, "mcn_consent")
	require.NotNil(t, cookie, "save must set the consent cookie")
	assert.Equal(t, int((8760 * time.Hour).Seconds()), cookie.MaxAge)
	stored := consent.DecodeCookie(cookie.Value)
	require.True(t, stored.Valid())
	assert.Equal(t, resp.ConsentID, stored.ID)

	// And in the audit log, enriched with request metadata.
	entry, err := f.logs.LatestByConsentID(context.Background(), resp.ConsentID)
	require.NoError(t, err)
	assert.Equal(t, consent.StatusAccepted, entry.Status)
	assert.Equal(t, "DE", entry.GeoCountry)
	assert.Equal(t, "https://example.com/pricing", entry.PageURL)
}

func TestSaveConsent_RejectUsesShorterTTL(t *testing.T) {
	f := newTestFixture(t, nil)

	rr := f.serve(postJSON(t, "/api/v1/consent", api.SaveConsentRequest{
		Status:     "rejected",
		Categories: map[string]bool{"necessary": true},
	}))
	require.Equal(t, http.StatusOK, rr.Code)

	cookie := responseCookie(t, rr, "mcn_consent")
	require.NotNil(t, cookie)
	assert.Equal(t, int((720 * time.Hour).Seconds()), cookie.MaxAge)

	stored := consent.DecodeCookie(cookie.Value)
	require.True(t, stored.Valid())
	assert.True(t, stored.Categories["necessary"], "necessary survives a reject-all")
	assert.False(t, stored.Categories["analytics"])
}

func TestSaveConsent_HonorsClientID(t *testing.T) {
	f := newTestFixture(t, nil)
	const clientID = "a1b2c3d4-0000-0000-0000-000000000001"

	rr := f.serve(postJSON(t, "/api/v1/consent", api.SaveConsentRequest{
		ConsentID:  clientID,
		Status:     "custom",
		Categories: map[string]bool{"analytics": true},
	}))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.SaveConsentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, clientID, resp.ConsentID)

	cookie := responseCookie(t, rr, "mcn_consent")
	require.NotNil(t, cookie)
	assert.Equal(t, clientID, consent.DecodeCookie(cookie.Value).ID)
}

func TestSaveConsent_SupersedeKeepsCookieID(t *testing.T) {
	f := newTestFixture(t, nil)

	cookie, rec := consentCookie(t, "mcn_consent", map[string]bool{
		"necessary": true, "analytics": false, "marketing": false, "preferences": false,
	}, consent.StatusRejected)

	req := postJSON(t, "/api/v1/consent", api.SaveConsentRequest{
		// A different id in the payload loses to the one in the cookie.
		ConsentID:  "ffffffff-1111-2222-3333-444444444444",
		Status:     "accepted",
		Categories: map[string]bool{"analytics": true},
	})
	req.AddCookie(cookie)
	rr := f.serve(req)

	require.Equal(t, http.StatusOK, rr.Code)
	updated := responseCookie(t, rr, "mcn_consent")
	require.NotNil(t, updated)
	assert.Equal(t, rec.ID, consent.DecodeCookie(updated.Value).ID)
}

func TestSaveConsent_Validation(t *testing.T) {
	f := newTestFixture(t, nil)

	tests := []struct {
		name     string
		payload  api.SaveConsentRequest
		wantCode string
	}{
		{
			name:     "unknown status",
			payload:  api.SaveConsentRequest{Status: "maybe", Categories: map[string]bool{"analytics": true}},
			wantCode: "ERR_INVALID_INPUT",
		},
		{
			name:     "empty categories",
			payload:  api.SaveConsentRequest{Status: "custom"},
			wantCode: "ERR_INVALID_INPUT",
		},
		{
			name:     "malformed consent id",
			payload:  api.SaveConsentRequest{ConsentID: "<script>", Status: "accepted", Categories: map[string]bool{"analytics": true}},
			wantCode: "ERR_INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.serve(postJSON(t, "/api/v1/consent", tt.payload))
			require.Equal(t, http.StatusBadRequest, rr.Code)

			var errResp api.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
			assert.Equal(t, tt.wantCode, errResp.Code)
		})
	}
}

func TestSaveConsent_InvalidJSON(t *testing.T) {
	f := newTestFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/consent", strings.NewReader("{not json"))
	rr := f.serve(req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var errResp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
	assert.Equal(t, "ERR_INVALID_JSON", errResp.Code)
}

func TestSaveConsent_RateLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(context.Background(), 2, time.Minute)
	t.Cleanup(limiter.Stop)

	f := newTestFixture(t, func(opts *api.Options) {
		opts.Limiter = limiter
	})

	payload := api.SaveConsentRequest{Status: "accepted", Categories: map[string]bool{"analytics": true}}
	for i := 0; i < 2; i++ {
		rr := f.serve(postJSON(t, "/api/v1/consent", payload))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := f.serve(postJSON(t, "/api/v1/consent", payload))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	var errResp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
	assert.Equal(t, "ERR_RATE_LIMITED", errResp.Code)
	// The shed request never reached the log.
	assert.Equal(t, 2, f.logs.count())
}

func TestSaveConsentForm(t *testing.T) {
	f := newTestFixture(t, func(opts *api.Options) {
		opts.Nonce = testNonce
	})

	postForm := func(values url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/consent", strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return f.serve(req)
	}

	t.Run("happy path", func(t *testing.T) {
		rr := postForm(url.Values{
			"action":                  {"consent_save"},
			"nonce":                   {testNonce.Generate()},
			"status":                  {"custom"},
			"categories[necessary]":   {"1"},
			"categories[analytics]":   {"1"},
			"categories[marketing]":   {"0"},
			"categories[preferences]": {"0"},
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp api.SaveConsentResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.True(t, resp.Categories["analytics"])
		assert.False(t, resp.Categories["marketing"])
	})

	t.Run("bad nonce", func(t *testing.T) {
		rr := postForm(url.Values{
			"action":                {"consent_save"},
			"nonce":                 {"bogus"},
			"status":                {"accepted"},
			"categories[analytics]": {"1"},
		})
		require.Equal(t, http.StatusForbidden, rr.Code)

		var errResp api.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
		assert.Equal(t, "ERR_BAD_NONCE", errResp.Code)
	})

	t.Run("wrong action", func(t *testing.T) {
		rr := postForm(url.Values{
			"action": {"something_else"},
			"nonce":  {testNonce.Generate()},
		})
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAcceptCategory(t *testing.T) {
	f := newTestFixture(t, nil)

	t.Run("grants on top of a rejection", func(t *testing.T) {
		cookie, rec := consentCookie(t, "mcn_consent", map[string]bool{
			"necessary": true, "analytics": false, "marketing": false, "preferences": false,
		}, consent.StatusRejected)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/consent/categories/analytics", nil)
		req.AddCookie(cookie)
		rr := f.serve(req)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp api.SaveConsentResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, rec.ID, resp.ConsentID)
		assert.True(t, resp.Categories["analytics"])
		assert.False(t, resp.Categories["marketing"], "other denials stay put")
		assert.Equal(t, "rejected", resp.Status, "a single grant keeps the decision kind")
	})

	t.Run("unknown category", func(t *testing.T) {
		rr := f.serve(httptest.NewRequest(http.MethodPost, "/api/v1/consent/categories/tracking", nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestRevokeConsent(t *testing.T) {
	f := newTestFixture(t, nil)

	t.Run("expires the cookie", func(t *testing.T) {
		cookie, _ := consentCookie(t, "mcn_consent",
			map[string]bool{"necessary": true}, consent.StatusAccepted)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/consent", nil)
		req.AddCookie(cookie)
		rr := f.serve(req)

		require.Equal(t, http.StatusOK, rr.Code)
		expired := responseCookie(t, rr, "mcn_consent")
		require.NotNil(t, expired)
		assert.Equal(t, -1, expired.MaxAge)
	})

	t.Run("nothing to revoke", func(t *testing.T) {
		rr := f.serve(httptest.NewRequest(http.MethodDelete, "/api/v1/consent", nil))
		require.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestGetConsent(t *testing.T) {
	f := newTestFixture(t, nil)

	require.NoError(t, f.logs.SaveLog(context.Background(), &store.LogEntry{
		ConsentID:  "deadbeef-0000-0000-0000-000000000042",
		Categories: map[string]bool{"necessary": true, "analytics": true},
		Status:     consent.StatusCustom,
		GeoCountry: "FR",
	}))

	t.Run("found", func(t *testing.T) {
		rr := f.serve(httptest.NewRequest(http.MethodGet,
			"/api/v1/consent/deadbeef-0000-0000-0000-000000000042", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp api.ConsentRecordResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "custom", resp.Status)
		assert.Equal(t, "FR", resp.GeoCountry)
		assert.True(t, resp.Categories["analytics"])
	})

	t.Run("query parameter form", func(t *testing.T) {
		rr := f.serve(httptest.NewRequest(http.MethodGet,
			"/api/v1/consent?consent_id=deadbeef-0000-0000-0000-000000000042", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		rr := f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/consent", nil))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rr := f.serve(httptest.NewRequest(http.MethodGet, "/api/v1/consent/unknown-id", nil))
		require.Equal(t, http.StatusNotFound, rr.Code)

		var errResp api.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
		assert.Equal(t, "ERR_NOT_FOUND", errResp.Code)
	})
}
