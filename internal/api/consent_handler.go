package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mediciweb/consentd/internal/consent"
	"github.com/mediciweb/consentd/internal/geo"
	"github.com/mediciweb/consentd/internal/logger"
	"github.com/mediciweb/consentd/internal/observability"
	"github.com/mediciweb/consentd/internal/store"
)

// machineFor builds a consent machine bound to this exchange. The cookie is
// the machine's store. Gate and bridge stay nil here: resource gating and
// consent-mode signals run in the page render pipeline, not on the API. The
// syncer, when configured, mirrors decisions to an upstream aggregator.
func (a *API) machineFor(w http.ResponseWriter, r *http.Request, preferredID string) *consent.Machine {
	cookies := NewCookieStore(w, r, a.consent.CookieName).WithPreferredID(preferredID)

	return consent.NewMachine(consent.MachineOptions{
		Catalog:   a.catalog,
		Store:     cookies,
		Syncer:    a.syncer,
		Logger:    logger.FromContext(r.Context()),
		AcceptTTL: a.consent.CookieTTL,
		RejectTTL: a.consent.CookieTTLRejected,
	})
}

// handleSaveConsent processes POST /api/v1/consent: decode, validate, drive
// the state machine, append the audit log entry, return the stored decision.
func (a *API) handleSaveConsent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req SaveConsentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	a.saveConsent(w, r, &req)
}

// handleSaveConsentForm processes POST /consent, the form-encoded fallback
// used by clients whose JSON post failed. The payload carries a fixed action
// field, a nonce, and categories as categories[key]=1|0 pairs.
func (a *API) handleSaveConsentForm(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "Malformed form payload",
		})
		return
	}

	if action := r.PostFormValue("action"); action != "consent_save" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "Unknown form action",
		})
		return
	}

	if a.nonce != nil && !a.nonce.Verify(r.PostFormValue("nonce")) {
		log.Warn("form save rejected: bad nonce", slog.String("remote_ip", geo.ClientIP(r)))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_BAD_NONCE",
			Message: "Invalid or expired nonce",
		})
		return
	}

	req := SaveConsentRequest{
		ConsentID:  r.PostFormValue("consent_id"),
		Status:     r.PostFormValue("status"),
		PageURL:    r.PostFormValue("page_url"),
		Categories: map[string]bool{},
	}
	for field, values := range r.PostForm {
		key, ok := categoryField(field)
		if !ok || len(values) == 0 {
			continue
		}
		req.Categories[key] = values[0] == "1"
	}

	a.saveConsent(w, r, &req)
}

// categoryField extracts the category key from a categories[key] form field.
func categoryField(field string) (string, bool) {
	if !strings.HasPrefix(field, "categories[") || !strings.HasSuffix(field, "]") {
		return "", false
	}
	key := field[len("categories[") : len(field)-1]
	return key, key != ""
}

// saveConsent is the shared tail of both save transports.
func (a *API) saveConsent(w http.ResponseWriter, r *http.Request, req *SaveConsentRequest) {
	log := logger.FromContext(r.Context())

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	machine := a.machineFor(w, r, req.ConsentID)

	var (
		rec *consent.Record
		err error
	)
	switch consent.Status(req.Status) {
	case consent.StatusAccepted:
		rec, err = machine.AcceptAll(r.Context())
	case consent.StatusRejected:
		rec, err = machine.RejectAll(r.Context())
	default:
		rec, err = machine.Customize(r.Context(), req.Categories)
	}
	if err != nil {
		log.Error("failed to persist consent record", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to save consent decision",
		})
		return
	}

	if err := a.appendLog(r, rec, req.PageURL); err != nil {
		log.Error("failed to append consent log", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to record consent decision",
		})
		return
	}

	observability.ConsentSavedTotal.WithLabelValues(string(rec.Status)).Inc()
	log.Info("consent saved",
		slog.String("consent_id", rec.ID),
		slog.String("status", string(rec.Status)))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SaveConsentResponse{
		Success:    true,
		ConsentID:  rec.ID,
		Categories: rec.Categories,
		Status:     string(rec.Status),
	})
}

// handleAcceptCategory processes POST /api/v1/consent/categories/{key}: a
// single-category grant that keeps the rest of the stored decision intact.
func (a *API) handleAcceptCategory(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	key := chi.URLParam(r, "key")

	if !a.catalog.Knows(key) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_NOT_FOUND",
			Message: "Unknown consent category",
		})
		return
	}

	machine := a.machineFor(w, r, "")
	rec, err := machine.AcceptCategory(r.Context(), key)
	if err != nil {
		log.Error("failed to persist category grant", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to save consent decision",
		})
		return
	}

	if err := a.appendLog(r, rec, ""); err != nil {
		log.Error("failed to append consent log", "error", err)
	}

	observability.ConsentSavedTotal.WithLabelValues(string(rec.Status)).Inc()
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SaveConsentResponse{
		Success:    true,
		ConsentID:  rec.ID,
		Categories: rec.Categories,
		Status:     string(rec.Status),
	})
}

// handleRevokeConsent processes DELETE /api/v1/consent: expire the cookie
// and forget the decision. The audit log is deliberately untouched.
func (a *API) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	machine := a.machineFor(w, r, "")

	if err := machine.Revoke(); err != nil {
		// No valid record means there is nothing to revoke.
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_STATE",
			Message: "No consent decision to revoke",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]bool{"success": true})
}

// handleGetConsent processes GET /api/v1/consent/{consentID}: the latest
// logged decision for an id. The id may also arrive as a consent_id query
// parameter, which is what the original client transport sends.
func (a *API) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	consentID := chi.URLParam(r, "consentID")
	if consentID == "" {
		consentID = r.URL.Query().Get("consent_id")
	}
	if consentID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "consent_id is required",
		})
		return
	}

	entry, err := a.logs.LatestByConsentID(r.Context(), consentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_NOT_FOUND",
				Message: "No consent recorded for this id",
			})
			return
		}
		log.Error("failed to load consent log", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to load consent record",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ConsentRecordResponse{
		ConsentID:  entry.ConsentID,
		Categories: entry.Categories,
		Status:     string(entry.Status),
		GeoCountry: entry.GeoCountry,
		CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// appendLog writes the audit row for a decision, enriched with request
// metadata. The Referer header stands in when the payload carried no page
// URL.
func (a *API) appendLog(r *http.Request, rec *consent.Record, pageURL string) error {
	if pageURL == "" {
		pageURL = r.Header.Get("Referer")
	}

	return a.logs.SaveLog(r.Context(), &store.LogEntry{
		ConsentID:  rec.ID,
		Categories: rec.Categories,
		Status:     rec.Status,
		PageURL:    pageURL,
		IPAddress:  geo.ClientIP(r),
		UserAgent:  r.UserAgent(),
		GeoCountry: a.locator.Country(r),
	})
}
