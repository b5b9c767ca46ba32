package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/mediciweb/consentd/internal/logger"
	"github.com/mediciweb/consentd/internal/observability"
	"github.com/mediciweb/consentd/internal/ruleengine"
)

// handleDecision processes GET /api/v1/decision: should the banner render
// for this request. A valid consent cookie or a crawler user agent
// short-circuits to hide unless debug forcing is on; otherwise the active
// rule groups decide.
func (a *API) handleDecision(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if !a.consent.DebugForceShow {
		cookies := NewCookieStore(w, r, a.consent.CookieName)
		if cookies.Load().Valid() {
			render.Status(r, http.StatusOK)
			render.JSON(w, r, DecisionResponse{Action: string(ruleengine.ActionHide)})
			return
		}

		// Bots cannot consent; skip the banner and the resolver pass for
		// them.
		if ruleengine.IsCrawler(r.UserAgent()) {
			render.Status(r, http.StatusOK)
			render.JSON(w, r, DecisionResponse{Action: string(ruleengine.ActionHide)})
			return
		}
	}

	groups, err := a.rules.ListActiveGroups(r.Context())
	if err != nil {
		log.Error("failed to load active rule groups", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to resolve display decision",
		})
		return
	}

	req := a.requestContext(r)

	start := time.Now()
	decision := a.resolver.Resolve(derefGroups(groups), req)
	observability.DecisionDuration.Observe(time.Since(start).Seconds())

	matched := "default"
	if decision.MatchedGroupID != 0 {
		matched = "group"
	}
	observability.DecisionTotal.WithLabelValues(string(decision.Action), matched).Inc()

	render.Status(r, http.StatusOK)
	render.JSON(w, r, DecisionResponse{
		Action:         string(decision.Action),
		MatchedGroupID: decision.MatchedGroupID,
	})
}

// requestContext maps the inbound request onto the evaluators' view of it.
// Page classification and session facts arrive as hints from the rendering
// layer; network facts come off the request itself.
func (a *API) requestContext(r *http.Request) *ruleengine.RequestContext {
	q := r.URL.Query()

	var roles []string
	if raw := q.Get("roles"); raw != "" {
		for _, role := range strings.Split(raw, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
	}

	path := q.Get("path")
	if path == "" {
		path = r.URL.Path
	}

	return &ruleengine.RequestContext{
		PageType:  q.Get("page_type"),
		LoggedIn:  q.Get("logged_in") == "true" || q.Get("logged_in") == "1",
		Roles:     roles,
		UserAgent: r.UserAgent(),
		Path:      path,
		Country:   a.locator.Country(r),
	}
}

func derefGroups(groups []*ruleengine.RuleGroup) []ruleengine.RuleGroup {
	out := make([]ruleengine.RuleGroup, 0, len(groups))
	for _, g := range groups {
		if g != nil {
			out = append(out, *g)
		}
	}
	return out
}
