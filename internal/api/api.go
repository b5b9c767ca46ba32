package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/mediciweb/consentd/internal/config"
	"github.com/mediciweb/consentd/internal/consent"
	"github.com/mediciweb/consentd/internal/geo"
	"github.com/mediciweb/consentd/internal/nonce"
	"github.com/mediciweb/consentd/internal/ratelimit"
	"github.com/mediciweb/consentd/internal/ruleengine"
	"github.com/mediciweb/consentd/internal/store"
)

// API holds the HTTP surface and its dependencies. Repositories are taken as
// interfaces so tests can swap in in-memory implementations.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	rules    store.RuleRepository
	logs     store.ConsentLogRepository
	resolver *ruleengine.Resolver
	catalog  *consent.Catalog
	limiter  ratelimit.Limiter
	locator  geo.Locator
	syncer   consent.Syncer
	nonce    *nonce.Service
	consent  config.ConsentConfig
	logger   *slog.Logger
}

// Options bundles the API's dependencies. Rules, Logs, Resolver, Catalog and
// Limiter are required; Locator defaults to an empty lookup and Nonce nil
// disables form-save verification (dev only).
type Options struct {
	Rules    store.RuleRepository
	Logs     store.ConsentLogRepository
	Resolver *ruleengine.Resolver
	Catalog  *consent.Catalog
	Limiter  ratelimit.Limiter
	Locator  geo.Locator

	// Syncer, when set, mirrors every saved decision to an upstream
	// consent aggregator. Nil disables mirroring.
	Syncer consent.Syncer

	Nonce   *nonce.Service
	Consent config.ConsentConfig
	Logger  *slog.Logger
}

// NewAPI creates the API and wires its routes. Panics on missing required
// dependencies: a half-wired API is a programming error, not a runtime
// condition.
func NewAPI(opts Options) *API {
	if opts.Rules == nil {
		panic("api: rule repository cannot be nil")
	}
	if opts.Logs == nil {
		panic("api: consent log repository cannot be nil")
	}
	if opts.Resolver == nil {
		panic("api: resolver cannot be nil")
	}
	if opts.Catalog == nil {
		panic("api: category catalog cannot be nil")
	}
	if opts.Limiter == nil {
		panic("api: rate limiter cannot be nil")
	}
	if opts.Locator == nil {
		opts.Locator = geo.NewHeaderLocator("")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	a := &API{
		Router:   chi.NewRouter(),
		rules:    opts.Rules,
		logs:     opts.Logs,
		resolver: opts.Resolver,
		catalog:  opts.Catalog,
		limiter:  opts.Limiter,
		locator:  opts.Locator,
		syncer:   opts.Syncer,
		nonce:    opts.Nonce,
		consent:  opts.Consent,
		logger:   opts.Logger,
	}

	a.configureRoutes()
	return a
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger)
	a.Router.Use(MetricsCollector)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	// Form-encoded save fallback. Lives outside /api/v1 because legacy
	// clients post here with a fixed action field instead of a JSON body.
	a.Router.With(a.rateLimitSaves).Post("/consent", a.handleSaveConsentForm)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Get("/decision", a.handleDecision)

		r.Route("/consent", func(r chi.Router) {
			r.With(a.rateLimitSaves).Post("/", a.handleSaveConsent)
			r.With(a.rateLimitSaves).Post("/categories/{key}", a.handleAcceptCategory)
			r.Delete("/", a.handleRevokeConsent)
			r.Get("/", a.handleGetConsent)
			r.Get("/{consentID}", a.handleGetConsent)
		})

		r.Route("/rule-groups", func(r chi.Router) {
			r.Post("/", a.handleCreateRuleGroup)
			r.Get("/", a.handleListRuleGroups)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetRuleGroup)
				r.Put("/", a.handleUpdateRuleGroup)
				r.Delete("/", a.handleDeleteRuleGroup)
			})
		})
	})
}

// handleHealthCheck reports HTTP serving capability. Deep dependency checks
// live on the observability server's readiness probe.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
