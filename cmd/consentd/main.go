// Command consentd runs the consent service: the decision endpoint, the
// consent save/lookup API, rule group administration, and the observability
// server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediciweb/consentd/internal/api"
	"github.com/mediciweb/consentd/internal/cache"
	"github.com/mediciweb/consentd/internal/config"
	"github.com/mediciweb/consentd/internal/consent"
	"github.com/mediciweb/consentd/internal/database"
	"github.com/mediciweb/consentd/internal/geo"
	"github.com/mediciweb/consentd/internal/logger"
	"github.com/mediciweb/consentd/internal/nonce"
	"github.com/mediciweb/consentd/internal/observability"
	"github.com/mediciweb/consentd/internal/ratelimit"
	"github.com/mediciweb/consentd/internal/ruleengine"
	"github.com/mediciweb/consentd/internal/store"
	"github.com/mediciweb/consentd/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("consentd exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	var checkers []observability.Checker

	// Storage. Without PostgreSQL the service runs on in-process stores,
	// which is fine for development and single-node trials.
	var rules store.RuleRepository = store.NewMemoryRuleStore()
	var logs store.ConsentLogRepository = store.NewMemoryConsentLogStore()
	if cfg.Database.IsConfigured() {
		pool, err := database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		rules = store.NewPostgresRuleStore(pool)
		cached, err := store.NewCachedConsentLogStore(
			store.NewPostgresConsentLogStore(pool), 10_000, time.Hour)
		if err != nil {
			return err
		}
		defer cached.Close()
		logs = cached
		checkers = append(checkers, database.NewHealthChecker(pool))
	} else {
		log.Warn("postgres not configured, using in-memory stores")
	}

	// Rate limiting. Redis makes the limit hold across replicas; the
	// in-memory limiter covers single-node deployments.
	var limiter ratelimit.Limiter
	if cfg.Redis.IsConfigured() {
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimit.MaxPerWindow, cfg.RateLimit.Window)
		checkers = append(checkers, cache.NewHealthChecker(client))
	} else {
		log.Warn("redis not configured, rate limits are per replica")
		memLimiter := ratelimit.NewMemoryLimiter(ctx, cfg.RateLimit.MaxPerWindow, cfg.RateLimit.Window)
		defer memLimiter.Stop()
		limiter = memLimiter
	}

	locator, err := geo.NewCachedLocator(
		geo.NewHeaderLocator(cfg.Geo.CountryHeader), cfg.Geo.CacheSize, cfg.Geo.CacheTTL)
	if err != nil {
		return err
	}
	defer locator.Close()

	var nonceSvc *nonce.Service
	if cfg.Sync.NonceSecret != "" {
		nonceSvc = nonce.New(cfg.Sync.NonceSecret)
	} else {
		log.Warn("nonce secret not configured, form saves are unverified")
	}

	// Upstream mirroring is optional; most deployments are themselves the
	// system of record.
	var mirror consent.Syncer
	if cfg.Sync.PrimaryURL != "" {
		var nonceFn syncer.NonceFunc
		if nonceSvc != nil {
			nonceFn = nonceSvc.Generate
		}
		mirror = syncer.New(syncer.Config{
			PrimaryURL:  cfg.Sync.PrimaryURL,
			FallbackURL: cfg.Sync.FallbackURL,
			Timeout:     cfg.Sync.Timeout,
		}, nonceFn, log)
	}

	// Audit log retention.
	janitor := store.NewJanitor(logs, cfg.Consent.LogRetention, 0, log)
	go janitor.Run(ctx)

	// Observability server: liveness, readiness, metrics.
	obs := observability.NewServer(log, &cfg.Observability, checkers...)
	obs.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Error("observability server shutdown failed", "error", err)
		}
	}()

	a := api.NewAPI(api.Options{
		Rules:    rules,
		Logs:     logs,
		Resolver: ruleengine.NewResolver(ruleengine.NewRegistry(), log),
		Catalog:  consent.NewCatalog(cfg.Consent.Categories, cfg.Consent.RequiredCategories),
		Limiter:  limiter,
		Locator:  locator,
		Syncer:   mirror,
		Nonce:    nonceSvc,
		Consent:  cfg.Consent,
		Logger:   log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      a.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("consent API listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", slog.Duration("grace", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
