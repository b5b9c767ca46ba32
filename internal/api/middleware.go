package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/mediciweb/consentd/internal/geo"
	"github.com/mediciweb/consentd/internal/logger"
	"github.com/mediciweb/consentd/internal/observability"
)

// RequestLogger injects a request-scoped logger carrying the request id into
// the context, then logs the completion of each request with structured
// fields. Info for success, Warn for 4xx, Error for 5xx. Handlers pick the
// scoped logger up via logger.FromContext, so every line they emit carries
// the same request_id as the completion line.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		log := logger.FromContext(r.Context())
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			log = log.With(slog.String("request_id", reqID))
		}
		r = r.WithContext(logger.WithContext(r.Context(), log))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		status := ww.Status()
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		log.Log(r.Context(), level, "HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start).String(),
			"remote_ip", r.RemoteAddr,
		)
	})
}

// MetricsCollector records request counts and latency. The path label uses
// the matched route pattern, not the raw URL, to keep cardinality bounded.
func MetricsCollector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}

		observability.HTTPReqDuration.WithLabelValues(r.Method, pattern).
			Observe(time.Since(start).Seconds())
		observability.HTTPReqTotal.WithLabelValues(r.Method, pattern,
			strconv.Itoa(ww.Status())).Inc()
	})
}

// rateLimitSaves caps consent writes per client IP. A limiter backend
// failure fails open: shedding every save because Redis blinked would lose
// real consent decisions.
func (a *API) rateLimitSaves(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := geo.ClientIP(r)

		allowed, err := a.limiter.Allow(r.Context(), ip)
		if err != nil {
			logger.FromContext(r.Context()).Warn("rate limiter unavailable, allowing request",
				slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			observability.RateLimitRejectedTotal.Inc()
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_RATE_LIMITED",
				Message: "Too many consent updates, slow down",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
