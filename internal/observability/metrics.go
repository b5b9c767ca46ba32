package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (e.g., consentd_...).
const namespace = "consentd"

// lowLatencyBuckets gives 1ms resolution to operations that sit on the page
// render path. The standard buckets start at 5ms, which is too coarse for
// the decision endpoint.
var lowLatencyBuckets = []float64{.001, .002, .005, .010, .015, .020, .025, .030, .050, .100, .500}

var (
	// -------------------------------------------------------------------------
	// HTTP API
	// -------------------------------------------------------------------------

	// HTTPReqDuration measures the latency of HTTP requests.
	// Metric: consentd_api_http_handling_seconds
	HTTPReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	// HTTPReqTotal counts the total number of HTTP requests.
	// Metric: consentd_api_http_requests_total
	HTTPReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "code"})

	// -------------------------------------------------------------------------
	// RULE ENGINE
	// -------------------------------------------------------------------------

	// DecisionDuration measures a full resolution pass over the active rule
	// groups. This sits on the page render path, hence the fine buckets.
	// Metric: consentd_engine_decision_seconds
	DecisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "decision_seconds",
		Help:      "Time taken to resolve a display decision",
		Buckets:   lowLatencyBuckets,
	})

	// DecisionTotal counts decisions by outcome. The matched label separates
	// explicit group matches from the default.
	// Metric: consentd_engine_decisions_total
	DecisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "decisions_total",
		Help:      "Total display decisions resolved",
	}, []string{"action", "matched"}) // matched: group, default

	// -------------------------------------------------------------------------
	// CONSENT LIFECYCLE
	// -------------------------------------------------------------------------

	// ConsentSavedTotal counts persisted consent decisions by status.
	// Metric: consentd_consent_saved_total
	ConsentSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consent",
		Name:      "saved_total",
		Help:      "Total consent decisions saved",
	}, []string{"status"}) // accepted, rejected, custom

	// RateLimitRejectedTotal counts consent saves shed by the rate limiter.
	// Metric: consentd_consent_rate_limited_total
	RateLimitRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consent",
		Name:      "rate_limited_total",
		Help:      "Total consent saves rejected by the rate limiter",
	})

	// GateActivationsTotal counts blocked resources promoted to active.
	// Metric: consentd_gate_activations_total
	GateActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "activations_total",
		Help:      "Total gated resources activated",
	}, []string{"kind"}) // script, iframe

	// -------------------------------------------------------------------------
	// SYNC
	// -------------------------------------------------------------------------

	// SyncTotal counts server-side log mirror attempts by transport and
	// outcome.
	// Metric: consentd_sync_requests_total
	SyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "requests_total",
		Help:      "Total consent sync attempts",
	}, []string{"transport", "status"}) // transport: primary, fallback; status: success, fail, rate_limited
)
