// Package observability collects Prometheus metrics for the service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry plus the counters the ledger engine reports.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	PaymentsRecorded    prometheus.Counter
	OverpaymentsAllowed prometheus.Counter
	LedgerRecomputes    prometheus.Counter
	ConsistencyWarnings prometheus.Counter
	StagedApplyFailures prometheus.Counter
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "caravel_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "caravel_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	payments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "caravel_payments_recorded_total",
		Help: "Payments recorded through the reconciler.",
	})
	overpays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "caravel_overpayments_allowed_total",
		Help: "Payments that pushed an item advance past its value in lenient mode.",
	})
	recomputes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "caravel_ledger_recomputes_total",
		Help: "Explicit ledger recomputations.",
	})
	warnings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "caravel_ledger_consistency_warnings_total",
		Help: "Recomputations that diverged from the cached snapshot.",
	})
	applyFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "caravel_staged_apply_failures_total",
		Help: "Staged change entries that failed to apply.",
	})

	registry.MustRegister(requests, duration, payments, overpays, recomputes, warnings, applyFailures)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		PaymentsRecorded:    payments,
		OverpaymentsAllowed: overpays,
		LedgerRecomputes:    recomputes,
		ConsistencyWarnings: warnings,
		StagedApplyFailures: applyFailures,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
