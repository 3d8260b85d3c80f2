package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication pipeline metrics
	TokenIssuedTotal     prometheus.Counter
	TokenVerifyTotal     *prometheus.CounterVec // outcome: ok|malformed|bad_signature|expired|revoked
	PrincipalResolutions *prometheus.CounterVec // outcome: ok|not_found
	LoginAttemptsTotal   *prometheus.CounterVec // outcome: ok|bad_credentials|throttled

	// Authorization metrics
	PolicyDecisionsTotal *prometheus.CounterVec // outcome: allow|deny_unauthenticated|deny_forbidden

	// Moderation metrics
	WarningsIssuedTotal prometheus.Counter
	BansAppliedTotal    prometheus.Counter
	BansLiftedTotal     prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parley_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TokenIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parley_tokens_issued_total",
				Help: "Total number of access tokens issued",
			},
		),
		TokenVerifyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_token_verifications_total",
				Help: "Token verification attempts by outcome",
			},
			[]string{"outcome"},
		),
		PrincipalResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_principal_resolutions_total",
				Help: "Principal resolution attempts by outcome",
			},
			[]string{"outcome"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		PolicyDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_policy_decisions_total",
				Help: "Authorization policy decisions by outcome",
			},
			[]string{"outcome"},
		),
		WarningsIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parley_warnings_issued_total",
				Help: "Total number of moderation warnings issued",
			},
		),
		BansAppliedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parley_bans_applied_total",
				Help: "Total number of members transitioned to banned state",
			},
		),
		BansLiftedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parley_bans_lifted_total",
				Help: "Total number of expired bans lifted by the sweep job",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "parley_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "parley_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokenIssuedTotal,
		m.TokenVerifyTotal,
		m.PrincipalResolutions,
		m.LoginAttemptsTotal,
		m.PolicyDecisionsTotal,
		m.WarningsIssuedTotal,
		m.BansAppliedTotal,
		m.BansLiftedTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics.
// The path label uses the route template, not the raw URL, to bound cardinality.
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
