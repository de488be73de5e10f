package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	LoginsTotal       *prometheus.CounterVec
	AuthFailuresTotal *prometheus.CounterVec
	SessionsRevoked   prometheus.Counter

	// Organization context metrics
	ContextSwitchesTotal *prometheus.CounterVec
	ContextResolutions   *prometheus.CounterVec

	// Membership metrics
	MembershipChangesTotal *prometheus.CounterVec

	// Org snapshot cache metrics
	OrgCacheHitsTotal   prometheus.Counter
	OrgCacheMissesTotal prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Audit metrics
	AuditEventsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "craftwork_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "craftwork_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "craftwork_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"},
		),
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "craftwork_auth_failures_total",
				Help: "Total number of rejected authentications",
			},
			[]string{"reason"},
		),
		SessionsRevoked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "craftwork_sessions_revoked_total",
				Help: "Total number of sessions revoked by forced logout",
			},
		),
		ContextSwitchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "craftwork_context_switches_total",
				Help: "Total number of organization context switches",
			},
			[]string{"result", "bypass"},
		),
		ContextResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "craftwork_context_resolutions_total",
				Help: "Total number of effective context resolutions",
			},
			[]string{"source"},
		),
		MembershipChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "craftwork_membership_changes_total",
				Help: "Total number of membership grants and revocations",
			},
			[]string{"operation", "result"},
		),
		OrgCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "craftwork_org_cache_hits_total",
				Help: "Total number of organization snapshot cache hits",
			},
		),
		OrgCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "craftwork_org_cache_misses_total",
				Help: "Total number of organization snapshot cache misses",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "craftwork_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "craftwork_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "craftwork_audit_events_total",
				Help: "Total number of audit events written",
			},
			[]string{"event_type", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.AuthFailuresTotal,
		m.SessionsRevoked,
		m.ContextSwitchesTotal,
		m.ContextResolutions,
		m.MembershipChangesTotal,
		m.OrgCacheHitsTotal,
		m.OrgCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.AuditEventsTotal,
	)

	return m
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
