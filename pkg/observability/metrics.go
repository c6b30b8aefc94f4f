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

	// Authorization metrics
	PermissionChecksTotal   *prometheus.CounterVec
	PermissionCheckDuration *prometheus.HistogramVec
	AuthFailuresTotal       *prometheus.CounterVec

	// Permission cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics
	OrganizationsTotal prometheus.Gauge
	EmployeesTotal     prometheus.Gauge
	InvitationsPending prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgdeck_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orgdeck_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgdeck_permission_checks_total",
				Help: "Total number of permission gate decisions",
			},
			[]string{"flag", "role", "decision"},
		),
		PermissionCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orgdeck_permission_check_duration_seconds",
				Help:    "Permission resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flag"},
		),
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgdeck_auth_failures_total",
				Help: "Total number of authentication failures",
			},
			[]string{"reason"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgdeck_permission_cache_hits_total",
				Help: "Total number of permission cache hits",
			},
			[]string{"layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgdeck_permission_cache_misses_total",
				Help: "Total number of permission cache misses",
			},
			[]string{"layer"},
		),
		DBConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgdeck_db_connections_active",
			Help: "Number of active database connections",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgdeck_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		OrganizationsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgdeck_organizations_total",
			Help: "Total number of organizations",
		}),
		EmployeesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgdeck_employees_total",
			Help: "Total number of employees",
		}),
		InvitationsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgdeck_invitations_pending",
			Help: "Number of pending invitations",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.PermissionCheckDuration,
		m.AuthFailuresTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.OrganizationsTotal,
		m.EmployeesTotal,
		m.InvitationsPending,
	)

	return m
}

// ObservePermissionCheck records a gate decision
func (m *Metrics) ObservePermissionCheck(flag, role string, allowed bool, duration time.Duration) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.PermissionChecksTotal.WithLabelValues(flag, role, decision).Inc()
	m.PermissionCheckDuration.WithLabelValues(flag).Observe(duration.Seconds())
}

// Handler returns an HTTP handler exposing the metrics registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status for HTTP metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware instruments request counts and latencies
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
