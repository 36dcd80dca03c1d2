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

	// Permission resolution metrics
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration *prometheus.HistogramVec

	// Resolution cache metrics
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheRebuildsTotal  *prometheus.CounterVec
	CacheEntries        prometheus.Gauge
	CacheRebuildSeconds prometheus.Histogram

	// Authorization view metrics
	ProjectionsTotal   *prometheus.CounterVec
	ProjectionDuration prometheus.Histogram

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_permission_resolutions_total",
				Help: "Total number of permission resolutions against the catalog",
			},
			[]string{"source", "status"},
		),
		ResolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_permission_resolution_duration_seconds",
				Help:    "Permission resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),

		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_permission_cache_hits_total",
				Help: "Total number of permission cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_permission_cache_misses_total",
				Help: "Total number of permission cache misses",
			},
		),
		CacheRebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_permission_cache_rebuilds_total",
				Help: "Total number of wholesale permission cache rebuilds",
			},
			[]string{"trigger", "status"},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "auth_permission_cache_entries",
				Help: "Number of entries in the permission cache",
			},
		),
		CacheRebuildSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "auth_permission_cache_rebuild_duration_seconds",
				Help:    "Permission cache rebuild duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		ProjectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_authorization_projections_total",
				Help: "Total number of authorization view projections",
			},
			[]string{"status"},
		),
		ProjectionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "auth_authorization_projection_duration_seconds",
				Help:    "Authorization view projection duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "auth_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "auth_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheRebuildsTotal,
		m.CacheEntries,
		m.CacheRebuildSeconds,
		m.ProjectionsTotal,
		m.ProjectionDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler serving the given registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware instruments HTTP handlers with request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// ObserveResolution records a single catalog resolution
func (m *Metrics) ObserveResolution(source string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ResolutionsTotal.WithLabelValues(source, status).Inc()
	m.ResolutionDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// statusRecorder captures the response status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
