package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	m.CacheHitsTotal.Inc()
	m.CacheMissesTotal.Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheMissesTotal))
}

func TestObserveResolution(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveResolution("cache_miss", nil, 5*time.Millisecond)
	m.ObserveResolution("cache_miss", errors.New("db down"), time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("cache_miss", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("cache_miss", "error")))
}

func TestHTTPMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/permissions/ACTIVE/ADMIN", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/permissions/ACTIVE/ADMIN", "418")))
}
