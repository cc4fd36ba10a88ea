package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnceAndReuses(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := New(Options{Registerer: reg})
	require.NoError(t, err)
	second, err := New(Options{Registerer: reg})
	require.NoError(t, err)

	first.CacheHit()
	second.CacheHit()

	assert.Equal(t, float64(2), testutil.ToFloat64(first.CacheHits))
	assert.Same(t, first.CacheHits, second.CacheHits)
}

func TestRecorders(t *testing.T) {
	m, err := New(Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	m.CacheMiss()
	m.CacheEvicted("lru")
	m.CacheEvicted("lru")
	m.CacheEntries(7)
	m.LoginOutcome("success")
	m.RefreshOutcome("revoked")
	m.LogoutOutcome("all")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheEvictions.WithLabelValues("lru")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.CacheSize))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Logins.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Refreshes.WithLabelValues("revoked")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Logouts.WithLabelValues("all")))
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit()
		m.CacheMiss()
		m.CacheEvicted("ttl")
		m.CacheEntries(1)
		m.LoginOutcome("success")
		m.RefreshOutcome("success")
		m.LogoutOutcome("single")
	})
}

func TestHandler_RecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m, err := New(Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	r := gin.New()
	r.Use(m.Handler())
	r.POST("/auth/login", func(c *gin.Context) { c.Status(http.StatusUnauthorized) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	labels := prometheus.Labels{"method": http.MethodPost, "route": "/auth/login", "status": "401"}
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.With(labels)))
}
