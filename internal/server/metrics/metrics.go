// Package metrics exposes Prometheus collectors for the session core and a
// gin middleware for request instrumentation.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// Metrics groups every collector used by the server. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions *prometheus.CounterVec
	CacheSize      prometheus.Gauge

	Logins    *prometheus.CounterVec
	Refreshes *prometheus.CounterVec
	Logouts   *prometheus.CounterVec

	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func New(opts Options) (*Metrics, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = "sessionkeeper"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var (
		m   Metrics
		err error
	)

	if m.CacheHits, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "token_cache", Name: "hits_total",
		Help: "Token cache lookups answered from memory.",
	})); err != nil {
		return nil, err
	}
	if m.CacheMisses, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "token_cache", Name: "misses_total",
		Help: "Token cache lookups that fell through to the store.",
	})); err != nil {
		return nil, err
	}
	if m.CacheEvictions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "token_cache", Name: "evictions_total",
		Help: "Token cache entries removed, partitioned by reason.",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if m.CacheSize, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: "token_cache", Name: "entries",
		Help: "Current number of token cache entries.",
	})); err != nil {
		return nil, err
	}

	if m.Logins, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "auth", Name: "logins_total",
		Help: "Login attempts partitioned by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.Refreshes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "auth", Name: "refreshes_total",
		Help: "Refresh token rotations partitioned by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.Logouts, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "auth", Name: "logouts_total",
		Help: "Logout calls partitioned by scope.",
	}, []string{"scope"})); err != nil {
		return nil, err
	}

	if m.Requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "http", Name: "requests_total",
		Help: "Total number of HTTP requests partitioned by method, route, and status code.",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}
	if m.Duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "Histogram of HTTP request latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}

	return &m, nil
}

// register adds c to reg, reusing an already registered collector of the
// same type.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) CacheEvicted(reason string) {
	if m == nil {
		return
	}
	m.CacheEvictions.WithLabelValues(reason).Inc()
}

func (m *Metrics) CacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheSize.Set(float64(n))
}

func (m *Metrics) LoginOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RefreshOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LogoutOutcome(scope string) {
	if m == nil {
		return
	}
	m.Logouts.WithLabelValues(scope).Inc()
}

// Handler returns a gin middleware recording request count and latency.
func (m *Metrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}

		m.Requests.With(labels).Inc()
		m.Duration.With(labels).Observe(time.Since(start).Seconds())
	}
}
