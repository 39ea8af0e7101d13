package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Lookup outcomes.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeWater    = "water"
	OutcomeNotWater = "not_water"
	OutcomeError    = "error"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aquaripple",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aquaripple",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aquaripple",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Lookup metrics
	LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aquaripple",
		Subsystem: "lookup",
		Name:      "total",
		Help:      "Location lookups by outcome",
	}, []string{"outcome"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aquaripple",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total location cache hits",
	}, []string{"store"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aquaripple",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total location cache misses",
	}, []string{"store"})

	CacheInserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aquaripple",
		Subsystem: "cache",
		Name:      "inserts_total",
		Help:      "Total water bodies written to the location cache",
	}, []string{"store"})

	ResolverDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aquaripple",
		Subsystem: "resolver",
		Name:      "duration_seconds",
		Help:      "Duration of external resolver calls",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"resolver"})

	ResolverErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aquaripple",
		Subsystem: "resolver",
		Name:      "errors_total",
		Help:      "Total failed external resolver calls",
	}, []string{"resolver"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aquaripple",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aquaripple",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aquaripple",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat exported as gauges.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics updates database pool gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
