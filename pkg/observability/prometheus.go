package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements every hook interface on top of Prometheus collectors.
type Metrics struct {
	cacheOps        *prometheus.CounterVec
	cacheBytes      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpErrors      *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	resolveNodes    prometheus.Histogram
	resolveErrors   prometheus.Counter
}

// NewMetrics registers the collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them on promhttp.Handler, or a fresh
// registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cacheOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pkghealth_cache_operations_total",
			Help: "Cache lookups and writes by key namespace and result.",
		}, []string{"key_type", "result"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pkghealth_cache_written_bytes_total",
			Help: "Bytes written to the cache by key namespace.",
		}, []string{"key_type"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pkghealth_upstream_requests_total",
			Help: "Upstream HTTP responses by host and status code.",
		}, []string{"host", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pkghealth_upstream_request_seconds",
			Help:    "Upstream HTTP latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
		httpErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pkghealth_upstream_errors_total",
			Help: "Upstream requests that failed without a response.",
		}, []string{"host"}),
		resolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pkghealth_resolve_seconds",
			Help:    "Time spent resolving a dependency tree.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		resolveNodes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pkghealth_resolve_nodes",
			Help:    "Nodes in resolved dependency trees.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		resolveErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "pkghealth_resolve_errors_total",
			Help: "Resolutions whose root package failed.",
		}),
	}
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheOps.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnCacheError(_ context.Context, keyType, op string, _ error) {
	m.cacheOps.WithLabelValues(keyType, op+"_error").Inc()
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(host).Observe(duration.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.httpErrors.WithLabelValues(host).Inc()
}

func (m *Metrics) OnResolveStart(context.Context, string, string, int) {}

func (m *Metrics) OnResolveComplete(_ context.Context, _, _ string, nodeCount int, duration time.Duration, err error) {
	m.resolveDuration.Observe(duration.Seconds())
	m.resolveNodes.Observe(float64(nodeCount))
	if err != nil {
		m.resolveErrors.Inc()
	}
}

var (
	_ CacheHooks   = (*Metrics)(nil)
	_ HTTPHooks    = (*Metrics)(nil)
	_ ResolveHooks = (*Metrics)(nil)
)
