// Package metrics exposes Prometheus instrumentation for the relay service.
//
// Each [Metrics] owns its registry, so several servers (or tests) can coexist in one
// process. All methods are safe on a nil receiver.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/ytrelay/internal/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ytrelay"

// Metrics holds the collectors for one server instance.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	resolveTotal    *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec

	relayTotal    *prometheus.CounterVec
	relayBytes    prometheus.Counter
	relayDuration *prometheus.HistogramVec
}

// New creates a [Metrics] with a fresh registry that also carries the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time to serve HTTP requests by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		resolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Resolver attempts by resolver and result",
		}, []string{"resolver", "result"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time spent in a single resolver attempt",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 35, 60},
		}, []string{"resolver"}),
		relayTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_total",
			Help:      "Finished relays by outcome and response status",
		}, []string{"outcome", "code"}),
		relayBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_bytes_total",
			Help:      "Bytes streamed to clients by the relay",
		}),
		relayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_duration_seconds",
			Help:      "Lifetime of relayed streams",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600, 1800},
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.resolveTotal,
		m.resolveDuration,
		m.relayTotal,
		m.relayBytes,
		m.relayDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveResolve records one resolver attempt.
func (m *Metrics) ObserveResolve(resolver string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.resolveTotal.WithLabelValues(resolver, result).Inc()
	m.resolveDuration.WithLabelValues(resolver).Observe(elapsed.Seconds())
}

// ObserveRelay implements relay.Observer.
func (m *Metrics) ObserveRelay(outcome string, status int, bytes int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.relayTotal.WithLabelValues(outcome, strconv.Itoa(status)).Inc()
	if bytes > 0 {
		m.relayBytes.Add(float64(bytes))
	}
	m.relayDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// RegisterCache exports the short-ID cache counters, read on every scrape.
func (m *Metrics) RegisterCache(c *cache.Cache) {
	if m == nil || c == nil {
		return
	}

	counter := func(name, help string, pick func(cache.Stats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(c.Stats())) })
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held by the short-ID cache",
		}, func() float64 { return float64(c.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "capacity",
			Help:      "Maximum entries held by the short-ID cache",
		}, func() float64 { return float64(c.Capacity()) }),
		counter("hits_total", "Cache lookups that found a live entry", func(s cache.Stats) int64 { return s.Hits }),
		counter("misses_total", "Cache lookups for unknown or expired IDs", func(s cache.Stats) int64 { return s.Misses }),
		counter("puts_total", "URLs stored in the cache", func(s cache.Stats) int64 { return s.Puts }),
		counter("evictions_total", "Entries evicted for capacity", func(s cache.Stats) int64 { return s.Evictions }),
		counter("expired_total", "Entries dropped after their TTL", func(s cache.Stats) int64 { return s.Expired }),
		counter("collisions_total", "Puts whose ID was already held by a different live URL", func(s cache.Stats) int64 { return s.Collisions }),
	)
}
