// Package metrics registers the Prometheus collectors exposed at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parcela"

// Reservation outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Cache results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_total",
		Help:      "Reservation submissions by outcome",
	}, []string{"outcome"})

	ReservationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservation_transitions_total",
		Help:      "Reservation status changes by target status",
	}, []string{"status"})

	MapSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "map_sessions_active",
		Help:      "Open map WebSocket sessions",
	})

	FeatureCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feature_cache_total",
		Help:      "Lot feature collection cache lookups by result",
	}, []string{"result"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Domain events published by subject and result",
	}, []string{"subject", "result"})
)

// PoolStats reports database connection pool occupancy.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	MaxConns() int32
}

// RegisterPool exposes pool gauges that are read at scrape time.
func RegisterPool(stats func() PoolStats) {
	gauge := func(name, help string, read func(PoolStats) int32) {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(stats())) })
	}
	gauge("acquired_conns", "Connections currently in use", PoolStats.AcquiredConns)
	gauge("idle_conns", "Idle connections", PoolStats.IdleConns)
	gauge("max_conns", "Configured pool ceiling", PoolStats.MaxConns)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
