// Package metrics registers flagcore's Prometheus instrumentation.
// Grounded on the teacher's package-per-subsystem metrics convention
// (internal/storage/metrics.go, pkg/history/cache.Metrics): package-level
// promauto vectors plus small recorder functions, namespaced "flagcore".
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache hits by tier and freshness.",
		},
		[]string{"tier", "state"},
	)
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache misses by tier.",
		},
		[]string{"tier"},
	)
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total cache evictions by tier.",
		},
		[]string{"tier"},
	)
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Total cache errors by tier and operation.",
		},
		[]string{"tier", "op"},
	)
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "flagcore",
			Subsystem: "cache",
			Name:      "size_entries",
			Help:      "Current number of entries held by a cache tier.",
		},
		[]string{"tier"},
	)
	CacheLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flagcore",
			Subsystem: "cache",
			Name:      "operation_duration_seconds",
			Help:      "Cache operation duration in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"tier", "operation"},
	)
)

// RecordCacheHit increments the hit counter for tier/state (e.g. "l1"/"fresh").
func RecordCacheHit(tier, state string) { CacheHits.WithLabelValues(tier, state).Inc() }

// RecordCacheMiss increments the miss counter for tier.
func RecordCacheMiss(tier string) { CacheMisses.WithLabelValues(tier).Inc() }

// RecordCacheEviction adds n evictions for tier.
func RecordCacheEviction(tier string, n int) {
	if n <= 0 {
		return
	}
	CacheEvictions.WithLabelValues(tier).Add(float64(n))
}

// RecordCacheError increments the error counter for tier/op.
func RecordCacheError(tier, op string) { CacheErrors.WithLabelValues(tier, op).Inc() }

// SetCacheSize sets the current gauge value for tier.
func SetCacheSize(tier string, size int) { CacheSize.WithLabelValues(tier).Set(float64(size)) }
