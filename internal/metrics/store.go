package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total store operations by backend, operation, and result.",
		},
		[]string{"backend", "op", "result"},
	)
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flagcore",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation duration in seconds, by backend and operation.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .5, 1, 5},
		},
		[]string{"backend", "op"},
	)
	StoreMergeAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "store",
			Name:      "merge_accepted_total",
			Help:      "Total remote entries accepted by merge, by backend.",
		},
		[]string{"backend"},
	)
	StoreMergeRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "store",
			Name:      "merge_rejected_total",
			Help:      "Total remote entries rejected by merge (stale or tied version), by backend.",
		},
		[]string{"backend"},
	)
)

// RecordStoreOp observes an operation's duration and records its result
// ("ok" or "error").
func RecordStoreOp(backend, op, result string, seconds float64) {
	StoreOperations.WithLabelValues(backend, op, result).Inc()
	StoreOperationDuration.WithLabelValues(backend, op).Observe(seconds)
}

// RecordMerge adds accepted/rejected counts for backend's merge call.
func RecordMerge(backend string, accepted, rejected int) {
	if accepted > 0 {
		StoreMergeAccepted.WithLabelValues(backend).Add(float64(accepted))
	}
	if rejected > 0 {
		StoreMergeRejected.WithLabelValues(backend).Add(float64(rejected))
	}
}
