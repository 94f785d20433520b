package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flagcore",
			Subsystem: "evaluator",
			Name:      "duration_seconds",
			Help:      "Flag evaluation duration in seconds, by flag kind.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
		[]string{"kind"},
	)
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "evaluator",
			Name:      "evaluations_total",
			Help:      "Total evaluations by flag kind and outcome reason.",
		},
		[]string{"kind", "reason"},
	)
)

// RecordEvaluation observes a single evaluation's duration and outcome.
func RecordEvaluation(kind, reason string, seconds float64) {
	EvaluationDuration.WithLabelValues(kind).Observe(seconds)
	EvaluationsTotal.WithLabelValues(kind, reason).Inc()
}
