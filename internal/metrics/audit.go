package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuditAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "audit",
			Name:      "appends_total",
			Help:      "Total audit records appended, by event type.",
		},
		[]string{"event_type"},
	)
	AuditPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagcore",
			Subsystem: "audit",
			Name:      "purged_total",
			Help:      "Total audit records dropped by capacity or retention purge.",
		},
		[]string{"reason"},
	)
	AuditSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flagcore",
			Subsystem: "audit",
			Name:      "size_records",
			Help:      "Current number of records held by the audit log.",
		},
	)
)

// RecordAuditAppend increments the append counter for eventType.
func RecordAuditAppend(eventType string) { AuditAppends.WithLabelValues(eventType).Inc() }

// RecordAuditPurge adds n to the purge counter for reason ("capacity" or
// "retention").
func RecordAuditPurge(reason string, n int) {
	if n <= 0 {
		return
	}
	AuditPurged.WithLabelValues(reason).Add(float64(n))
}

// SetAuditSize sets the current record-count gauge.
func SetAuditSize(n int) { AuditSize.Set(float64(n)) }
