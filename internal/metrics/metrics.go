package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{
	0.001, // 1ms
	0.005, // 5ms
	0.01,  // 10ms
	0.025, // 25ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1.0,   // 1s
	2.5,   // 2.5s
}

var (
	// AdmissionsTotal counts admission attempts by outcome (ADMITTED or a reason code)
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_admissions_total",
			Help: "Admission attempts by result",
		},
		[]string{"result"},
	)

	// SettlementDuration tracks payment settlement latency per path
	SettlementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_settlement_duration_seconds",
			Help:    "Duration of payment settlement attempts in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"path", "result"}, // path: normal or retry
	)

	// RetryOutcomesTotal counts retry deliveries by terminal state
	RetryOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_retry_outcomes_total",
			Help: "Payment retry deliveries by outcome",
		},
		[]string{"outcome"}, // completed, escalated, redeliver
	)

	// ActivityLogDroppedTotal counts audit records dropped because the buffer was full
	ActivityLogDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activity_log_dropped_total",
			Help: "Activity log entries dropped because the write buffer was full",
		},
	)
)

// RecordAdmission counts one admission attempt.
func RecordAdmission(result string) {
	AdmissionsTotal.WithLabelValues(result).Inc()
}

// RecordSettlement records the duration of one settlement attempt.
func RecordSettlement(path, result string, seconds float64) {
	SettlementDuration.WithLabelValues(path, result).Observe(seconds)
}

// RecordRetryOutcome counts one processed retry delivery.
func RecordRetryOutcome(outcome string) {
	RetryOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordActivityLogDropped counts one dropped audit record.
func RecordActivityLogDropped() {
	ActivityLogDroppedTotal.Inc()
}
