package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BillingOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_operations_total",
		Help: "Billing operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	BillingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_operation_duration_seconds",
		Help:    "Latency of billing operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	QueueRetained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_queue_retained_total",
		Help: "Queued charges left in EM_FILA after a drain attempt.",
	})
)

// ObserveBilling records one finished billing operation.
func ObserveBilling(operation, outcome string, start time.Time) {
	BillingOperations.WithLabelValues(operation, outcome).Inc()
	BillingDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
