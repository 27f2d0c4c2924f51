package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit publisher.
type Metrics struct {
	QueueDepth      prometheus.Gauge
	EventsDropped   prometheus.Counter
	EventsEnqueued  prometheus.Counter
	PersistDuration prometheus.Histogram
	PersistFailures prometheus.Counter
}

// New registers the audit metrics on reg (default registry when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxid_audit_queue_depth",
			Help: "Current number of events waiting in the audit publisher queue",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "voxid_audit_events_dropped_total",
			Help: "Audit events dropped because the buffer was full",
		}),
		EventsEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "voxid_audit_events_enqueued_total",
			Help: "Audit events accepted by the publisher",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxid_audit_persist_duration_seconds",
			Help:    "Time taken to hand an audit event to the sink",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "voxid_audit_persist_failures_total",
			Help: "Audit events the sink failed to accept",
		}),
	}
}
