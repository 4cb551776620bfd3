// Package metrics exposes both the Prometheus counters/gauges the control
// API's /metrics endpoint serves and the per-source Metrics snapshot the
// Control Plane's metrics() operation returns (§4.6).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIn = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logflow_events_in_total",
			Help: "Total records received per source.",
		},
		[]string{"source"},
	)

	EventsDroppedQueueFull = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logflow_events_dropped_queue_full_total",
			Help: "Records dropped because the source queue was full.",
		},
		[]string{"source"},
	)

	EventsDroppedFilter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logflow_events_dropped_filter_total",
			Help: "Records dropped by the Filter Engine.",
		},
		[]string{"source"},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logflow_events_delivered_total",
			Help: "CanonicalLog records successfully delivered to a sink.",
		},
		[]string{"source"},
	)

	BytesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logflow_bytes_delivered_total",
			Help: "Bytes successfully delivered to a sink.",
		},
		[]string{"source"},
	)

	BatchesRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logflow_batches_retried_total",
			Help: "Sink delivery attempts that were retried after a transient failure.",
		},
		[]string{"source"},
	)

	BatchesParked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logflow_batches_parked_total",
			Help: "Batches parked in the source-local retry buffer after exhausting retries.",
		},
		[]string{"source"},
	)

	BatchesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logflow_batches_discarded_total",
			Help: "Parked batches discarded because the retry buffer was at capacity.",
		},
		[]string{"source"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logflow_queue_depth",
			Help: "Current number of records queued for a source.",
		},
		[]string{"source"},
	)

	WorkersActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logflow_workers_active",
			Help: "Number of active processor workers for a source.",
		},
		[]string{"source"},
	)
)
