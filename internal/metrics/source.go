package metrics

import (
	"sync"
	"sync/atomic"
)

// SourceMetrics accumulates the per-source counters listed in §4.6's
// metrics() operation. All increments are atomic; LastError is guarded by
// a mutex since it is a string, not an integer.
type SourceMetrics struct {
	SourceID string

	EventsIn                atomic.Int64
	EventsDroppedQueueFull  atomic.Int64
	EventsDroppedFilter     atomic.Int64
	EventsDelivered         atomic.Int64
	BytesDelivered          atomic.Int64
	EventsInQueue           atomic.Int64
	EventsInFlight          atomic.Int64
	WorkersActive           atomic.Int64
	BatchesRetried          atomic.Int64
	BatchesParked           atomic.Int64
	BatchesDiscarded        atomic.Int64

	mu        sync.RWMutex
	lastError string
}

// NewSourceMetrics returns a zeroed metrics block for sourceID.
func NewSourceMetrics(sourceID string) *SourceMetrics {
	return &SourceMetrics{SourceID: sourceID}
}

// SetLastError records the most recent delivery error for this source.
func (m *SourceMetrics) SetLastError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		m.lastError = ""
		return
	}
	m.lastError = err.Error()
}

// LastError returns the most recently recorded error string, or "".
func (m *SourceMetrics) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// Snapshot is a point-in-time, JSON-friendly copy of a SourceMetrics.
type Snapshot struct {
	SourceID               string `json:"source_id"`
	QueueDepth             int64  `json:"queue_depth"`
	WorkersActive          int64  `json:"workers_active"`
	EventsIn               int64  `json:"events_in"`
	EventsDroppedQueueFull int64  `json:"events_dropped_queue_full"`
	EventsDroppedFilter    int64  `json:"events_dropped_filter"`
	EventsDelivered        int64  `json:"events_delivered"`
	BytesDelivered         int64  `json:"bytes_delivered"`
	LastError              string `json:"last_error,omitempty"`
}

// Snapshot returns a consistent-enough point-in-time copy for the
// metrics() control API operation. Perfect cross-field consistency is not
// guaranteed under concurrent updates; each field read is atomic.
func (m *SourceMetrics) Snapshot() Snapshot {
	return Snapshot{
		SourceID:               m.SourceID,
		QueueDepth:             m.EventsInQueue.Load(),
		WorkersActive:          m.WorkersActive.Load(),
		EventsIn:               m.EventsIn.Load(),
		EventsDroppedQueueFull: m.EventsDroppedQueueFull.Load(),
		EventsDroppedFilter:    m.EventsDroppedFilter.Load(),
		EventsDelivered:        m.EventsDelivered.Load(),
		BytesDelivered:         m.BytesDelivered.Load(),
		LastError:              m.LastError(),
	}
}

// PublishPrometheus mirrors the current counters into the package-level
// Prometheus vectors, keyed by source ID.
func (m *SourceMetrics) PublishPrometheus() {
	QueueDepth.WithLabelValues(m.SourceID).Set(float64(m.EventsInQueue.Load()))
	WorkersActive.WithLabelValues(m.SourceID).Set(float64(m.WorkersActive.Load()))
}
