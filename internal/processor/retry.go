package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/telhawk-systems/logflow/internal/metrics"
	"github.com/telhawk-systems/logflow/internal/model"
	"github.com/telhawk-systems/logflow/internal/sink"
)

// maxRetryAttempts is §7's cap on the exponential-backoff retry loop for a
// single batch before it is parked to the retry buffer.
const maxRetryAttempts = 5

// newBackoff builds the exact policy from §7: initial 1s, factor 2, cap
// 60s, capped at maxRetryAttempts attempts total.
func newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 60 * time.Second
	b.RandomizationFactor = 0
	return backoff.WithMaxRetries(b, maxRetryAttempts-1)
}

// deliverWithRetry hands batch to the sink, retrying retryable failures
// with exponential backoff. A permanent failure logs and drops the batch.
// A retryable failure that exhausts its attempts is parked to the
// source-local retry buffer.
func (p *Pool) deliverWithRetry(batch []model.CanonicalLog) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts > 1 {
			p.metrics.BatchesRetried.Add(1)
			metrics.BatchesRetried.WithLabelValues(p.source.ID).Inc()
		}
		err := p.sink.Deliver(context.Background(), batch)
		if err == nil {
			return nil
		}
		if !sink.IsRetryable(err) {
			// §7 "Sink permanent": fail fast, no backoff.Retry attempts left.
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, newBackoff())
	if err == nil {
		p.onDeliverySuccess(batch)
		return
	}

	if sink.IsRetryable(err) {
		discarded := p.retry.Park(batch)
		p.metrics.BatchesParked.Add(1)
		metrics.BatchesParked.WithLabelValues(p.source.ID).Inc()
		if discarded {
			p.metrics.BatchesDiscarded.Add(1)
			metrics.BatchesDiscarded.WithLabelValues(p.source.ID).Inc()
		}
		p.logger.Warn("batch parked after exhausting retries", slog.Any("error", err), slog.Int("batch_size", len(batch)))
	} else {
		p.logger.Warn("batch dropped, permanent sink failure", slog.Any("error", err), slog.Int("batch_size", len(batch)))
	}
	p.metrics.SetLastError(err)
}

func (p *Pool) onDeliverySuccess(batch []model.CanonicalLog) {
	p.metrics.EventsDelivered.Add(int64(len(batch)))
	metrics.EventsDelivered.WithLabelValues(p.source.ID).Add(float64(len(batch)))

	size := 0
	for _, log := range batch {
		b, _ := json.Marshal(log)
		size += len(b)
	}
	p.metrics.BytesDelivered.Add(int64(size))
	metrics.BytesDelivered.WithLabelValues(p.source.ID).Add(float64(size))
	p.metrics.SetLastError(nil)
}

// FlushRetryBuffer drains and re-attempts delivery of everything parked in
// the retry buffer. Intended to be invoked periodically (e.g. by the
// Control Plane) so a recovered sink eventually catches up on parked
// batches; it is a best-effort, in-memory-only mechanism per §7.
func (p *Pool) FlushRetryBuffer() {
	for _, batch := range p.retry.Drain() {
		p.deliverWithRetry(batch)
	}
}
