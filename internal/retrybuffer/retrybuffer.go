// Package retrybuffer implements the source-local retry buffer of §7: once
// a batch exhausts its exponential-backoff retry attempts it is parked
// here, capped at 1,000 batches, with the oldest batch discarded (and
// counted) once the cap is exceeded. This is an in-memory-only structure —
// durable on-disk queueing is an explicit Non-goal.
package retrybuffer

import (
	"sync"

	"github.com/telhawk-systems/logflow/internal/model"
)

// Capacity is the maximum number of parked batches per source.
const Capacity = 1000

// Buffer is a capped FIFO of parked batches for one source.
type Buffer struct {
	mu       sync.Mutex
	batches  [][]model.CanonicalLog
	discarded uint64
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Park appends batch to the buffer, discarding the oldest parked batch
// (and incrementing the discard counter) if the buffer is already at
// Capacity. It reports whether a discard happened.
func (b *Buffer) Park(batch []model.CanonicalLog) (discarded bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.batches) >= Capacity {
		b.batches = b.batches[1:]
		b.discarded++
		discarded = true
	}
	b.batches = append(b.batches, batch)
	return discarded
}

// Drain removes and returns every parked batch, oldest first.
func (b *Buffer) Drain() [][]model.CanonicalLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.batches
	b.batches = nil
	return out
}

// Len reports the number of currently parked batches.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}

// Discarded reports how many batches have been dropped due to the buffer
// being at capacity.
func (b *Buffer) Discarded() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.discarded
}
