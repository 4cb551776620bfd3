package retrybuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/logflow/internal/model"
)

func batchOf(n int) []model.CanonicalLog {
	out := make([]model.CanonicalLog, n)
	return out
}

func TestBuffer_ParkAndDrain(t *testing.T) {
	b := New()
	discarded := b.Park(batchOf(1))
	assert.False(t, discarded)
	assert.Equal(t, 1, b.Len())

	drained := b.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_DiscardsOldestAtCapacity(t *testing.T) {
	b := New()
	for i := 0; i < Capacity; i++ {
		discarded := b.Park(batchOf(1))
		assert.False(t, discarded)
	}
	assert.Equal(t, Capacity, b.Len())

	discarded := b.Park(batchOf(1))
	assert.True(t, discarded)
	assert.Equal(t, Capacity, b.Len())
	assert.Equal(t, uint64(1), b.Discarded())
}

func TestBuffer_DrainIsFIFO(t *testing.T) {
	b := New()
	first := []model.CanonicalLog{{Source: "first"}}
	second := []model.CanonicalLog{{Source: "second"}}
	b.Park(first)
	b.Park(second)

	drained := b.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, "first", drained[0][0].Source)
	assert.Equal(t, "second", drained[1][0].Source)
}
