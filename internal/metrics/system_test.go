package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// CollectSystemSnapshot hits real OS facilities through gopsutil; this only
// asserts it tolerates whatever the sandboxed test environment reports
// rather than asserting specific values.
func TestCollectSystemSnapshot_DoesNotPanicAndReturnsNonNegativeFields(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var snap SystemSnapshot
	assert.NotPanics(t, func() {
		snap = CollectSystemSnapshot(ctx, "/tmp")
	})

	assert.GreaterOrEqual(t, snap.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, snap.MemTotalBytes, uint64(0))
}

func TestCollectSystemSnapshot_UnreadableDataDirLeavesDiskFieldsZero(t *testing.T) {
	snap := CollectSystemSnapshot(context.Background(), "/does/not/exist/at/all")
	assert.Equal(t, uint64(0), snap.DiskUsedBytes)
	assert.Equal(t, uint64(0), snap.DiskFreeBytes)
}
