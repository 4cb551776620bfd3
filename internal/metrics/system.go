package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
)

// SystemSnapshot is the system-wide CPU/mem/disk/net snapshot the
// metrics() control API operation attaches alongside per-source metrics
// (§4.6).
type SystemSnapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemUsedBytes  uint64  `json:"mem_used_bytes"`
	MemTotalBytes uint64  `json:"mem_total_bytes"`
	DiskUsedBytes uint64  `json:"disk_used_bytes"`
	DiskFreeBytes uint64  `json:"disk_free_bytes"`
	NetBytesSent  uint64  `json:"net_bytes_sent"`
	NetBytesRecv  uint64  `json:"net_bytes_recv"`
}

// CollectSystemSnapshot samples CPU/mem/disk/net via gopsutil. dataDir
// selects which filesystem's usage to report. Errors from any one
// collector are tolerated (the corresponding fields are left zero) so a
// single unavailable subsystem never fails the whole metrics() call.
func CollectSystemSnapshot(ctx context.Context, dataDir string) SystemSnapshot {
	var snap SystemSnapshot

	if percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemUsedBytes = vm.Used
		snap.MemTotalBytes = vm.Total
	}

	if usage, err := disk.UsageWithContext(ctx, dataDir); err == nil {
		snap.DiskUsedBytes = usage.Used
		snap.DiskFreeBytes = usage.Free
	}

	if counters, err := net.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		snap.NetBytesSent = counters[0].BytesSent
		snap.NetBytesRecv = counters[0].BytesRecv
	}

	return snap
}
