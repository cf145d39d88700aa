package hostmetrics

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Collect takes a point-in-time snapshot of host CPU, memory, and load.
// Any individual gopsutil call that fails leaves its fields at their zero
// value rather than failing the whole snapshot.
func Collect() Snapshot {
	var snap Snapshot

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		snap.CPUPercent = cpuPercent[0]
	}

	if memInfo, err := mem.VirtualMemory(); err == nil && memInfo != nil {
		snap.MemTotal = memInfo.Total
		snap.MemUsed = memInfo.Used
		snap.MemAvailable = memInfo.Available
	}

	if loadAvg, err := load.Avg(); err == nil && loadAvg != nil {
		snap.LoadAvg1 = loadAvg.Load1
		snap.LoadAvg5 = loadAvg.Load5
		snap.LoadAvg15 = loadAvg.Load15
	}

	return snap
}
