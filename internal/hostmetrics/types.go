// Package hostmetrics collects a point-in-time snapshot of the host the
// agent is running on, surfaced through the admin diagnostics endpoint.
package hostmetrics

// Snapshot contains system-level metrics collected from the host.
type Snapshot struct {
	// CPUPercent is the overall CPU usage percentage (0-100).
	CPUPercent float64 `json:"cpu_percent"`

	// MemTotal is the total system memory in bytes.
	MemTotal uint64 `json:"mem_total"`

	// MemUsed is the used system memory in bytes.
	MemUsed uint64 `json:"mem_used"`

	// MemAvailable is the available system memory in bytes.
	MemAvailable uint64 `json:"mem_available,omitempty"`

	// LoadAvg1 is the 1-minute load average.
	LoadAvg1 float64 `json:"load_avg_1,omitempty"`

	// LoadAvg5 is the 5-minute load average.
	LoadAvg5 float64 `json:"load_avg_5,omitempty"`

	// LoadAvg15 is the 15-minute load average.
	LoadAvg15 float64 `json:"load_avg_15,omitempty"`
}
