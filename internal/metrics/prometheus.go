package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Collector exposes agent-wide metrics in Prometheus text format: pairing
// slot lifecycle counts pulled from a SlotTracker, plus per-method RPC call
// and error counters fed through RecordRPCCall. The session run loop does
// not call RecordRPCCall; it records RPC latency through internal/otel only.
type Collector struct {
	mu sync.RWMutex

	slots *SlotTracker

	rpcCalls  map[string]int64
	rpcErrors map[string]int64

	nowFunc func() time.Time
}

// NewCollector creates a new Collector backed by slots.
func NewCollector(slots *SlotTracker) *Collector {
	return &Collector{
		slots:     slots,
		rpcCalls:  make(map[string]int64),
		rpcErrors: make(map[string]int64),
		nowFunc:   time.Now,
	}
}

// RecordRPCCall records a single dispatched JSON-RPC method call.
func (c *Collector) RecordRPCCall(method string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rpcCalls[method]++
	if !ok {
		c.rpcErrors[method]++
	}
}

// Reset clears all collected RPC counters. The backing SlotTracker is
// reset independently via its own Reset.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rpcCalls = make(map[string]int64)
	c.rpcErrors = make(map[string]int64)
}

// Expose returns the metrics in Prometheus text exposition format.
func (c *Collector) Expose() string {
	c.mu.RLock()
	rpcCalls := make(map[string]int64, len(c.rpcCalls))
	for k, v := range c.rpcCalls {
		rpcCalls[k] = v
	}
	rpcErrors := make(map[string]int64, len(c.rpcErrors))
	for k, v := range c.rpcErrors {
		rpcErrors[k] = v
	}
	c.mu.RUnlock()

	var sb strings.Builder
	timestamp := c.nowFunc().UnixMilli()

	c.writeSlotMetrics(&sb, timestamp)
	writeCounterByMethod(&sb, timestamp, "nexusagent_rpc_calls_total", "Total number of dispatched JSON-RPC calls", rpcCalls)
	writeCounterByMethod(&sb, timestamp, "nexusagent_rpc_errors_total", "Total number of JSON-RPC calls that returned an error", rpcErrors)

	return sb.String()
}

func (c *Collector) writeSlotMetrics(sb *strings.Builder, timestamp int64) {
	var summary Summary
	if c.slots != nil {
		summary = c.slots.Summary()
	}

	sb.WriteString("# HELP nexusagent_sessions_active Number of pairing slots currently incomplete or paired\n")
	sb.WriteString("# TYPE nexusagent_sessions_active gauge\n")
	fmt.Fprintf(sb, "nexusagent_sessions_active %d %d\n", summary.ActiveSlots, timestamp)

	sb.WriteString("# HELP nexusagent_sessions_total Total number of pairing slots created\n")
	sb.WriteString("# TYPE nexusagent_sessions_total counter\n")
	fmt.Fprintf(sb, "nexusagent_sessions_total %d %d\n", summary.TotalCreated, timestamp)

	sb.WriteString("# HELP nexusagent_watchdog_reaped_total Total number of slots reaped by the watchdog\n")
	sb.WriteString("# TYPE nexusagent_watchdog_reaped_total counter\n")
	fmt.Fprintf(sb, "nexusagent_watchdog_reaped_total %d %d\n", summary.TotalReaped, timestamp)
}

func writeCounterByMethod(sb *strings.Builder, timestamp int64, name, help string, counts map[string]int64) {
	fmt.Fprintf(sb, "# HELP %s %s\n", name, help)
	fmt.Fprintf(sb, "# TYPE %s counter\n", name)

	methods := make([]string, 0, len(counts))
	for method := range counts {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	for _, method := range methods {
		fmt.Fprintf(sb, "%s{method=%q} %d %d\n", name, method, counts[method], timestamp)
	}
}
