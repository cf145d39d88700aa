package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/config"
	"github.com/apollo3zehn/nexus-remote-agent/internal/events"
	"github.com/apollo3zehn/nexus-remote-agent/internal/metrics"
	"github.com/apollo3zehn/nexus-remote-agent/internal/otel"
)

// Watchdog periodically sweeps a dispatcher's slot table for dead slots
// (§4.5): a slot is dead if either half is still missing after
// config.SlotDeadAfter, or if its session exists but has gone quiet for
// config.SessionIdleAfter. Dead slots have their session cancelled (if any)
// and their connections closed.
type Watchdog struct {
	dispatcher *Dispatcher
	interval   time.Duration
	deadAfter  time.Duration
	idleAfter  time.Duration
	logger     *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewWatchdog creates a Watchdog over d using the spec's fixed timing
// constants. Tests construct one directly with different timings to avoid
// waiting on the real 600-second interval.
func NewWatchdog(d *Dispatcher, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		dispatcher: d,
		interval:   config.WatchdogInterval,
		deadAfter:  config.SlotDeadAfter,
		idleAfter:  config.SessionIdleAfter,
		logger:     logger,
	}
}

// Start begins the sweep loop in a background goroutine.
func (w *Watchdog) Start() {
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	go w.run()
}

// Stop halts the sweep loop and waits for it to exit.
func (w *Watchdog) Stop() {
	if w.stopCh == nil {
		return
	}
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Watchdog) run() {
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(time.Now())
		case <-w.stopCh:
			return
		}
	}
}

// sweep is the pure decision logic, exercised directly by tests against an
// arbitrary "now" instead of waiting on the real ticker.
func (w *Watchdog) sweep(now time.Time) {
	for _, slot := range w.dispatcher.Slots().Snapshot() {
		if w.isDead(slot, now) {
			w.reap(slot)
		}
	}
}

// isDead implements the dead-slot rule: incomplete past deadAfter, or a
// running session idle past idleAfter.
func (w *Watchdog) isDead(slot *PairingSlot, now time.Time) bool {
	if !slot.Complete() && slot.Age(now) >= w.deadAfter {
		return true
	}
	if slot.Session != nil && now.Sub(slot.Session.LastCommunication()) >= w.idleAfter {
		return true
	}
	return false
}

// reap cancels the slot's session (if any), closes both connection halves,
// and removes the slot from the table.
func (w *Watchdog) reap(slot *PairingSlot) {
	reason := "incomplete pairing timed out"
	ageSeconds := time.Since(slot.CreatedAt).Seconds()
	if slot.Session != nil {
		reason = "session idle timed out"
		ageSeconds = time.Since(slot.Session.LastCommunication()).Seconds()
	}
	w.logger.Warn("watchdog reaping slot", "connection_id", slot.ID, "reason", reason)

	if w.dispatcher.slotStats != nil {
		w.dispatcher.slotStats.RecordEvent(slot.ID, metrics.EventTypeReaped)
	}
	events.GetGlobalEventLogger().LogWatchdogReaped(slot.ID, reason, ageSeconds)
	otel.GetGlobalMetrics().RecordWatchdogReaped(context.Background())

	w.dispatcher.slots.mu.Lock()
	cancel := slot.cancel
	w.dispatcher.slots.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.dispatcher.closeSlot(slot)
	w.dispatcher.slots.Remove(slot.ID)
}
