// Package metrics tracks pairing-slot lifecycle events and exposes them as
// Prometheus text.
package metrics

import (
	"sync"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/config"
	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

// SlotEventType is a pairing slot lifecycle transition.
type SlotEventType string

const (
	EventTypeCreated SlotEventType = "created"
	EventTypePaired  SlotEventType = "paired"
	EventTypeReaped  SlotEventType = "reaped"
	EventTypeClosed  SlotEventType = "closed"
)

// SlotEvent is a single pairing-slot lifecycle event.
type SlotEvent struct {
	ConnectionID wire.ConnectionID `json:"connection_id"`
	EventType    SlotEventType     `json:"event_type"`
	Timestamp    time.Time         `json:"timestamp"`
}

// slotState is the running per-slot view derived from its events.
type slotState struct {
	createdAt time.Time
	pairedAt  time.Time
	closedAt  time.Time
	state     string
}

// Summary is an aggregated snapshot of slot activity since the tracker
// started, or since the last Reset.
type Summary struct {
	TotalCreated int64
	TotalPaired  int64
	TotalReaped  int64
	TotalClosed  int64
	ActiveSlots  int64
}

// SlotTracker records pairing-slot lifecycle events and computes an
// aggregate Summary on demand. It is the dispatcher-domain analogue of a
// VU-session connection tracker: one ring buffer of events, one map of
// per-slot running state, guarded by a single mutex.
type SlotTracker struct {
	mu sync.RWMutex

	events    []SlotEvent
	maxEvents int
	slots     map[wire.ConnectionID]*slotState

	totalCreated int64
	totalPaired  int64
	totalReaped  int64
	totalClosed  int64

	nowFunc func() time.Time
}

// NewSlotTracker creates a new SlotTracker.
func NewSlotTracker() *SlotTracker {
	return &SlotTracker{
		events:    make([]SlotEvent, 0, config.DefaultEventBufferSize),
		maxEvents: config.DefaultEventBufferSize,
		slots:     make(map[wire.ConnectionID]*slotState),
		nowFunc:   time.Now,
	}
}

// RecordEvent records a slot lifecycle event and updates the aggregates.
func (t *SlotTracker) RecordEvent(id wire.ConnectionID, eventType SlotEventType) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	if len(t.events) >= t.maxEvents {
		t.events = t.events[1:]
	}
	t.events = append(t.events, SlotEvent{ConnectionID: id, EventType: eventType, Timestamp: now})

	switch eventType {
	case EventTypeCreated:
		t.totalCreated++
		t.slots[id] = &slotState{createdAt: now, state: "incomplete"}
	case EventTypePaired:
		t.totalPaired++
		if s, ok := t.slots[id]; ok {
			s.pairedAt = now
			s.state = "active"
		}
	case EventTypeReaped:
		t.totalReaped++
		if s, ok := t.slots[id]; ok {
			s.closedAt = now
			s.state = "reaped"
		}
	case EventTypeClosed:
		t.totalClosed++
		if s, ok := t.slots[id]; ok {
			s.closedAt = now
			s.state = "closed"
		}
	}
}

// Summary computes the current aggregate view.
func (t *SlotTracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var active int64
	for _, s := range t.slots {
		if s.state == "incomplete" || s.state == "active" {
			active++
		}
	}

	return Summary{
		TotalCreated: t.totalCreated,
		TotalPaired:  t.totalPaired,
		TotalReaped:  t.totalReaped,
		TotalClosed:  t.totalClosed,
		ActiveSlots:  active,
	}
}

// RecentEvents returns the most recent n recorded events.
func (t *SlotTracker) RecentEvents(n int) []SlotEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n <= 0 || len(t.events) == 0 {
		return nil
	}
	start := len(t.events) - n
	if start < 0 {
		start = 0
	}
	result := make([]SlotEvent, len(t.events)-start)
	copy(result, t.events[start:])
	return result
}

// Reset clears all tracking data.
func (t *SlotTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = t.events[:0]
	t.slots = make(map[wire.ConnectionID]*slotState)
	t.totalCreated = 0
	t.totalPaired = 0
	t.totalReaped = 0
	t.totalClosed = 0
}
