package dispatcher

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/session"
	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

// PairingSlot tracks the progress of pairing one ConnectionId's comm and
// data halves. A slot is created on the first half to arrive and removed
// once its session ends or the watchdog reaps it. While the slot exists, a
// second connection for a role it already holds is rejected; once the slot
// is removed, the table keeps no record of the id, and a later connection
// with the same ConnectionId creates a fresh slot.
type PairingSlot struct {
	ID wire.ConnectionID

	CommConn net.Conn
	DataConn net.Conn

	// CreatedAt is when the slot was first created, for the incomplete-half
	// dead-slot rule.
	CreatedAt time.Time

	Session *session.Session
	cancel  context.CancelFunc
}

// Complete reports whether both halves have arrived.
func (p *PairingSlot) Complete() bool {
	return p.CommConn != nil && p.DataConn != nil
}

// Age reports how long this slot has existed.
func (p *PairingSlot) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}

// SlotTable is the dispatcher's mutex-guarded map from ConnectionId to its
// pairing slot.
type SlotTable struct {
	mu    sync.Mutex
	slots map[wire.ConnectionID]*PairingSlot
}

// NewSlotTable creates an empty slot table.
func NewSlotTable() *SlotTable {
	return &SlotTable{slots: make(map[wire.ConnectionID]*PairingSlot)}
}

// Count returns the number of live slots, for diagnostics.
func (t *SlotTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Snapshot returns a copy of the current slots, safe to range over without
// holding the table's lock.
func (t *SlotTable) Snapshot() []*PairingSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*PairingSlot, 0, len(t.slots))
	for _, slot := range t.slots {
		out = append(out, slot)
	}
	return out
}

// Remove deletes a slot by id, used once its session has ended or the
// watchdog has reaped it.
func (t *SlotTable) Remove(id wire.ConnectionID) {
	t.mu.Lock()
	delete(t.slots, id)
	t.mu.Unlock()
}
