// Package dispatcher implements the pairing dispatcher (§4.5): the TCP
// accept loop that reads each connection's pairing preamble, joins comm and
// data halves sharing a ConnectionId into one PairingSlot, and spawns a
// session once a slot is complete. A background watchdog reaps slots that
// never complete pairing and sessions that go quiet.
package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/config"
	"github.com/apollo3zehn/nexus-remote-agent/internal/datasource"
	"github.com/apollo3zehn/nexus-remote-agent/internal/events"
	"github.com/apollo3zehn/nexus-remote-agent/internal/metrics"
	"github.com/apollo3zehn/nexus-remote-agent/internal/otel"
	"github.com/apollo3zehn/nexus-remote-agent/internal/session"
	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

const roleTagLength = 4

// SourceFactory produces a new data-source instance for a session. The
// dispatcher calls it exactly once per completed pairing slot.
type SourceFactory func() (datasource.DataSource, error)

// Dispatcher owns the listening socket, the slot table, and the watchdog.
type Dispatcher struct {
	listener  net.Listener
	slots     *SlotTable
	newSource SourceFactory
	logger    *slog.Logger
	slotStats *metrics.SlotTracker

	sessionsWg sync.WaitGroup
}

// New creates a Dispatcher that accepts on the already-bound listener. newSource is called once per
// paired connection to produce the data source that connection's session
// will serve requests against.
func New(listener net.Listener, newSource SourceFactory, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		listener:  listener,
		slots:     NewSlotTable(),
		newSource: newSource,
		logger:    logger,
	}
}

// Slots exposes the slot table for diagnostics (e.g. an admin surface
// reporting live connection counts).
func (d *Dispatcher) Slots() *SlotTable {
	return d.slots
}

// SetSlotTracker wires a metrics.SlotTracker to record pairing-slot
// lifecycle events (created/paired/closed/reaped) as they happen. Optional;
// nil by default.
func (d *Dispatcher) SetSlotTracker(tracker *metrics.SlotTracker) {
	d.slotStats = tracker
}

// Serve runs the accept loop until ctx is cancelled or the listener is
// closed. Each accepted connection is paired on its own goroutine so a slow
// or malicious peer's preamble read cannot block other connections.
func (d *Dispatcher) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		d.listener.Close()
	}()

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go d.handleConnection(ctx, conn)
	}
}

// handleConnection reads the pairing preamble and, once a slot is
// complete, spawns its session.
func (d *Dispatcher) handleConnection(ctx context.Context, conn net.Conn) {
	id, role, err := readPreamble(conn)
	if err != nil {
		d.logger.Warn("pairing failed", "error", err)
		conn.Close()
		return
	}

	slot, spawn := d.pair(id, role, conn)
	if slot == nil {
		// A duplicate role arrived for an already-complete or already-used
		// slot; the new half has nothing to attach to.
		d.logger.Warn("pairing rejected: duplicate or unknown role", "connection_id", id, "role", role)
		conn.Close()
		return
	}
	if !spawn {
		return
	}

	d.spawnSession(ctx, slot)
}

// pair attaches conn to the slot for id under the given role, creating the
// slot if this is the first half seen for id. It reports the slot and
// whether this call completed it (and should spawn a session).
func (d *Dispatcher) pair(id wire.ConnectionID, role string, conn net.Conn) (*PairingSlot, bool) {
	d.slots.mu.Lock()
	defer d.slots.mu.Unlock()

	slot, ok := d.slots.slots[id]
	if !ok {
		slot = &PairingSlot{ID: id, CreatedAt: time.Now()}
		d.slots.slots[id] = slot
		if d.slotStats != nil {
			d.slotStats.RecordEvent(id, metrics.EventTypeCreated)
		}
		events.GetGlobalEventLogger().LogSlotCreated(id, role)
	}

	switch role {
	case "comm":
		if slot.CommConn != nil {
			return nil, false
		}
		slot.CommConn = conn
	case "data":
		if slot.DataConn != nil {
			return nil, false
		}
		slot.DataConn = conn
	default:
		return nil, false
	}

	if slot.Complete() && slot.Session == nil {
		if d.slotStats != nil {
			d.slotStats.RecordEvent(id, metrics.EventTypePaired)
		}
		events.GetGlobalEventLogger().LogSlotPaired(id)
		return slot, true
	}
	return slot, false
}

// spawnSession builds the data source and session for a newly complete slot
// and runs it to completion, cleaning up the slot table afterward.
func (d *Dispatcher) spawnSession(ctx context.Context, slot *PairingSlot) {
	source, err := d.newSource()
	if err != nil {
		d.logger.Error("failed to construct data source", "connection_id", slot.ID, "error", err)
		d.closeSlot(slot)
		d.slots.Remove(slot.ID)
		return
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess := session.NewSession(slot.ID, slot.CommConn, slot.CommConn, slot.DataConn, slot.DataConn, source)

	d.slots.mu.Lock()
	slot.Session = sess
	slot.cancel = cancel
	d.slots.mu.Unlock()

	d.sessionsWg.Add(1)
	otel.GetGlobalMetrics().IncrementSessions(ctx)
	go func() {
		defer d.sessionsWg.Done()
		defer cancel()
		defer d.closeSlot(slot)
		defer d.slots.Remove(slot.ID)
		defer otel.GetGlobalMetrics().DecrementSessions(ctx)

		reason := "closed"
		if err := sess.Run(sessCtx, nil); err != nil {
			reason = err.Error()
			d.logger.Warn("session ended", "connection_id", slot.ID, "error", err)
		} else {
			d.logger.Info("session closed", "connection_id", slot.ID)
		}
		if d.slotStats != nil {
			d.slotStats.RecordEvent(slot.ID, metrics.EventTypeClosed)
		}
		events.GetGlobalEventLogger().LogSessionClosed(slot.ID, reason)
	}()
}

func (d *Dispatcher) closeSlot(slot *PairingSlot) {
	if slot.CommConn != nil {
		slot.CommConn.Close()
	}
	if slot.DataConn != nil {
		slot.DataConn.Close()
	}
}

// Wait blocks until all spawned sessions have returned. Callers typically
// call this after Serve returns, during shutdown.
func (d *Dispatcher) Wait() {
	d.sessionsWg.Wait()
}

// readPreamble reads the 36-byte connection id followed by the 4-byte role
// tag ("comm" or "data"), enforcing config.PreambleReadTimeout.
func readPreamble(conn net.Conn) (wire.ConnectionID, string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(config.PreambleReadTimeout)); err != nil {
		return wire.ConnectionID{}, "", &PairingError{Reason: "setting read deadline", Cause: err}
	}
	defer conn.SetReadDeadline(time.Time{})

	idBuf := make([]byte, 36)
	if _, err := io.ReadFull(conn, idBuf); err != nil {
		return wire.ConnectionID{}, "", &PairingError{Reason: "reading connection id", Cause: err}
	}
	id, err := wire.ParseConnectionID(string(idBuf))
	if err != nil {
		return wire.ConnectionID{}, "", &PairingError{Reason: "parsing connection id", Cause: err}
	}

	roleBuf := make([]byte, roleTagLength)
	if _, err := io.ReadFull(conn, roleBuf); err != nil {
		return wire.ConnectionID{}, "", &PairingError{Reason: "reading role tag", Cause: err}
	}
	role := string(roleBuf)
	if role != "comm" && role != "data" {
		return wire.ConnectionID{}, "", &PairingError{Reason: "unrecognized role tag: " + role}
	}

	return id, role, nil
}
