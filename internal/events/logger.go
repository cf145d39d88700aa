// Package events provides structured logging for pairing and session
// lifecycle events.
package events

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

// EventLogger provides structured logging for key lifecycle events in the
// agent. Every line carries the agent's process-wide instance id, the way
// the teacher's EventLogger carries a run/worker id on every line.
type EventLogger struct {
	logger     *slog.Logger
	instanceID string
}

// NewEventLogger creates a new EventLogger with JSON output to stdout.
func NewEventLogger(instanceID string) *EventLogger {
	return newEventLogger(instanceID, os.Stdout)
}

// NewEventLoggerWithWriter creates a new EventLogger with JSON output to a
// custom writer. Useful for testing or redirecting output.
func NewEventLoggerWithWriter(instanceID string, w io.Writer) *EventLogger {
	return newEventLogger(instanceID, w)
}

func newEventLogger(instanceID string, w io.Writer) *EventLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler).With("instance_id", instanceID)
	return &EventLogger{logger: logger, instanceID: instanceID}
}

// LogSlotCreated logs when a pairing slot is opened by its first half.
// event: "slot_created"
func (el *EventLogger) LogSlotCreated(id wire.ConnectionID, role string) {
	el.logger.Info("slot_created",
		"connection_id", id.String(),
		"role", role,
	)
}

// LogSlotPaired logs when a pairing slot completes and its session starts.
// event: "slot_paired"
func (el *EventLogger) LogSlotPaired(id wire.ConnectionID) {
	el.logger.Info("slot_paired",
		"connection_id", id.String(),
	)
}

// LogSessionClosed logs when a session ends normally (EOF, transport, or
// protocol error propagated out of Run).
// event: "session_closed"
func (el *EventLogger) LogSessionClosed(id wire.ConnectionID, reason string) {
	el.logger.Info("session_closed",
		"connection_id", id.String(),
		"reason", reason,
	)
}

// LogWatchdogReaped logs when the watchdog tears down a slot: either an
// incomplete pairing that never finished, or a session that went idle.
// event: "watchdog_reaped"
func (el *EventLogger) LogWatchdogReaped(id wire.ConnectionID, reason string, ageSeconds float64) {
	el.logger.Warn("watchdog_reaped",
		"connection_id", id.String(),
		"reason", reason,
		"age_seconds", ageSeconds,
	)
}

// LogUnknownMethod logs a dispatch miss: a host called a method the agent
// doesn't implement. The session stays open.
// event: "unknown_method"
func (el *EventLogger) LogUnknownMethod(id wire.ConnectionID, method string) {
	el.logger.Warn("unknown_method",
		"connection_id", id.String(),
		"method", method,
	)
}

var (
	globalLogger *EventLogger
	globalMu     sync.RWMutex
)

// SetGlobalEventLogger sets the global event logger instance.
func SetGlobalEventLogger(l *EventLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalEventLogger returns the global event logger instance. If no
// logger is set, returns a no-op logger.
func GetGlobalEventLogger() *EventLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return NoopEventLogger()
}

// NoopEventLogger returns an event logger that discards all events.
func NoopEventLogger() *EventLogger {
	handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &EventLogger{logger: slog.New(handler)}
}
