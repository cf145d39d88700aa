package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

func TestGetGlobalEventLoggerReturnsNoopWhenUnset(t *testing.T) {
	SetGlobalEventLogger(nil)

	l := GetGlobalEventLogger()
	if l == nil {
		t.Fatal("expected a non-nil noop logger")
	}
}

func TestLogSlotPairedWritesInstanceAndConnectionID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewEventLoggerWithWriter("agent-1", &buf)
	id := wire.NewConnectionID()

	logger.LogSlotPaired(id)

	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected valid JSON log line, got error: %v (line: %s)", err, buf.String())
	}
	if line["msg"] != "slot_paired" {
		t.Errorf("got msg %v, want slot_paired", line["msg"])
	}
	if line["instance_id"] != "agent-1" {
		t.Errorf("got instance_id %v, want agent-1", line["instance_id"])
	}
	if line["connection_id"] != id.String() {
		t.Errorf("got connection_id %v, want %s", line["connection_id"], id.String())
	}
}

func TestLogWatchdogReapedIncludesReasonAndAge(t *testing.T) {
	var buf bytes.Buffer
	logger := NewEventLoggerWithWriter("agent-1", &buf)

	logger.LogWatchdogReaped(wire.NewConnectionID(), "session idle timeout exceeded", 61.5)

	output := buf.String()
	if !strings.Contains(output, "watchdog_reaped") || !strings.Contains(output, "session idle timeout exceeded") {
		t.Errorf("expected log line to mention watchdog_reaped and the reason, got: %s", output)
	}
}

func TestNoopEventLoggerDiscardsOutput(t *testing.T) {
	logger := NoopEventLogger()
	logger.LogSlotCreated(wire.NewConnectionID(), "comm")
	logger.LogUnknownMethod(wire.NewConnectionID(), "unknownMethod")
}
