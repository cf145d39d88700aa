package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/datasource"
	"github.com/apollo3zehn/nexus-remote-agent/internal/transport"
	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

type stubSource struct{}

func (s *stubSource) SetContext(ctx context.Context, dsContext datasource.Context, logger datasource.ILogger) error {
	return nil
}

func (s *stubSource) GetCatalogRegistrations(ctx context.Context, path string) ([]datasource.CatalogRegistration, error) {
	return nil, nil
}

func (s *stubSource) GetCatalog(ctx context.Context, catalogID string) (datasource.Catalog, error) {
	return datasource.Catalog{ID: catalogID}, nil
}

func (s *stubSource) GetTimeRange(ctx context.Context, catalogID string) (datasource.Timestamp, datasource.Timestamp, error) {
	return wire.NewTimestamp(time.Now()), wire.NewTimestamp(time.Now()), nil
}

func (s *stubSource) GetAvailability(ctx context.Context, catalogID string, begin, end datasource.Timestamp) (float64, error) {
	return 1, nil
}

func (s *stubSource) Read(ctx context.Context, begin, end datasource.Timestamp, requests []datasource.ReadRequest, readData datasource.ReadHandler, reportProgress datasource.ProgressHandler) error {
	return nil
}

func startDispatcher(t *testing.T) (*Dispatcher, string, func()) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	d := New(listener, func() (datasource.DataSource, error) { return &stubSource{}, nil }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Serve(ctx)

	return d, listener.Addr().String(), func() {
		cancel()
		d.Wait()
	}
}

func dial(t *testing.T, addr, role string, id wire.ConnectionID) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte(id.String())); err != nil {
		t.Fatalf("write connection id: %v", err)
	}
	if _, err := conn.Write([]byte(role)); err != nil {
		t.Fatalf("write role: %v", err)
	}
	return conn
}

func TestPairingSpawnsSessionOnceBothHalvesArrive(t *testing.T) {
	d, addr, stop := startDispatcher(t)
	defer stop()

	id := wire.NewConnectionID()
	comm := dial(t, addr, "comm", id)
	defer comm.Close()
	data := dial(t, addr, "data", id)
	defer data.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.Slots().Count() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if d.Slots().Count() != 1 {
		t.Fatalf("expected 1 slot, got %d", d.Slots().Count())
	}

	body, _ := json.Marshal(transport.NewRequest(float64(1), "getApiVersionAsync", json.RawMessage("[]")))
	if err := transport.WriteFrame(comm, body); err != nil {
		t.Fatalf("write request: %v", err)
	}
	frame, err := transport.ReadFrame(comm)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp transport.Response
	if err := json.Unmarshal(frame, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
}

func TestUnrecognizedRoleClosesConnectionWithoutCreatingSlot(t *testing.T) {
	d, addr, stop := startDispatcher(t)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	id := wire.NewConnectionID()
	conn.Write([]byte(id.String()))
	conn.Write([]byte("xxxx"))

	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != io.EOF {
		t.Fatalf("expected connection to be closed, got err=%v", err)
	}

	if d.Slots().Count() != 0 {
		t.Fatalf("expected no slots, got %d", d.Slots().Count())
	}
}

func TestWatchdogReapsIncompleteSlotAfterDeadline(t *testing.T) {
	d, addr, stop := startDispatcher(t)
	defer stop()

	id := wire.NewConnectionID()
	comm := dial(t, addr, "comm", id)
	defer comm.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.Slots().Count() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if d.Slots().Count() != 1 {
		t.Fatalf("expected 1 incomplete slot, got %d", d.Slots().Count())
	}

	w := &Watchdog{dispatcher: d, deadAfter: 0, idleAfter: time.Hour, logger: slog.Default()}
	w.sweep(time.Now().Add(time.Minute))

	if d.Slots().Count() != 0 {
		t.Fatalf("expected watchdog to reap the incomplete slot, got %d remaining", d.Slots().Count())
	}
}

func TestWatchdogLeavesFreshIncompleteSlotAlone(t *testing.T) {
	d, addr, stop := startDispatcher(t)
	defer stop()

	id := wire.NewConnectionID()
	comm := dial(t, addr, "comm", id)
	defer comm.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.Slots().Count() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	w := &Watchdog{dispatcher: d, deadAfter: time.Hour, idleAfter: time.Hour, logger: slog.Default()}
	w.sweep(time.Now())

	if d.Slots().Count() != 1 {
		t.Fatalf("expected the fresh slot to survive, got %d", d.Slots().Count())
	}
}
