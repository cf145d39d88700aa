package session

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/datasource"
	"github.com/apollo3zehn/nexus-remote-agent/internal/transport"
	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

// stubSource is a minimal datasource.DataSource used to exercise the
// communicator without a real extension.
type stubSource struct {
	gotContext datasource.Context
	readData   []byte
}

func (s *stubSource) SetContext(ctx context.Context, dsContext datasource.Context, logger datasource.ILogger) error {
	s.gotContext = dsContext
	logger.Log(datasource.LogLevelInformation, "context set")
	return nil
}

func (s *stubSource) GetCatalogRegistrations(ctx context.Context, path string) ([]datasource.CatalogRegistration, error) {
	return []datasource.CatalogRegistration{{Path: path + "/A", Description: "catalog A"}}, nil
}

func (s *stubSource) GetCatalog(ctx context.Context, catalogID string) (datasource.Catalog, error) {
	return datasource.Catalog{
		ID: catalogID,
		Resources: []datasource.Resource{
			{
				Name: "resource1",
				Representations: []datasource.Representation{
					{DataType: datasource.DataTypeInt64, SamplePeriod: wire.NewDuration(time.Second)},
				},
			},
		},
	}, nil
}

func (s *stubSource) GetTimeRange(ctx context.Context, catalogID string) (datasource.Timestamp, datasource.Timestamp, error) {
	begin := wire.NewTimestamp(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	end := wire.NewTimestamp(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))
	return begin, end, nil
}

func (s *stubSource) GetAvailability(ctx context.Context, catalogID string, begin, end datasource.Timestamp) (float64, error) {
	return 1.0, nil
}

func (s *stubSource) Read(ctx context.Context, begin, end datasource.Timestamp, requests []datasource.ReadRequest, readData datasource.ReadHandler, reportProgress datasource.ProgressHandler) error {
	for i := range requests {
		for j := range requests[i].Data {
			requests[i].Data[j] = byte(j % 251)
		}
		for j := range requests[i].Status {
			requests[i].Status[j] = 1
		}
	}
	return nil
}

// newTestSession wires a Session to two net.Pipe connections standing in for the
// comm and data stream halves, with the test driving the "host" side.
func newTestSession(source datasource.DataSource) (*Session, net.Conn, net.Conn) {
	commHost, commAgent := net.Pipe()
	dataHost, dataAgent := net.Pipe()
	sess := NewSession(wire.NewConnectionID(), commAgent, commAgent, dataAgent, dataAgent, source)
	return sess, commHost, dataHost
}

func sendRequest(t *testing.T, conn net.Conn, id int, method string, params interface{}) {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	req := transport.NewRequest(float64(id), method, raw)
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if err := transport.WriteFrame(conn, body); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func readResponse(t *testing.T, conn net.Conn) transport.Response {
	t.Helper()
	body, err := transport.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp transport.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestGetApiVersion(t *testing.T) {
	sess, commHost, _ := newTestSession(&stubSource{})
	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background(), nil) }()

	sendRequest(t, commHost, 1, "getApiVersionAsync", []interface{}{})
	resp := readResponse(t, commHost)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var result struct {
		APIVersion int `json:"apiVersion"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.APIVersion != 1 {
		t.Fatalf("got apiVersion %d, want 1", result.APIVersion)
	}

	commHost.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestGetCatalogAsyncEmitsCamelCaseKeys(t *testing.T) {
	sess, commHost, _ := newTestSession(&stubSource{})
	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background(), nil) }()

	sendRequest(t, commHost, 1, "getCatalogAsync", []interface{}{"/A/B/C"})
	resp := readResponse(t, commHost)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	raw := string(resp.Result)
	for _, want := range []string{`"dataType"`, `"samplePeriod"`} {
		if !strings.Contains(raw, want) {
			t.Errorf("response %s does not contain %s", raw, want)
		}
	}
	for _, unwanted := range []string{`"data_type"`, `"sample_period"`} {
		if strings.Contains(raw, unwanted) {
			t.Errorf("response %s still contains snake_case key %s", raw, unwanted)
		}
	}

	commHost.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestUnknownMethodReturnsErrorWithoutClosingSession(t *testing.T) {
	sess, commHost, _ := newTestSession(&stubSource{})
	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background(), nil) }()

	sendRequest(t, commHost, 1, "notARealMethod", []interface{}{})
	resp := readResponse(t, commHost)
	if resp.Error == nil || resp.Error.Code != -1 {
		t.Fatalf("expected error code -1, got %+v", resp.Error)
	}

	sendRequest(t, commHost, 2, "getApiVersionAsync", []interface{}{})
	resp2 := readResponse(t, commHost)
	if resp2.Error != nil {
		t.Fatalf("session should still be alive after an unknown method: %+v", resp2.Error)
	}

	commHost.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestSetContextAsyncEmitsLogNotification(t *testing.T) {
	sess, commHost, _ := newTestSession(&stubSource{})
	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background(), nil) }()

	sendRequest(t, commHost, 1, "setContextAsync", []interface{}{
		map[string]interface{}{"resourceLocator": "file:///data"},
	})

	// The stub logs from inside SetContext on Run's goroutine, so the log
	// notification is written before the call's own response; the check
	// accepts either order, but both must show up as two distinct frames.
	first := readResponse(t, commHost)
	second := readResponse(t, commHost)

	var sawResponse, sawLog bool
	for _, r := range []transport.Response{first, second} {
		if r.ID == nil {
			sawLog = true
		} else {
			sawResponse = true
			if r.Error != nil {
				t.Fatalf("setContextAsync failed: %v", r.Error)
			}
		}
	}
	if !sawResponse || !sawLog {
		t.Fatalf("expected both a response and a log notification, got %+v / %+v", first, second)
	}

	commHost.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestReadSingleAsyncWritesDataThenStatusOnDataStream(t *testing.T) {
	source := &stubSource{}
	sess, commHost, dataHost := newTestSession(source)
	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background(), nil) }()

	begin := wire.NewTimestamp(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	end := wire.NewTimestamp(time.Date(2020, 1, 1, 0, 10, 0, 0, time.UTC))
	catalogItem := map[string]interface{}{
		"catalogId":    "/A/B/C",
		"resourceName": "signal",
		"representation": map[string]interface{}{
			"dataType":     "INT64",
			"samplePeriod": "0.00:00:01.000000",
		},
	}

	sendRequest(t, commHost, 1, "readSingleAsync", []interface{}{begin, end, nil, catalogItem})

	// The JSON response arrives first: the agent writes the data/status
	// payload only after the comm response has gone out (§4.4, §6).
	resp := readResponse(t, commHost)
	if resp.Error != nil {
		t.Fatalf("readSingleAsync failed: %v", resp.Error)
	}

	const sampleCount = 600
	const elementSize = 8
	wantData := make([]byte, sampleCount*elementSize)
	for j := range wantData {
		wantData[j] = byte(j % 251)
	}
	wantStatus := make([]byte, sampleCount)
	for j := range wantStatus {
		wantStatus[j] = 1
	}

	gotData := make([]byte, len(wantData))
	if _, err := io.ReadFull(dataHost, gotData); err != nil {
		t.Fatalf("read data payload: %v", err)
	}
	gotStatus := make([]byte, len(wantStatus))
	if _, err := io.ReadFull(dataHost, gotStatus); err != nil {
		t.Fatalf("read status payload: %v", err)
	}

	for i := range gotData {
		if gotData[i] != wantData[i] {
			t.Fatalf("data byte %d: got %d, want %d", i, gotData[i], wantData[i])
		}
	}
	for i := range gotStatus {
		if gotStatus[i] != wantStatus[i] {
			t.Fatalf("status byte %d: got %d, want %d", i, gotStatus[i], wantStatus[i])
		}
	}

	commHost.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
