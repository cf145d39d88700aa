// Package session implements the remote communicator (§4.4): the
// strictly-serial request/response loop that runs once per paired
// connection, plus the dispatch table of methods a Nexus host may call.
package session

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/datasource"
	"github.com/apollo3zehn/nexus-remote-agent/internal/transport"
	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

// Session owns the four stream halves of one paired connection and the
// single data-source instance serving it. It is created once per pairing
// slot, by the dispatcher, when all four halves have arrived.
type Session struct {
	ID wire.ConnectionID

	commReader io.Reader
	commWriter io.Writer
	dataReader io.Reader
	dataWriter io.Writer

	source datasource.DataSource

	// commMu serializes all writes to commWriter: request responses and
	// "log" notifications both go through it, and must never interleave.
	commMu sync.Mutex

	lastMu            sync.Mutex
	lastCommunication time.Time

	// pendingRead holds a readSingleAsync call's data/status payload between
	// dispatch and the Responding->EmittingData transition in Run, which
	// writes it to the data stream only after the JSON response has gone out
	// on the comm stream (§4.4, §6). Requests are processed strictly
	// serially, so this needs no locking.
	pendingRead *pendingDataPayload
}

// pendingDataPayload is a readSingleAsync result awaiting its data-stream
// write.
type pendingDataPayload struct {
	data   []byte
	status []byte
}

// NewSession wires up a session from its four accepted stream halves and
// the data-source instance the extension registry produced for it.
func NewSession(id wire.ConnectionID, commReader io.Reader, commWriter io.Writer, dataReader io.Reader, dataWriter io.Writer, source datasource.DataSource) *Session {
	return &Session{
		ID:                id,
		commReader:        commReader,
		commWriter:        commWriter,
		dataReader:        dataReader,
		dataWriter:        dataWriter,
		source:            source,
		lastCommunication: timeNow(),
	}
}

// touch records that a communication happened just now. The dispatcher's
// watchdog reads LastCommunication to decide whether a session has gone
// quiet.
func (s *Session) touch() {
	s.lastMu.Lock()
	s.lastCommunication = timeNow()
	s.lastMu.Unlock()
}

// LastCommunication reports the timestamp of the most recent request
// processed (or response/notification sent) on this session.
func (s *Session) LastCommunication() time.Time {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastCommunication
}

// timeNow is a var so tests can stub it without touching the wall clock.
var timeNow = time.Now

// writeComm frames and writes one JSON-RPC envelope on the comm stream,
// holding commMu for the duration so responses and log notifications never
// interleave on the wire.
func (s *Session) writeComm(v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.commMu.Lock()
	defer s.commMu.Unlock()
	return transport.WriteFrame(s.commWriter, body)
}

// Log implements datasource.ILogger: it serializes a "log" JSON-RPC
// notification onto the comm stream under the write mutex, sharing it with
// request responses so the two never interleave.
func (s *Session) Log(level datasource.LogLevel, message string) {
	params, _ := json.Marshal([]interface{}{string(level), message})
	notification := transport.NewRequest(nil, "log", params)
	_ = s.writeComm(notification)
}
