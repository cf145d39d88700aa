package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds the length prefix accepted on the comm stream. A
// prefix above this is treated as a FramingError rather than an attempt to
// allocate an arbitrarily large buffer.
const MaxFrameSize = 64 * 1024 * 1024

// ReadFrame reads one length-prefixed JSON-RPC message off the comm
// stream: a 4-byte big-endian length followed by that many bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, err
		}
		return nil, &FramingError{Reason: "reading length prefix", Err: err}
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, &FramingError{Reason: fmt.Sprintf("frame size %d exceeds maximum %d", size, MaxFrameSize)}
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, &FramingError{Reason: "reading frame body", Err: err}
	}

	return body, nil
}

// WriteFrame writes one length-prefixed JSON-RPC message to the comm
// stream. Callers dispatching from the communicator must hold the session's
// comm-write mutex so this never interleaves with a concurrent log
// notification.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return &FramingError{Reason: fmt.Sprintf("frame size %d exceeds maximum %d", len(body), MaxFrameSize)}
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return &FramingError{Reason: "writing length prefix", Err: err}
	}
	if _, err := w.Write(body); err != nil {
		return &FramingError{Reason: "writing frame body", Err: err}
	}
	return nil
}
