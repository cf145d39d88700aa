package wire

import "github.com/google/uuid"

// ConnectionID identifies a paired comm/data stream pair for the lifetime of
// a single connection. It is carried on the wire as the canonical hyphenated
// 36-byte UUID string (google/uuid's default String()/MarshalText form), and
// during the handshake as 36 raw ASCII bytes ahead of the role tag.
type ConnectionID uuid.UUID

// NewConnectionID generates a new random (v4) connection id.
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New())
}

// ParseConnectionID parses a canonical hyphenated UUID string.
func ParseConnectionID(s string) (ConnectionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ConnectionID{}, &DecodeError{Kind: DecodeErrorMalformed, Path: "connection_id", Err: err}
	}
	return ConnectionID(id), nil
}

func (c ConnectionID) String() string {
	return uuid.UUID(c).String()
}

func (c ConnectionID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

func (c *ConnectionID) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return &DecodeError{Kind: DecodeErrorMalformed, Path: "connection_id", Err: err}
	}
	id, err := ParseConnectionID(s)
	if err != nil {
		return err
	}
	*c = id
	return nil
}
