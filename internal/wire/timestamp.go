package wire

import (
	"fmt"
	"time"
)

// timestampMicros is the layout used when serializing: microsecond
// precision, always UTC, trailing "Z" rather than a numeric offset.
const timestampMicros = "2006-01-02T15:04:05.000000Z"

// timestampSeconds is accepted on decode for hosts/extensions that emit
// second-precision timestamps (no fractional part).
const timestampSeconds = "2006-01-02T15:04:05Z"

// Timestamp is a wire-format instant: UTC, rendered with microsecond
// precision and a literal "Z" suffix. It marshals/unmarshals as a JSON
// string rather than the Go default (RFC 3339 with nanoseconds and a
// numeric zone).
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, normalizing it to UTC and truncating below
// microsecond precision (the wire format cannot represent nanoseconds).
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Microsecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(timestampMicros) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return &DecodeError{Kind: DecodeErrorMalformed, Path: "timestamp", Err: err}
	}

	if parsed, err := time.Parse(timestampMicros, s); err == nil {
		t.Time = parsed
		return nil
	}
	if parsed, err := time.Parse(timestampSeconds, s); err == nil {
		t.Time = parsed
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}

	return &DecodeError{
		Kind: DecodeErrorMalformed,
		Path: "timestamp",
		Err:  fmt.Errorf("value %q is not a recognized timestamp", s),
	}
}

func unquote(data []byte) (string, error) {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return "", fmt.Errorf("expected a JSON string, got %q", data)
	}
	return string(data[1 : len(data)-1]), nil
}
