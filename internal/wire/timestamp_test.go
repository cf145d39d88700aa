package wire

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampMarshalRoundTrip(t *testing.T) {
	ts := NewTimestamp(time.Date(2024, 3, 15, 9, 30, 1, 123456000, time.UTC))

	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `"2024-03-15T09:30:01.123456Z"`
	if string(data) != want {
		t.Fatalf("Marshal = %s, want %s", data, want)
	}

	var decoded Timestamp
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Time.Equal(ts.Time) {
		t.Fatalf("decoded = %v, want %v", decoded.Time, ts.Time)
	}
}

func TestTimestampAcceptsSecondPrecision(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"2024-03-15T09:30:01Z"`), &ts); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ts.Time.Nanosecond() != 0 {
		t.Fatalf("expected zero sub-second component, got %v", ts.Time)
	}
}

func TestTimestampRejectsMalformed(t *testing.T) {
	var ts Timestamp
	err := json.Unmarshal([]byte(`"not-a-date"`), &ts)
	if err == nil {
		t.Fatal("expected an error")
	}
	decErr, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if decErr.Kind != DecodeErrorMalformed {
		t.Fatalf("kind = %s, want %s", decErr.Kind, DecodeErrorMalformed)
	}
}
