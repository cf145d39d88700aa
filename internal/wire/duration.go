package wire

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// durationPattern matches the "D.HH:MM:SS.ffffff" textual duration form:
// an optional leading day count, hours/minutes/seconds each two digits,
// and an optional fractional-second tail (any number of digits, scaled to
// microseconds).
var durationPattern = regexp.MustCompile(`^(?:(\d+)\.)?(\d{2}):(\d{2}):(\d{2})(?:\.(\d+))?$`)

// Duration is a wire-format time span, rendered in the "D.HH:MM:SS.micro"
// textual form rather than Go's integer-nanosecond default.
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration {
	return Duration{d}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	total := d.Duration
	negative := total < 0
	if negative {
		total = -total
	}

	days := total / (24 * time.Hour)
	total -= days * 24 * time.Hour
	hours := total / time.Hour
	total -= hours * time.Hour
	minutes := total / time.Minute
	total -= minutes * time.Minute
	seconds := total / time.Second
	total -= seconds * time.Second
	micros := total / time.Microsecond

	s := fmt.Sprintf("%d.%02d:%02d:%02d.%06d", days, hours, minutes, seconds, micros)
	if negative {
		s = "-" + s
	}

	return []byte(`"` + s + `"`), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return &DecodeError{Kind: DecodeErrorMalformed, Path: "duration", Err: err}
	}

	negative := false
	if len(s) > 0 && s[0] == '-' {
		negative = true
		s = s[1:]
	}

	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return &DecodeError{
			Kind: DecodeErrorMalformed,
			Path: "duration",
			Err:  fmt.Errorf("value %q does not match D.HH:MM:SS.ffffff", s),
		}
	}

	var days, hours, minutes, seconds int64
	if m[1] != "" {
		days, _ = strconv.ParseInt(m[1], 10, 64)
	}
	hours, _ = strconv.ParseInt(m[2], 10, 64)
	minutes, _ = strconv.ParseInt(m[3], 10, 64)
	seconds, _ = strconv.ParseInt(m[4], 10, 64)

	var micros int64
	if m[5] != "" {
		frac := m[5]
		if len(frac) > 6 {
			frac = frac[:6]
		}
		for len(frac) < 6 {
			frac += "0"
		}
		micros, _ = strconv.ParseInt(frac, 10, 64)
	}

	total := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(micros)*time.Microsecond

	if negative {
		total = -total
	}

	d.Duration = total
	return nil
}
