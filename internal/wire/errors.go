package wire

import "fmt"

// DecodeErrorKind classifies why a wire value failed to decode into a Go
// value, independent of where in the document it happened.
type DecodeErrorKind string

const (
	// DecodeErrorMalformed means the value's textual shape didn't match
	// what the type expects (bad timestamp, bad duration, bad UUID).
	DecodeErrorMalformed DecodeErrorKind = "malformed"
	// DecodeErrorTypeMismatch means the JSON value was of the wrong kind
	// (e.g. a number where a string enum was expected).
	DecodeErrorTypeMismatch DecodeErrorKind = "type_mismatch"
	// DecodeErrorUnknownEnumValue means a string enum value has no
	// corresponding member.
	DecodeErrorUnknownEnumValue DecodeErrorKind = "unknown_enum_value"
)

// DecodeError reports a failure decoding a single wire value, naming the
// dotted path within the document where it occurred.
type DecodeError struct {
	Kind DecodeErrorKind
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("decode error at %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
