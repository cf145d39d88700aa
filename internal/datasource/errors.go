package datasource

import "errors"

// errMissingResourceLocator is wrapped into a *wire.DecodeError when
// setContextAsync's context parameter omits resource_locator.
var errMissingResourceLocator = errors.New("context.resource_locator is required")

// ErrReadHandlerUnavailable is returned by NoopReadHandler: the agent has no
// host-side wiring for secondary reads of an unrelated resource path.
var ErrReadHandlerUnavailable = errors.New("read handler unavailable")

// CapabilityError wraps an error raised by the extension itself (as opposed
// to a decode or transport failure). Per the error taxonomy it becomes a
// per-call JSON-RPC error response carrying the extension's own message, and
// never terminates the session.
type CapabilityError struct {
	Method string
	Err    error
}

func (e *CapabilityError) Error() string {
	return e.Err.Error()
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}
