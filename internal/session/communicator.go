package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/events"
	"github.com/apollo3zehn/nexus-remote-agent/internal/otel"
	"github.com/apollo3zehn/nexus-remote-agent/internal/transport"
)

// State names one phase of the communicator's run loop (§4.4).
type State int

const (
	StateIdle State = iota
	StateReading
	StateDispatching
	StateResponding
	StateEmittingData
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateDispatching:
		return "dispatching"
	case StateResponding:
		return "responding"
	case StateEmittingData:
		return "emitting_data"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateObserver is notified of every state transition the run loop makes.
// Callers may pass one to follow the machine through the states the spec
// names; nil disables notification.
type StateObserver func(State)

// Run drives the communicator's request/response loop until the comm
// stream closes or a session-terminating error occurs (TransportError,
// FramingError, ProtocolError). Requests are processed strictly serially:
// Run never begins reading the next frame until the current request's
// response (and any data-stream payload) has been fully written.
func (s *Session) Run(ctx context.Context, observe StateObserver) error {
	notify := func(st State) {
		if observe != nil {
			observe(st)
		}
	}

	notify(StateIdle)
	for {
		notify(StateReading)
		frame, err := transport.ReadFrame(s.commReader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				notify(StateClosed)
				return nil
			}
			notify(StateClosed)
			return &transport.TransportError{Op: "read request frame", Err: err}
		}
		s.touch()

		var req transport.Request
		if err := json.Unmarshal(frame, &req); err != nil {
			notify(StateClosed)
			return &ProtocolError{Reason: "malformed JSON-RPC envelope", Cause: err}
		}
		if req.JSONRPC != transport.JSONRPCVersion {
			notify(StateClosed)
			return &ProtocolError{Reason: "unsupported jsonrpc version: " + req.JSONRPC}
		}
		if req.IsNotification() {
			notify(StateClosed)
			return &ProtocolError{Reason: "notification received where a request was expected"}
		}

		notify(StateDispatching)
		start := time.Now()
		spanCtx, span := otel.GetGlobalTracer().StartRPCSpan(ctx, otel.RPCSpanOptions{
			ConnectionID: s.ID.String(),
			Method:       req.Method,
		})
		result, dispatchErr := s.dispatch(spanCtx, req.Method, req.Params)
		latencyMs := float64(time.Since(start).Microseconds()) / 1000.0
		if dispatchErr != nil {
			otel.RecordError(span, dispatchErr, "dispatch", false)
		}
		span.End()
		otel.GetGlobalMetrics().RecordRPCLatency(ctx, req.Method, latencyMs, dispatchErr == nil)
		if _, ok := dispatchErr.(*UnknownMethodError); ok {
			otel.GetGlobalMetrics().RecordUnknownMethod(ctx)
			events.GetGlobalEventLogger().LogUnknownMethod(s.ID, req.Method)
		}
		s.touch()

		notify(StateResponding)
		var resp *transport.Response
		if dispatchErr != nil {
			resp = transport.NewErrorResponse(req.ID, toWireError(dispatchErr))
		} else {
			raw, merr := encodeWireValue(result)
			if merr != nil {
				resp = transport.NewErrorResponse(req.ID, &transport.Error{Code: transport.CodeInternalError, Message: merr.Error()})
			} else {
				resp = transport.NewResultResponse(req.ID, raw)
			}
		}
		if err := s.writeComm(resp); err != nil {
			notify(StateClosed)
			return err
		}

		if req.Method == "readSingleAsync" && dispatchErr == nil && s.pendingRead != nil {
			notify(StateEmittingData)
			payload := s.pendingRead
			s.pendingRead = nil
			if _, werr := s.dataWriter.Write(payload.data); werr != nil {
				notify(StateClosed)
				return &transport.TransportError{Op: "write data payload", Err: werr}
			}
			if _, werr := s.dataWriter.Write(payload.status); werr != nil {
				notify(StateClosed)
				return &transport.TransportError{Op: "write status payload", Err: werr}
			}
		}
	}
}

// toWireError turns a per-call dispatch error (DecodeError, UnknownMethodError,
// or CapabilityError) into a JSON-RPC error object. All three share the same
// wire code (§4.4 specifies -1 for "Unknown method" and gives no other
// reserved code for application-level failures), carrying the error's own
// message as the distinguishing detail.
func toWireError(err error) *transport.Error {
	return &transport.Error{Code: -1, Message: err.Error()}
}
