package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apollo3zehn/nexus-remote-agent/internal/datasource"
	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

// dispatch decodes params and calls the named method against the session's
// data source, returning the result as a Go value (or nil for methods with
// no result; Run encodes it with encodeWireValue) and an error classified
// per §7.
//
// $/cancelRequest and $/progress are accepted no-ops: the agent processes
// requests strictly serially, so there is nothing in flight to cancel or
// report progress against by the time another request can be read.
func (s *Session) dispatch(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case "getApiVersionAsync":
		return map[string]interface{}{"apiVersion": 1}, nil

	case "setContextAsync":
		var args [1]json.RawMessage
		if err := unmarshalPositional(params, args[:]); err != nil {
			return nil, err
		}
		dsContext, err := datasource.DecodeContext(args[0])
		if err != nil {
			return nil, err
		}
		if err := s.source.SetContext(ctx, dsContext, s); err != nil {
			return nil, &datasource.CapabilityError{Method: method, Err: err}
		}
		return nil, nil

	case "getCatalogRegistrationsAsync":
		var path string
		if err := unmarshalPositionalValues(params, &path); err != nil {
			return nil, err
		}
		regs, err := s.source.GetCatalogRegistrations(ctx, path)
		if err != nil {
			return nil, &datasource.CapabilityError{Method: method, Err: err}
		}
		return map[string]interface{}{"registrations": regs}, nil

	case "getCatalogAsync":
		var catalogID string
		if err := unmarshalPositionalValues(params, &catalogID); err != nil {
			return nil, err
		}
		catalog, err := s.source.GetCatalog(ctx, catalogID)
		if err != nil {
			return nil, &datasource.CapabilityError{Method: method, Err: err}
		}
		return map[string]interface{}{"catalog": catalog}, nil

	case "getTimeRangeAsync":
		var catalogID string
		if err := unmarshalPositionalValues(params, &catalogID); err != nil {
			return nil, err
		}
		begin, end, err := s.source.GetTimeRange(ctx, catalogID)
		if err != nil {
			return nil, &datasource.CapabilityError{Method: method, Err: err}
		}
		return map[string]interface{}{"begin": begin, "end": end}, nil

	case "getAvailabilityAsync":
		var catalogID string
		var begin, end wire.Timestamp
		if err := unmarshalPositionalValues(params, &catalogID, &begin, &end); err != nil {
			return nil, err
		}
		availability, err := s.source.GetAvailability(ctx, catalogID, begin, end)
		if err != nil {
			return nil, &datasource.CapabilityError{Method: method, Err: err}
		}
		return map[string]interface{}{"availability": availability}, nil

	case "readSingleAsync":
		return s.dispatchReadSingle(ctx, params)

	case "$/cancelRequest", "$/progress":
		return nil, nil

	default:
		return nil, &UnknownMethodError{Method: method}
	}
}

// dispatchReadSingle implements readSingleAsync's 4-positional-parameter
// shape: [begin, end, _reserved, catalogItem]. The third parameter has no
// defined meaning in this agent; it must be present but is never decoded.
// A params array with fewer than four elements is rejected as a DecodeError.
func (s *Session) dispatchReadSingle(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var begin, end wire.Timestamp
	var catalogItem datasource.CatalogItem

	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, &wire.DecodeError{Kind: wire.DecodeErrorMalformed, Path: "params", Err: err}
	}
	if len(raw) < 4 {
		return nil, &wire.DecodeError{Kind: wire.DecodeErrorMalformed, Path: "params", Err: fmt.Errorf("readSingleAsync expects 4 parameters, got %d", len(raw))}
	}

	if err := decodeWireValue(raw[0], &begin); err != nil {
		return nil, err
	}
	if err := decodeWireValue(raw[1], &end); err != nil {
		return nil, err
	}
	// raw[2] is the unused reserved slot; it is skipped without decoding.
	if err := decodeWireValue(raw[3], &catalogItem); err != nil {
		return nil, err
	}

	elementSize := catalogItem.Representation.ElementSize()
	samplePeriod := catalogItem.Representation.SamplePeriod.Duration
	if samplePeriod <= 0 {
		return nil, &wire.DecodeError{Kind: wire.DecodeErrorMalformed, Path: "params[3].representation.sample_period", Err: fmt.Errorf("sample period must be positive")}
	}

	sampleCount := int(end.Sub(begin.Time) / samplePeriod)
	if sampleCount < 0 {
		sampleCount = 0
	}

	data := make([]byte, sampleCount*elementSize)
	status := make([]byte, sampleCount)

	request := datasource.ReadRequest{CatalogItem: catalogItem, Data: data, Status: status}
	err := s.source.Read(ctx, begin, end, []datasource.ReadRequest{request}, datasource.NoopReadHandler, datasource.NoopProgressHandler)
	if err != nil {
		return nil, &datasource.CapabilityError{Method: "readSingleAsync", Err: err}
	}

	// The data/status payload is written to the data stream by Run, after
	// the JSON response has gone out on the comm stream (§4.4, §6).
	s.pendingRead = &pendingDataPayload{data: data, status: status}

	return nil, nil
}

// unmarshalPositional is a thin validation helper: it confirms params
// decodes as a JSON array with exactly len(into) elements, storing each raw
// element.
func unmarshalPositional(params json.RawMessage, into []json.RawMessage) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return &wire.DecodeError{Kind: wire.DecodeErrorMalformed, Path: "params", Err: err}
	}
	if len(raw) < len(into) {
		return &wire.DecodeError{Kind: wire.DecodeErrorMalformed, Path: "params", Err: fmt.Errorf("expected %d parameters, got %d", len(into), len(raw))}
	}
	copy(into, raw)
	return nil
}

// unmarshalPositionalValues decodes params as a positional JSON array,
// converting each element's keys to snake_case before unmarshalling into
// the corresponding destination pointer.
func unmarshalPositionalValues(params json.RawMessage, dests ...interface{}) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return &wire.DecodeError{Kind: wire.DecodeErrorMalformed, Path: "params", Err: err}
	}
	if len(raw) < len(dests) {
		return &wire.DecodeError{Kind: wire.DecodeErrorMalformed, Path: "params", Err: fmt.Errorf("expected %d parameters, got %d", len(dests), len(raw))}
	}
	for i, dest := range dests {
		if err := decodeWireValue(raw[i], dest); err != nil {
			return err
		}
	}
	return nil
}

// encodeWireValue marshals v using its Go struct tags (snake_case, the same
// shape decodeWireValue unmarshals into), then converts every map key to
// lowerCamelCase before returning the final wire bytes. This is the encode
// side symmetric to decodeWireValue, and is how every dispatch result
// reaches the wire in the casing §4.1 requires.
func encodeWireValue(v interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return json.Marshal(wire.ConvertKeysToCamel(tree))
}

// decodeWireValue converts a raw JSON element's map keys from lowerCamelCase
// to snake_case, then unmarshals it into dest. Scalars (strings, numbers)
// pass through ConvertKeysToSnake unchanged.
func decodeWireValue(raw json.RawMessage, dest interface{}) error {
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return &wire.DecodeError{Kind: wire.DecodeErrorTypeMismatch, Path: "params", Err: err}
	}
	snake, err := json.Marshal(wire.ConvertKeysToSnake(tree))
	if err != nil {
		return &wire.DecodeError{Kind: wire.DecodeErrorTypeMismatch, Path: "params", Err: err}
	}
	if err := json.Unmarshal(snake, dest); err != nil {
		return &wire.DecodeError{Kind: wire.DecodeErrorTypeMismatch, Path: "params", Err: err}
	}
	return nil
}
