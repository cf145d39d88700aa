package datasource

import (
	"encoding/json"
	"net/url"

	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

// Context is the value passed to SetContext: where the extension's backing
// data lives, plus three optional configuration overlays supplied by the
// host, the package reference, and the individual request respectively.
type Context struct {
	ResourceLocator      *url.URL
	SystemConfiguration  map[string]string
	SourceConfiguration  map[string]string
	RequestConfiguration map[string]string
}

// rawContext mirrors the wire shape of setContextAsync's single parameter:
// {resourceLocator, systemConfiguration?, sourceConfiguration?, requestConfiguration?}.
// Field names here are already snake_case; the dispatch layer applies
// wire.ConvertKeysToSnake before unmarshalling into this struct.
type rawContext struct {
	ResourceLocator       string            `json:"resource_locator"`
	SystemConfiguration   map[string]string `json:"system_configuration"`
	SourceConfiguration   map[string]string `json:"source_configuration"`
	RequestConfiguration  map[string]string `json:"request_configuration"`
}

// DecodeContext parses the single raw parameter of setContextAsync. Keys
// arrive lowerCamelCase on the wire (resourceLocator, requestConfiguration,
// ...) and are converted to snake_case before unmarshalling.
//
// The original source's equivalent destructuring spelled the request
// overlay field "requestonfiguration" (missing the C); that is treated as a
// bug and not reproduced here — the correct spelling is accepted.
func DecodeContext(raw json.RawMessage) (Context, error) {
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return Context{}, &wire.DecodeError{Kind: wire.DecodeErrorTypeMismatch, Path: "context", Err: err}
	}

	snake, err := json.Marshal(wire.ConvertKeysToSnake(tree))
	if err != nil {
		return Context{}, &wire.DecodeError{Kind: wire.DecodeErrorTypeMismatch, Path: "context", Err: err}
	}

	var rc rawContext
	if err := json.Unmarshal(snake, &rc); err != nil {
		return Context{}, &wire.DecodeError{Kind: wire.DecodeErrorTypeMismatch, Path: "context", Err: err}
	}

	if rc.ResourceLocator == "" {
		return Context{}, &wire.DecodeError{Kind: wire.DecodeErrorMalformed, Path: "context.resource_locator", Err: errMissingResourceLocator}
	}

	u, err := url.Parse(rc.ResourceLocator)
	if err != nil {
		return Context{}, &wire.DecodeError{Kind: wire.DecodeErrorMalformed, Path: "context.resource_locator", Err: err}
	}

	return Context{
		ResourceLocator:      u,
		SystemConfiguration:  rc.SystemConfiguration,
		SourceConfiguration:  rc.SourceConfiguration,
		RequestConfiguration: rc.RequestConfiguration,
	}, nil
}
