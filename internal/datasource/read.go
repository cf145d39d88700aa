package datasource

import "context"

// ReadRequest bundles a catalog item descriptor with the two mutable byte
// buffers the communicator allocated for it. The extension fills Data and
// Status in place; it does not resize or replace either slice.
type ReadRequest struct {
	CatalogItem CatalogItem
	Data        []byte
	Status      []byte
}

// ReadHandler lets an extension request a secondary read of an unrelated
// resource path — used by derived data sources that transform another
// source's samples. The agent's default implementation (when the host has
// not wired a real one) returns ErrReadHandlerUnavailable.
type ReadHandler func(ctx context.Context, resourcePath string, begin, end Timestamp) ([]byte, error)

// ProgressHandler reports fractional completion of a read in [0, 1].
type ProgressHandler func(progress float64)

// NoopReadHandler is the default secondary-read handler: it always fails,
// since the agent has no independent notion of "unrelated resource path"
// without a host-side wiring.
func NoopReadHandler(ctx context.Context, resourcePath string, begin, end Timestamp) ([]byte, error) {
	return nil, ErrReadHandlerUnavailable
}

// NoopProgressHandler discards progress reports.
func NoopProgressHandler(float64) {}
