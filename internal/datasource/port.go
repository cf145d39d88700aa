// Package datasource defines the capability interface a hosted extension
// implements (§4.3): catalog enumeration, catalog description, time range,
// availability, and windowed read. The communicator in internal/session is
// the only caller; this package has no knowledge of JSON-RPC or framing.
package datasource

import (
	"context"

	"github.com/apollo3zehn/nexus-remote-agent/internal/wire"
)

// Timestamp re-exports the wire package's instant type so implementers of
// DataSource don't need to import internal/wire directly.
type Timestamp = wire.Timestamp

// DataSource is the fixed capability every hosted extension implements.
type DataSource interface {
	// SetContext configures the instance with its resource locator and
	// configuration overlays, and gives it a logger for notification-style
	// diagnostics. Called once per session before any other method.
	SetContext(ctx context.Context, dsContext Context, logger ILogger) error

	// GetCatalogRegistrations lists the catalogs immediately below path.
	GetCatalogRegistrations(ctx context.Context, path string) ([]CatalogRegistration, error)

	// GetCatalog describes one catalog's resources and representations.
	GetCatalog(ctx context.Context, catalogID string) (Catalog, error)

	// GetTimeRange reports the earliest and latest timestamp a catalog has
	// data for.
	GetTimeRange(ctx context.Context, catalogID string) (begin, end Timestamp, err error)

	// GetAvailability reports the fraction (0-1) of the [begin, end)
	// window for which the catalog actually has data.
	GetAvailability(ctx context.Context, catalogID string, begin, end Timestamp) (float64, error)

	// Read fills each request's Data/Status buffers for the [begin, end)
	// window. readData lets the extension pull in samples from an
	// unrelated resource path; reportProgress may be called zero or more
	// times with a fraction in [0, 1].
	Read(ctx context.Context, begin, end Timestamp, requests []ReadRequest, readData ReadHandler, reportProgress ProgressHandler) error
}
