package datasource

import "github.com/apollo3zehn/nexus-remote-agent/internal/wire"

// NexusDataType names the element type of a representation's samples. It is
// encoded on the wire as its string name (§4.1, "Enum: encoded as its
// string name").
type NexusDataType string

const (
	DataTypeInt8    NexusDataType = "INT8"
	DataTypeUInt8   NexusDataType = "UINT8"
	DataTypeInt16   NexusDataType = "INT16"
	DataTypeUInt16  NexusDataType = "UINT16"
	DataTypeInt32   NexusDataType = "INT32"
	DataTypeUInt32  NexusDataType = "UINT32"
	DataTypeInt64   NexusDataType = "INT64"
	DataTypeUInt64  NexusDataType = "UINT64"
	DataTypeFloat32 NexusDataType = "FLOAT32"
	DataTypeFloat64 NexusDataType = "FLOAT64"
)

// ElementSize returns the per-sample byte width for the data type, the way
// §3 of the data model defines it.
func (t NexusDataType) ElementSize() int {
	switch t {
	case DataTypeInt8, DataTypeUInt8:
		return 1
	case DataTypeInt16, DataTypeUInt16:
		return 2
	case DataTypeInt32, DataTypeUInt32, DataTypeFloat32:
		return 4
	case DataTypeInt64, DataTypeUInt64, DataTypeFloat64:
		return 8
	default:
		return 0
	}
}

// Representation describes the sampling of one resource's values: how
// often a sample is taken and what size/type each sample is.
type Representation struct {
	DataType     NexusDataType  `json:"data_type"`
	SamplePeriod wire.Duration  `json:"sample_period"`
}

// ElementSize is a convenience forwarding to the representation's data
// type, used when sizing read buffers.
func (r Representation) ElementSize() int {
	return r.DataType.ElementSize()
}

// Resource is a named, unit-tagged signal within a catalog, offered at one
// or more representations (sample rates).
type Resource struct {
	Name            string            `json:"name"`
	Unit            string            `json:"unit,omitempty"`
	Groups          []string          `json:"groups,omitempty"`
	Properties      map[string]string `json:"properties,omitempty"`
	Representations []Representation  `json:"representations,omitempty"`
}

// Catalog groups resources under a hierarchical path id (e.g. "/A/B/C").
type Catalog struct {
	ID         string                 `json:"id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Resources  []Resource             `json:"resources,omitempty"`
}

// CatalogRegistration is one entry returned by GetCatalogRegistrations:
// a catalog path below the queried path, plus a human-readable description.
type CatalogRegistration struct {
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// CatalogItem names the (catalog, resource, representation) triple a read
// or availability query is scoped to. The communicator treats it as opaque
// except for reading its representation to size read buffers.
type CatalogItem struct {
	CatalogID      string          `json:"catalog_id"`
	ResourceName   string          `json:"resource_name"`
	Representation Representation  `json:"representation"`
}
