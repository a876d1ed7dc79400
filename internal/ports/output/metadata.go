package output

import (
	"context"
	"time"

	"github.com/jobrunner/s2tile/internal/domain"
)

// NamespaceResolver detects the schema dialect of a metadata document.
type NamespaceResolver interface {
	// Resolve inspects the document header and returns its dialect.
	Resolve(ctx context.Context, path string) (domain.Dialect, error)
}

// DocumentSource provides parsed metadata documents.
type DocumentSource interface {
	// Get returns the parsed document for path.
	Get(ctx context.Context, path string) (*domain.MetadataDocument, error)
}

// SidecarReader loads the JSON tile descriptor.
type SidecarReader interface {
	// Read loads tileInfo.json from the tile root.
	Read(ctx context.Context, tileRoot string) (*domain.SidecarInfo, error)
}

// GeoreferenceWriter emits world files for band images.
type GeoreferenceWriter interface {
	// Write writes one world file per band image, in order.
	Write(ctx context.Context, bandPaths []string, params domain.GeoreferenceParameters) ([]string, error)
}

// PlanStore defines the secondary port for the build plan index.
type PlanStore interface {
	// Save inserts or replaces a plan.
	Save(ctx context.Context, plan *domain.BuildPlan, tilePath string) error

	// Get returns a stored plan by ID.
	Get(ctx context.Context, id string) (*PlanRecord, error)

	// List returns stored plans matching filter.
	List(ctx context.Context, filter PlanFilter) ([]PlanRecord, error)

	// DeleteTile removes all plans of a tile.
	DeleteTile(ctx context.Context, tilePath string) (int, error)

	// Close releases the store.
	Close() error
}

// PlanFilter selects stored plans. Zero values match everything.
type PlanFilter struct {
	GroupName        string
	Profile          string
	MaxCloudCoverage *float64
	Point            *[2]float64 // x, y in the footprint's coordinate system
	Limit            int
}

// PlanRecord is a stored plan summary.
type PlanRecord struct {
	ID                   string                   `json:"id"`
	TilePath             string                   `json:"tilePath"`
	Profile              string                   `json:"profile"`
	GroupName            string                   `json:"groupName,omitempty"`
	DisplayName          string                   `json:"displayName,omitempty"`
	ProductName          string                   `json:"productName,omitempty"`
	SRID                 int                      `json:"srid"`
	Footprint            domain.FootprintGeometry `json:"footprint"`
	AcquisitionDate      *time.Time               `json:"acquisitionDate,omitempty"`
	CloudCoverage        *float64                 `json:"cloudCoverage,omitempty"`
	VegetationPercentage *float64                 `json:"vegetationPercentage,omitempty"`
	FunctionTemplate     string                   `json:"functionTemplate"`
	Arguments            []domain.RasterArgument  `json:"arguments"`
	BuiltAt              time.Time                `json:"builtAt"`
}
