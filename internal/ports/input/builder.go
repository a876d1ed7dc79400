// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/s2tile/internal/domain"
)

// TileBuilder defines the primary port for building plans from tile metadata.
type TileBuilder interface {
	// Assemble builds the plan for one tile and resolution profile.
	Assemble(ctx context.Context, tilePath, profile string) (*domain.BuildPlan, error)

	// CanOpen reports whether path is an L2A tile metadata document.
	CanOpen(ctx context.Context, path string) bool
}

// TileRegistry defines the primary port for tile management.
type TileRegistry interface {
	// ListTiles returns all registered tiles.
	ListTiles(ctx context.Context) ([]domain.Tile, error)

	// GetTile returns a specific tile by ID.
	GetTile(ctx context.Context, id string) (*domain.Tile, error)

	// Plans returns the plans built for a tile, ordered by profile tag.
	Plans(ctx context.Context, id string) ([]*domain.BuildPlan, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails

	// GetTileHealth returns the status of every registered tile.
	GetTileHealth(ctx context.Context) []TileHealth
}

// TileHealth is the status of a single tile.
type TileHealth struct {
	ID     string            `json:"id"`
	Status domain.TileStatus `json:"status"`
	Ready  bool              `json:"ready"`
	Error  string            `json:"error,omitempty"`
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy     bool              // Overall health status
	Ready       bool              // Ready to accept requests
	TilesLoaded int               // Number of registered tiles
	TilesReady  int               // Number of tiles with all plans built
	CacheSize   int               // Parsed documents held in the cache
	Components  map[string]string // Component statuses
}
