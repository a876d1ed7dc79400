package application

import (
	"context"

	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/ports/input"
)

// CacheSizer reports the number of cached documents.
type CacheSizer interface {
	Len() int
}

var _ input.HealthChecker = (*HealthService)(nil)

// HealthService provides health check functionality.
type HealthService struct {
	registry *TileRegistry
	cache    CacheSizer
}

// NewHealthService creates a new health service. cache may be nil.
func NewHealthService(registry *TileRegistry, cache CacheSizer) *HealthService {
	return &HealthService{
		registry: registry,
		cache:    cache,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true once no tile is still loading.
func (s *HealthService) IsReady(ctx context.Context) bool {
	tiles, err := s.registry.ListTiles(ctx)
	if err != nil {
		return false
	}

	for _, t := range tiles {
		if t.Status == domain.TileStatusLoading {
			return false
		}
	}
	return true
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	tiles, _ := s.registry.ListTiles(ctx)

	ready, failed := 0, 0
	for _, t := range tiles {
		switch {
		case t.IsReady():
			ready++
		case t.Status == domain.TileStatusError:
			failed++
		}
	}

	components := map[string]string{
		"storage": "ok",
		"tiles":   "ok",
	}
	if failed > 0 {
		components["tiles"] = "degraded"
	}

	cacheSize := 0
	if s.cache != nil {
		cacheSize = s.cache.Len()
	}

	return input.HealthDetails{
		Healthy:     s.IsHealthy(ctx),
		Ready:       s.IsReady(ctx),
		TilesLoaded: len(tiles),
		TilesReady:  ready,
		CacheSize:   cacheSize,
		Components:  components,
	}
}

// GetTileHealth returns health info for all tiles.
func (s *HealthService) GetTileHealth(ctx context.Context) []input.TileHealth {
	tiles, _ := s.registry.ListTiles(ctx)

	health := make([]input.TileHealth, len(tiles))
	for i, t := range tiles {
		health[i] = input.TileHealth{
			ID:     t.ID,
			Status: t.Status,
			Ready:  t.IsReady(),
			Error:  t.Error,
		}
	}
	return health
}
