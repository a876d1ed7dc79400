package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/s2tile/internal/domain"
)

func TestHealthServiceIsHealthy(t *testing.T) {
	f := newRegistryFixture(RegistryConfig{})
	service := NewHealthService(f.registry, nil)

	assert.True(t, service.IsHealthy(context.Background()))
}

func TestHealthServiceIsReady(t *testing.T) {
	tests := []struct {
		name  string
		tiles map[string]*domain.Tile
		want  bool
	}{
		{
			name:  "empty registry is ready",
			tiles: map[string]*domain.Tile{},
			want:  true,
		},
		{
			name: "ready tile",
			tiles: map[string]*domain.Tile{
				"a": {ID: "a", Status: domain.TileStatusReady, Plans: map[string]*domain.BuildPlan{"20m": {}}},
			},
			want: true,
		},
		{
			name: "failed tile does not block readiness",
			tiles: map[string]*domain.Tile{
				"a": {ID: "a", Status: domain.TileStatusError},
			},
			want: true,
		},
		{
			name: "loading tile",
			tiles: map[string]*domain.Tile{
				"a": {ID: "a", Status: domain.TileStatusReady, Plans: map[string]*domain.BuildPlan{"20m": {}}},
				"b": {ID: "b", Status: domain.TileStatusLoading},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistryFixture(RegistryConfig{})
			f.registry.tiles = tt.tiles
			service := NewHealthService(f.registry, nil)

			assert.Equal(t, tt.want, service.IsReady(context.Background()))
		})
	}
}

func TestHealthServiceGetHealthDetails(t *testing.T) {
	f := newRegistryFixture(RegistryConfig{})
	f.builder.fail["/data/bad/metadata.xml"] = domain.ErrMissingSidecar
	ctx := context.Background()

	require.NoError(t, f.registry.LoadTile(ctx, "/data/good/metadata.xml"))
	require.Error(t, f.registry.LoadTile(ctx, "/data/bad/metadata.xml"))

	f.cache.size = 5
	details := NewHealthService(f.registry, f.cache).GetHealthDetails(ctx)

	assert.True(t, details.Healthy)
	assert.True(t, details.Ready)
	assert.Equal(t, 2, details.TilesLoaded)
	assert.Equal(t, 1, details.TilesReady)
	assert.Equal(t, 5, details.CacheSize)
	assert.Equal(t, "degraded", details.Components["tiles"])
}

func TestHealthServiceGetTileHealth(t *testing.T) {
	f := newRegistryFixture(RegistryConfig{})
	f.builder.fail["/data/bad/metadata.xml"] = domain.ErrMissingSidecar
	ctx := context.Background()

	require.NoError(t, f.registry.LoadTile(ctx, "/data/good/metadata.xml"))
	_ = f.registry.LoadTile(ctx, "/data/bad/metadata.xml")

	health := NewHealthService(f.registry, nil).GetTileHealth(ctx)
	require.Len(t, health, 2)

	assert.Equal(t, "bad", health[0].ID)
	assert.Equal(t, domain.TileStatusError, health[0].Status)
	assert.NotEmpty(t, health[0].Error)
	assert.Equal(t, "good", health[1].ID)
	assert.True(t, health[1].Ready)
}
