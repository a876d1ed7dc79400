package application

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/ports/input"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

// DefaultConcurrency bounds parallel tile builds when none is configured.
const DefaultConcurrency = 4

// DocumentInvalidator drops cached metadata documents.
type DocumentInvalidator interface {
	Invalidate(path string)
}

// RegistryConfig configures a TileRegistry.
type RegistryConfig struct {
	Profiles    []string // Profiles built per tile (default: all)
	LocalPath   string   // Local tile tree (download target for remote storage)
	Concurrency int      // Parallel tile builds
}

var _ input.TileRegistry = (*TileRegistry)(nil)

// TileRegistry builds and tracks tiles found in object storage.
type TileRegistry struct {
	mu      sync.RWMutex
	tiles   map[string]*domain.Tile
	builder input.TileBuilder
	cache   DocumentInvalidator
	store   output.PlanStore
	storage output.ObjectStorage
	fs      afero.Fs
	metrics output.MetricsCollector
	logger  *slog.Logger
	cfg     RegistryConfig
}

// NewTileRegistry creates a new tile registry. cache and store may be nil.
func NewTileRegistry(
	builder input.TileBuilder,
	cache DocumentInvalidator,
	store output.PlanStore,
	storage output.ObjectStorage,
	fs afero.Fs,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg RegistryConfig,
) *TileRegistry {
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = domain.ProfileTags()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &TileRegistry{
		tiles:   make(map[string]*domain.Tile),
		builder: builder,
		cache:   cache,
		store:   store,
		storage: storage,
		fs:      fs,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// LoadTile builds every configured profile for the tile at path.
// path is a metadata.xml file under the local tile tree.
func (r *TileRegistry) LoadTile(ctx context.Context, path string) error {
	root := domain.TileRoot(path)
	id := domain.TileID(r.cfg.LocalPath, root)

	r.logger.Info("loading tile", "id", id, "path", path)

	tile := &domain.Tile{
		ID:       id,
		Path:     path,
		Root:     root,
		Plans:    make(map[string]*domain.BuildPlan, len(r.cfg.Profiles)),
		Status:   domain.TileStatusLoading,
		LoadedAt: time.Now(),
	}
	r.mu.Lock()
	r.tiles[id] = tile
	r.mu.Unlock()
	r.updateMetrics()

	plans := make(map[string]*domain.BuildPlan, len(r.cfg.Profiles))
	var buildErr error
	for _, profile := range r.cfg.Profiles {
		plan, err := r.builder.Assemble(ctx, path, profile)
		if err != nil {
			buildErr = fmt.Errorf("profile %s: %w", profile, err)
			break
		}
		plans[profile] = plan

		if r.store != nil {
			if err := r.store.Save(ctx, plan, path); err != nil {
				r.logger.Warn("failed to index plan", "id", id, "profile", profile, "error", err)
			}
		}
	}

	r.mu.Lock()
	if buildErr != nil {
		tile.Status = domain.TileStatusError
		tile.Error = buildErr.Error()
	} else {
		tile.Plans = plans
		tile.Status = domain.TileStatusReady
		tile.Error = ""
		tile.BuiltAt = time.Now()
		for _, p := range plans {
			tile.GroupName = p.Item.GroupName
			tile.ProductName = p.KeyProperties.ProductName
			break
		}
	}
	r.mu.Unlock()
	r.updateMetrics()

	if buildErr != nil {
		return buildErr
	}

	r.logger.Info("tile loaded", "id", id, "group", tile.GroupName, "plans", len(plans))
	return nil
}

// ReloadTile drops the cached document and rebuilds the tile.
func (r *TileRegistry) ReloadTile(ctx context.Context, path string) error {
	if r.cache != nil {
		r.cache.Invalidate(path)
	}
	return r.LoadTile(ctx, path)
}

// UnloadTile removes a tile and its indexed plans.
func (r *TileRegistry) UnloadTile(ctx context.Context, id string) error {
	r.logger.Info("unloading tile", "id", id)

	r.mu.Lock()
	tile, ok := r.tiles[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", id, domain.ErrTileNotFound)
	}
	tile.Status = domain.TileStatusUnloading
	r.mu.Unlock()

	if r.cache != nil {
		r.cache.Invalidate(tile.Path)
	}
	if r.store != nil {
		if _, err := r.store.DeleteTile(ctx, tile.Path); err != nil {
			r.logger.Error("failed to remove indexed plans", "id", id, "error", err)
			return err
		}
	}

	r.mu.Lock()
	delete(r.tiles, id)
	r.mu.Unlock()

	r.updateMetrics()
	return nil
}

// UnloadPath removes the tile whose metadata.xml is path, if registered.
func (r *TileRegistry) UnloadPath(ctx context.Context, path string) error {
	id := domain.TileID(r.cfg.LocalPath, domain.TileRoot(path))
	if !r.IsLoaded(id) {
		return nil
	}
	return r.UnloadTile(ctx, id)
}

// ListTiles returns all registered tiles ordered by ID.
func (r *TileRegistry) ListTiles(_ context.Context) ([]domain.Tile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tiles := make([]domain.Tile, 0, len(r.tiles))
	for _, t := range r.tiles {
		tiles = append(tiles, *t)
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].ID < tiles[j].ID })

	return tiles, nil
}

// GetTile returns a specific tile by ID.
func (r *TileRegistry) GetTile(_ context.Context, id string) (*domain.Tile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tiles[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrTileNotFound)
	}
	tile := *t
	return &tile, nil
}

// Plans returns the plans built for a tile, ordered by profile tag.
func (r *TileRegistry) Plans(_ context.Context, id string) ([]*domain.BuildPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tiles[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrTileNotFound)
	}

	plans := make([]*domain.BuildPlan, 0, len(t.Plans))
	for _, profile := range t.Profiles() {
		plans = append(plans, t.Plans[profile])
	}
	return plans, nil
}

// IsLoaded returns true if a tile with the given ID is registered.
func (r *TileRegistry) IsLoaded(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tiles[id]
	return ok
}

// TileCount returns the number of registered tiles.
func (r *TileRegistry) TileCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tiles)
}

// updateMetrics updates the metrics collector with current tile counts.
func (r *TileRegistry) updateMetrics() {
	r.mu.RLock()
	total := len(r.tiles)
	ready := 0
	for _, t := range r.tiles {
		if t.IsReady() {
			ready++
		}
	}
	r.mu.RUnlock()

	r.metrics.SetTilesLoaded(total)
	r.metrics.SetTilesReady(ready)
}

// remoteTile groups the storage keys of one tile.
type remoteTile struct {
	metadataKey string
	sidecarKey  string
}

// listRemote groups storage objects by tile ID. Tiles without metadata.xml are skipped.
func (r *TileRegistry) listRemote(ctx context.Context) (map[string]remoteTile, error) {
	start := time.Now()
	objects, err := r.storage.List(ctx)
	r.metrics.ObserveStorageDuration("list", time.Since(start))
	r.metrics.IncStorageOperations("list", err == nil)
	if err != nil {
		return nil, err
	}

	sidecars := make(map[string]string)
	metadataKeys := make(map[string]string)
	for _, obj := range objects {
		dir := path.Dir(obj.Key)
		switch path.Base(obj.Key) {
		case domain.MetadataFilename:
			metadataKeys[dir] = obj.Key
		case domain.SidecarFilename:
			sidecars[dir] = obj.Key
		}
	}

	tiles := make(map[string]remoteTile, len(metadataKeys))
	for dir, key := range metadataKeys {
		local := r.localFile(key)
		rt := remoteTile{metadataKey: key, sidecarKey: sidecars[dir]}
		if rt.sidecarKey == "" && dir != "." {
			rt.sidecarKey = sidecars[path.Dir(dir)]
		}
		tiles[domain.TileID(r.cfg.LocalPath, domain.TileRoot(local))] = rt
	}
	return tiles, nil
}

func (r *TileRegistry) localFile(key string) string {
	return filepath.Join(r.cfg.LocalPath, filepath.FromSlash(key))
}

// fetch downloads a tile's descriptor files and returns the local metadata.xml path.
func (r *TileRegistry) fetch(ctx context.Context, rt remoteTile) (string, error) {
	for _, key := range []string{rt.metadataKey, rt.sidecarKey} {
		if key == "" {
			continue
		}
		start := time.Now()
		err := r.storage.Download(ctx, key, r.localFile(key))
		r.metrics.ObserveStorageDuration("download", time.Since(start))
		r.metrics.IncStorageOperations("download", err == nil)
		if err != nil {
			return "", err
		}
	}
	return r.localFile(rt.metadataKey), nil
}

// LoadAll downloads and builds every tile in storage, Concurrency at a time.
// Individual tile failures are logged and recorded on the tile.
func (r *TileRegistry) LoadAll(ctx context.Context) error {
	r.logger.Info("loading all tiles from storage")

	remote, err := r.listRemote(ctx)
	if err != nil {
		return err
	}

	r.buildAll(ctx, remote, nil)
	return ctx.Err()
}

// buildAll fetches and loads tiles concurrently. added, when set, counts successes.
func (r *TileRegistry) buildAll(ctx context.Context, tiles map[string]remoteTile, added *int) {
	ids := make([]string, 0, len(tiles))
	for id := range tiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, id := range ids {
		rt := tiles[id]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			local, err := r.fetch(gctx, rt)
			if err != nil {
				r.logger.Error("failed to download tile", "key", rt.metadataKey, "error", err)
				return nil
			}
			if err := r.LoadTile(gctx, local); err != nil {
				r.logger.Error("failed to load tile", "path", local, "error", err)
				return nil
			}
			if added != nil {
				mu.Lock()
				*added++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Removed int
}

// Sync synchronizes with storage, building new tiles and removing tiles
// that no longer exist in storage.
func (r *TileRegistry) Sync(ctx context.Context) (SyncStats, error) {
	r.logger.Info("syncing tiles from storage")

	remote, err := r.listRemote(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	stats := SyncStats{}

	pending := make(map[string]remoteTile)
	for id, rt := range remote {
		if r.IsLoaded(id) {
			r.logger.Debug("tile already loaded, skipping", "id", id)
			continue
		}
		pending[id] = rt
	}
	r.buildAll(ctx, pending, &stats.Added)

	for _, id := range r.findTilesToRemove(remote) {
		r.logger.Info("removing tile not in storage", "id", id)

		tilePath := r.tilePath(id)
		if err := r.UnloadTile(ctx, id); err != nil {
			r.logger.Error("failed to unload removed tile", "id", id, "error", err)
			continue
		}
		r.removeLocal(tilePath)
		stats.Removed++
	}

	r.logger.Info("sync completed", "added", stats.Added, "removed", stats.Removed, "total", r.TileCount())
	return stats, nil
}

// findTilesToRemove returns tile IDs that are registered but not in storage.
func (r *TileRegistry) findTilesToRemove(remote map[string]remoteTile) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var toRemove []string
	for id := range r.tiles {
		if _, exists := remote[id]; !exists {
			toRemove = append(toRemove, id)
		}
	}
	sort.Strings(toRemove)
	return toRemove
}

// tilePath returns the metadata.xml path of a registered tile.
func (r *TileRegistry) tilePath(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.tiles[id]; ok {
		return t.Path
	}
	return ""
}

// removeLocal deletes the cached descriptor files of a removed tile.
func (r *TileRegistry) removeLocal(metadataPath string) {
	if metadataPath == "" || r.fs == nil {
		return
	}
	root := domain.TileRoot(metadataPath)
	for _, p := range []string{metadataPath, filepath.Join(root, domain.SidecarFilename)} {
		if err := r.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("failed to delete local cache file", "path", p, "error", err)
		} else {
			r.logger.Debug("deleted local cache file", "path", p)
		}
	}
}
