// Package application contains the application services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/ports/input"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

var _ input.TileBuilder = (*Assembler)(nil)

// Assembler turns one tile and one resolution profile into a BuildPlan.
// It is safe for concurrent use; the document cache is the only shared state.
type Assembler struct {
	resolver  output.NamespaceResolver
	documents output.DocumentSource
	sidecars  output.SidecarReader
	georef    output.GeoreferenceWriter
	metrics   output.MetricsCollector
	logger    *slog.Logger
}

// NewAssembler creates a new build assembler.
// A nil georef skips world file emission.
func NewAssembler(
	resolver output.NamespaceResolver,
	documents output.DocumentSource,
	sidecars output.SidecarReader,
	georef output.GeoreferenceWriter,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *Assembler {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &Assembler{
		resolver:  resolver,
		documents: documents,
		sidecars:  sidecars,
		georef:    georef,
		metrics:   metrics,
		logger:    logger,
	}
}

// Assemble builds the plan for tilePath under the given profile tag.
// World files are written as a side effect.
func (a *Assembler) Assemble(ctx context.Context, tilePath, profile string) (*domain.BuildPlan, error) {
	start := time.Now()

	plan, err := a.assemble(ctx, tilePath, profile)

	a.metrics.ObserveBuildDuration(profile, time.Since(start))
	a.metrics.IncBuildCount(profile, err == nil)

	if err != nil {
		a.logger.Error("build failed", "path", tilePath, "profile", profile, "error", err)
		return nil, err
	}

	a.logger.Debug("build plan assembled",
		"path", tilePath,
		"profile", profile,
		"group", plan.Item.GroupName,
		"bands", len(plan.Raster.Arguments),
		"duration", time.Since(start),
	)
	return plan, nil
}

func (a *Assembler) assemble(ctx context.Context, tilePath, tag string) (*domain.BuildPlan, error) {
	if tilePath == "" {
		return nil, &domain.ValidationError{Field: "path", Constraint: "required", Message: "tile path is required"}
	}

	profile, err := domain.LookupProfile(tag)
	if err != nil {
		return nil, err
	}
	bands, err := profile.Bands()
	if err != nil {
		return nil, err
	}

	dialect, err := a.resolver.Resolve(ctx, tilePath)
	if err != nil {
		return nil, err
	}

	doc, err := a.documents.Get(ctx, tilePath)
	if err != nil {
		return nil, err
	}
	q := domain.NewQuery(doc, dialect)

	root := domain.TileRoot(tilePath)
	info, err := a.sidecars.Read(ctx, root)
	if err != nil {
		return nil, err
	}

	srid, err := domain.ExtractSRID(q)
	if err != nil {
		return nil, err
	}

	footprint, err := domain.NewFootprint(info, srid)
	if err != nil {
		return nil, err
	}

	bandPaths := make([]string, len(bands))
	for i, b := range bands {
		bandPaths[i] = filepath.Join(root, profile.Folder(), filepath.FromSlash(b.Filename))
	}

	params, err := domain.GeoreferenceFor(q, profile.ResolutionMeters())
	if err != nil {
		return nil, err
	}

	var written []string
	if a.georef != nil {
		written, err = a.georef.Write(ctx, bandPaths, params)
		a.metrics.IncWorldFiles(len(written))
		if err != nil {
			return nil, err
		}
	}

	args := make([]domain.RasterArgument, len(bands))
	for i, b := range bands {
		args[i] = domain.RasterArgument{Name: domain.ArgumentName(i), Band: b.Name, Path: bandPaths[i]}
	}

	quality, err := domain.ExtractQuality(q)
	if err != nil {
		return nil, err
	}
	angles, err := domain.ExtractBandAngles(q)
	if err != nil {
		return nil, err
	}

	props := make([]domain.BandProperty, len(bands))
	for i, b := range bands {
		props[i] = domain.NewBandProperty(b, angles)
	}

	group := info.GroupName()
	return &domain.BuildPlan{
		ID:      domain.PlanID(tilePath, profile.Tag),
		Profile: profile.Tag,
		Raster: domain.RasterFunction{
			Function:  profile.FunctionTemplate,
			Arguments: args,
		},
		Item: domain.ItemURI{
			Path:        tilePath,
			DisplayName: info.DisplayName(),
			GroupName:   group,
			ProductType: domain.ProductType,
		},
		SpatialReference: srid,
		Footprint:        footprint,
		Georeference:     params,
		KeyProperties: domain.KeyProperties{
			BlockName:      group,
			SensorName:     domain.SensorName,
			ProductType:    domain.ProductType,
			ProductName:    info.ProductName,
			Quality:        quality,
			BandProperties: props,
		},
		WorldFiles: written,
	}, nil
}

// CanOpen reports whether path is a Level-2A tile metadata document in a known dialect.
func (a *Assembler) CanOpen(ctx context.Context, path string) bool {
	if filepath.Base(path) != domain.MetadataFilename {
		return false
	}

	dialect, err := a.resolver.Resolve(ctx, path)
	if err != nil {
		if !errors.Is(err, domain.ErrSchemaUnrecognized) {
			a.logger.Debug("cannot open tile", "path", path, "error", err)
		}
		return false
	}

	doc, err := a.documents.Get(ctx, path)
	if err != nil {
		return false
	}
	return doc.IsTile(dialect)
}
