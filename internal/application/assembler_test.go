package application

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/s2tile/internal/adapters/metadata"
	"github.com/jobrunner/s2tile/internal/adapters/sidecar"
	"github.com/jobrunner/s2tile/internal/adapters/worldfile"
	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/domain/domaintest"
)

const testTileRoot = "/data/tiles/32/T/QM/2020/1/1/0"

func newTestAssembler(t *testing.T, fs afero.Fs) *Assembler {
	t.Helper()
	cache, err := metadata.NewDocumentCache(metadata.NewParser(fs), 0, nil, quietLogger())
	require.NoError(t, err)

	return NewAssembler(
		metadata.NewNamespaceResolver(fs),
		cache,
		sidecar.NewReader(fs),
		worldfile.NewWriter(fs, quietLogger()),
		nil,
		quietLogger(),
	)
}

func writeT32TQMTile(t *testing.T, fs afero.Fs, m domaintest.Metadata) string {
	t.Helper()
	path, err := domaintest.WriteTile(fs, testTileRoot, m, domaintest.T32TQMSidecar)
	require.NoError(t, err)
	return path
}

func TestAssembleTile(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeT32TQMTile(t, fs, domaintest.DefaultMetadata())
	a := newTestAssembler(t, fs)

	plan, err := a.Assemble(context.Background(), path, domain.Profile20m)
	require.NoError(t, err)

	assert.Equal(t, "T32TQM", plan.Item.GroupName)
	assert.Equal(t, "20200101_T32TQM", plan.Item.DisplayName)
	assert.Equal(t, domain.ProductType, plan.Item.ProductType)
	assert.Equal(t, 32632, plan.SpatialReference)
	assert.Equal(t, 32632, plan.Footprint.SRID)
	assert.Equal(t, [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, plan.Footprint.Vertices())

	require.NotNil(t, plan.KeyProperties.Quality.CloudCoverage)
	assert.Equal(t, 12.5, *plan.KeyProperties.Quality.CloudCoverage)
	require.NotNil(t, plan.KeyProperties.Quality.VegetationPercentage)
	assert.Equal(t, 40.25, *plan.KeyProperties.Quality.VegetationPercentage)
	assert.Equal(t, "T32TQM", plan.KeyProperties.BlockName)
	assert.Equal(t, domain.SensorName, plan.KeyProperties.SensorName)
	assert.Equal(t, "S2A_MSIL2A_20200101_T32TQM", plan.KeyProperties.ProductName)

	assert.Equal(t, domain.PlanID(path, domain.Profile20m), plan.ID)
	assert.Equal(t, "Composite9Bands.rft.xml", plan.Raster.Function)
	require.Len(t, plan.Raster.Arguments, 9)
	assert.Equal(t, domain.RasterArgument{
		Name: "Raster1",
		Band: "B02",
		Path: filepath.Join(testTileRoot, "R20m", "B02.jp2"),
	}, plan.Raster.Arguments[0])
	assert.Len(t, plan.WorldFiles, 9)
}

func TestAssembleCloudMaskProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeT32TQMTile(t, fs, domaintest.DefaultMetadata())
	a := newTestAssembler(t, fs)

	plan20c, err := a.Assemble(context.Background(), path, domain.Profile20mCloud)
	require.NoError(t, err)
	plan20m, err := a.Assemble(context.Background(), path, domain.Profile20m)
	require.NoError(t, err)

	args := plan20c.Raster.Arguments
	require.Len(t, args, 10)
	assert.Equal(t, "Composite10Bands.rft.xml", plan20c.Raster.Function)
	assert.Equal(t, "B00", args[0].Band)
	assert.Equal(t, filepath.Join(testTileRoot, "qi", "CLD_20m.jp2"), args[0].Path)

	for i, arg := range args[1:] {
		assert.Equal(t, plan20m.Raster.Arguments[i].Band, arg.Band)
		assert.Equal(t, plan20m.Raster.Arguments[i].Path, arg.Path)
		assert.Equal(t, domain.ArgumentName(i+1), arg.Name)
	}

	props := plan20c.KeyProperties.BandProperties
	require.Len(t, props, 10)
	assert.Equal(t, "B00", props[0].BandName)
	require.NotNil(t, props[0].ZenithAngle)
	assert.Equal(t, 8.1, *props[0].ZenithAngle)
}

func TestAssembleWorldFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeT32TQMTile(t, fs, domaintest.DefaultMetadata())
	a := newTestAssembler(t, fs)

	plan, err := a.Assemble(context.Background(), path, domain.Profile20m)
	require.NoError(t, err)

	b, err := afero.ReadFile(fs, filepath.Join(testTileRoot, "R20m", "B02.j2w"))
	require.NoError(t, err)
	assert.Equal(t, "20\n0\n-0\n-20\n499990\n5000030\n", string(b))

	assert.Equal(t, 20.0, plan.Georeference.PixelWidth)
	assert.Equal(t, 499990.0, plan.Georeference.OriginX)

	for _, arg := range plan.Raster.Arguments {
		ok, err := afero.Exists(fs, domain.WorldFilePath(arg.Path))
		require.NoError(t, err)
		assert.True(t, ok, arg.Path)
	}
}

func TestAssemble10mProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeT32TQMTile(t, fs, domaintest.DefaultMetadata())
	a := newTestAssembler(t, fs)

	plan, err := a.Assemble(context.Background(), path, domain.Profile10m)
	require.NoError(t, err)

	bands := make([]string, len(plan.Raster.Arguments))
	for i, arg := range plan.Raster.Arguments {
		bands[i] = arg.Band
	}
	assert.Equal(t, []string{"B02", "B03", "B04", "B08"}, bands)
	assert.Equal(t, filepath.Join(testTileRoot, "R10m", "B08.jp2"), plan.Raster.Arguments[3].Path)

	b, err := afero.ReadFile(fs, filepath.Join(testTileRoot, "R10m", "B08.j2w"))
	require.NoError(t, err)
	assert.Equal(t, "10\n0\n-0\n-10\n499985\n5000035\n", string(b))
}

func TestAssemblePSD14Dialect(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := domaintest.DefaultMetadata()
	m.Namespace = domaintest.NamespacePSD14
	path := writeT32TQMTile(t, fs, m)

	plan, err := newTestAssembler(t, fs).Assemble(context.Background(), path, domain.Profile20m)
	require.NoError(t, err)
	assert.Equal(t, 32632, plan.SpatialReference)
}

func TestAssembleOptionalFieldsAbsent(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := domaintest.DefaultMetadata()
	m.CSCode = ""
	m.CloudCoverage = ""
	m.Angles = nil
	path, err := domaintest.WriteTile(fs, testTileRoot, m, `{"productName":"SINGLE"}`)
	require.NoError(t, err)

	plan, err := newTestAssembler(t, fs).Assemble(context.Background(), path, domain.Profile10m)
	require.NoError(t, err)

	assert.Equal(t, domain.SRIDUnspecified, plan.SpatialReference)
	assert.Empty(t, plan.Item.GroupName)
	assert.Empty(t, plan.Item.DisplayName)
	assert.True(t, plan.Footprint.IsEmpty())
	assert.Nil(t, plan.KeyProperties.Quality.CloudCoverage)
	for _, p := range plan.KeyProperties.BandProperties {
		assert.Nil(t, p.ZenithAngle)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(fs afero.Fs) string
		profile string
		wantErr error
	}{
		{
			name: "unknown profile",
			setup: func(fs afero.Fs) string {
				p, _ := domaintest.WriteTile(fs, testTileRoot, domaintest.DefaultMetadata(), domaintest.T32TQMSidecar)
				return p
			},
			profile: "60m",
			wantErr: domain.ErrUnknownProfile,
		},
		{
			name: "unrecognized schema",
			setup: func(fs afero.Fs) string {
				m := domaintest.DefaultMetadata()
				m.Namespace = "urn:other"
				p, _ := domaintest.WriteTile(fs, testTileRoot, m, domaintest.T32TQMSidecar)
				return p
			},
			profile: domain.Profile20m,
			wantErr: domain.ErrSchemaUnrecognized,
		},
		{
			name: "missing sidecar",
			setup: func(fs afero.Fs) string {
				p, _ := domaintest.WriteTile(fs, testTileRoot, domaintest.DefaultMetadata(), "")
				return p
			},
			profile: domain.Profile20m,
			wantErr: domain.ErrMissingSidecar,
		},
		{
			name: "malformed sidecar",
			setup: func(fs afero.Fs) string {
				p, _ := domaintest.WriteTile(fs, testTileRoot, domaintest.DefaultMetadata(), "{")
				return p
			},
			profile: domain.Profile20m,
			wantErr: domain.ErrInvalidSidecar,
		},
		{
			name: "missing geoposition",
			setup: func(fs afero.Fs) string {
				m := domaintest.DefaultMetadata()
				m.Geopositions = m.Geopositions[:1]
				p, _ := domaintest.WriteTile(fs, testTileRoot, m, domaintest.T32TQMSidecar)
				return p
			},
			profile: domain.Profile20m,
			wantErr: domain.ErrGeopositionMissing,
		},
		{
			name: "malformed cs code",
			setup: func(fs afero.Fs) string {
				m := domaintest.DefaultMetadata()
				m.CSCode = "UTM32"
				p, _ := domaintest.WriteTile(fs, testTileRoot, m, domaintest.T32TQMSidecar)
				return p
			},
			profile: domain.Profile20m,
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "unparseable document",
			setup: func(fs afero.Fs) string {
				p := filepath.Join(testTileRoot, "metadata.xml")
				_ = afero.WriteFile(fs, p, []byte("<?xml version=\"1.0\"?>\n<n1:Level-2A_Tile_ID xmlns:n1=\""+
					domaintest.NamespacePSD12+"\">\n<General_Info>"), 0o644)
				return p
			},
			profile: domain.Profile20m,
			wantErr: domain.ErrParseFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			path := tt.setup(fs)

			plan, err := newTestAssembler(t, fs).Assemble(context.Background(), path, tt.profile)
			assert.Nil(t, plan)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestAssembleWorldFileFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	path := writeT32TQMTile(t, base, domaintest.DefaultMetadata())
	fs := afero.NewReadOnlyFs(base)

	_, err := newTestAssembler(t, fs).Assemble(context.Background(), path, domain.Profile20m)
	require.Error(t, err)

	var werr *domain.GeoreferenceWriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, filepath.Join(testTileRoot, "R20m", "B02.jp2"), werr.BandPath)
}

func TestAssembleConcurrent(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeT32TQMTile(t, fs, domaintest.DefaultMetadata())
	a := newTestAssembler(t, fs)

	profiles := []string{domain.Profile10m, domain.Profile20m, domain.Profile20mCloud}
	plans := make([]*domain.BuildPlan, 30)
	errs := make([]error, 30)

	var wg sync.WaitGroup
	for i := range plans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plans[i], errs[i] = a.Assemble(context.Background(), path, profiles[i%3])
		}(i)
	}
	wg.Wait()

	for i := range plans {
		require.NoError(t, errs[i])
		assert.Equal(t, profiles[i%3], plans[i].Profile)
		assert.Equal(t, "T32TQM", plans[i].Item.GroupName)
	}
}

func TestCanOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeT32TQMTile(t, fs, domaintest.DefaultMetadata())

	other := domaintest.DefaultMetadata()
	other.Namespace = "urn:other"
	otherPath, err := domaintest.WriteTile(fs, "/data/other", other, "")
	require.NoError(t, err)

	a := newTestAssembler(t, fs)
	assert.True(t, a.CanOpen(context.Background(), path))
	assert.False(t, a.CanOpen(context.Background(), otherPath))
	assert.False(t, a.CanOpen(context.Background(), "/data/missing/metadata.xml"))
	assert.False(t, a.CanOpen(context.Background(), filepath.Join(testTileRoot, "tileInfo.json")))
}
