package worldfile

import (
	"context"
	"errors"
	"log/slog"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/s2tile/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var params20m = domain.GeoreferenceParameters{PixelWidth: 20, PixelHeight: -20, OriginX: 499990, OriginY: 5000030}

func TestWriterWrite(t *testing.T) {
	fsys := afero.NewMemMapFs()
	bands := []string{"/t/R20m/B02.jp2", "/t/R20m/B03.jp2", "/t/R20m/../qi/CLD_20m.jp2"}

	written, err := NewWriter(fsys, testLogger()).Write(context.Background(), bands, params20m)
	require.NoError(t, err)
	assert.Equal(t, []string{"/t/R20m/B02.j2w", "/t/R20m/B03.j2w", "/t/R20m/../qi/CLD_20m.j2w"}, written)

	for _, p := range []string{"/t/R20m/B02.j2w", "/t/R20m/B03.j2w", "/t/qi/CLD_20m.j2w"} {
		data, err := afero.ReadFile(fsys, p)
		require.NoError(t, err, p)
		assert.Equal(t, "20\n0\n-0\n-20\n499990\n5000030\n", string(data))
	}
}

func TestWriterOverwrites(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/t/R20m/B02.j2w", []byte("stale content that is longer than the new one\n"), 0o644))

	_, err := NewWriter(fsys, testLogger()).Write(context.Background(), []string{"/t/R20m/B02.jp2"}, params20m)
	require.NoError(t, err)

	data, err := afero.ReadFile(fsys, "/t/R20m/B02.j2w")
	require.NoError(t, err)
	assert.Equal(t, params20m.WorldFile(), string(data))

	// Repeated writes are byte identical.
	_, err = NewWriter(fsys, testLogger()).Write(context.Background(), []string{"/t/R20m/B02.jp2"}, params20m)
	require.NoError(t, err)
	again, err := afero.ReadFile(fsys, "/t/R20m/B02.j2w")
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

// failingFs rejects writes to one path.
type failingFs struct {
	afero.Fs
	path string
}

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if name == f.path {
		return nil, os.ErrPermission
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestWriterStopsOnFirstFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	fsys := &failingFs{Fs: base, path: "/t/R20m/B03.j2w"}

	bands := []string{"/t/R20m/B02.jp2", "/t/R20m/B03.jp2", "/t/R20m/B04.jp2"}
	written, err := NewWriter(fsys, testLogger()).Write(context.Background(), bands, params20m)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGeoreferenceWrite))
	var werr *domain.GeoreferenceWriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, "/t/R20m/B03.jp2", werr.BandPath)
	assert.True(t, errors.Is(err, os.ErrPermission))

	assert.Equal(t, []string{"/t/R20m/B02.j2w"}, written)
	exists, _ := afero.Exists(base, "/t/R20m/B02.j2w")
	assert.True(t, exists)
	exists, _ = afero.Exists(base, "/t/R20m/B04.j2w")
	assert.False(t, exists)
}

func TestWriterReadOnlyFs(t *testing.T) {
	ro := afero.NewReadOnlyFs(afero.NewMemMapFs())

	_, err := NewWriter(ro, testLogger()).Write(context.Background(), []string{"/t/R10m/B02.jp2"}, params20m)
	assert.True(t, errors.Is(err, domain.ErrGeoreferenceWrite))
}

func TestWriterMissingBandFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "R20m"), 0o755))
	bands := []string{filepath.Join(dir, "R20m", "B02.jp2"), filepath.Join(dir, "R60m", "B01.jp2")}

	written, err := NewWriter(afero.NewOsFs(), testLogger()).Write(context.Background(), bands, params20m)

	require.Error(t, err)
	var werr *domain.GeoreferenceWriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, bands[1], werr.BandPath)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Equal(t, []string{filepath.Join(dir, "R20m", "B02.j2w")}, written)

	_, statErr := os.Stat(filepath.Join(dir, "R60m"))
	assert.True(t, errors.Is(statErr, fs.ErrNotExist))
}
