package sidecar

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/domain/domaintest"
)

func TestReaderRead(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/tiles/T32TQM/tileInfo.json", []byte(domaintest.T32TQMSidecar), 0o644))

	info, err := NewReader(fsys).Read(context.Background(), "/tiles/T32TQM")
	require.NoError(t, err)

	assert.Equal(t, "/tiles/T32TQM/tileInfo.json", info.Path)
	assert.Equal(t, "S2A_MSIL2A_20200101_T32TQM", info.ProductName)
	assert.Equal(t, "T32TQM", info.GroupName())
	assert.Equal(t, "20200101_T32TQM", info.DisplayName())
}

func TestReaderReadParentLayout(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/tiles/T32TQM/tileInfo.json", []byte(domaintest.T32TQMSidecar), 0o644))
	require.NoError(t, fsys.MkdirAll("/tiles/T32TQM/L2A", 0o755))

	info, err := NewReader(fsys).Read(context.Background(), "/tiles/T32TQM/L2A")
	require.NoError(t, err)
	assert.Equal(t, "/tiles/T32TQM/tileInfo.json", info.Path)
}

func TestReaderReadPartial(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/t/tileInfo.json", []byte(`{"productName": "S2B_MSIL2A_20210606_T33UUP"}`), 0o644))

	info, err := NewReader(fsys).Read(context.Background(), "/t")
	require.NoError(t, err)
	assert.Equal(t, "", info.GroupName())
	assert.Equal(t, "20210606_T33UUP", info.DisplayName())
	assert.Empty(t, info.Rings)
}

func TestReaderReadMissing(t *testing.T) {
	_, err := NewReader(afero.NewMemMapFs()).Read(context.Background(), "/tiles/none")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingSidecar))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	var serr *domain.SidecarError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "/tiles/none/tileInfo.json", serr.Path)
}

func TestReaderReadMalformed(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/t/tileInfo.json", []byte(`{"utmZone":`), 0o644))

	_, err := NewReader(fsys).Read(context.Background(), "/t")
	assert.True(t, errors.Is(err, domain.ErrInvalidSidecar))
	assert.False(t, errors.Is(err, domain.ErrMissingSidecar))
}
