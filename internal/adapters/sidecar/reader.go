// Package sidecar reads the tileInfo.json tile descriptor.
package sidecar

import (
	"context"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/jobrunner/s2tile/internal/domain"
)

// Reader loads tileInfo.json from a tile root.
type Reader struct {
	fs afero.Fs
}

// NewReader creates a sidecar reader on fs.
func NewReader(fs afero.Fs) *Reader {
	return &Reader{fs: fs}
}

// Read opens <root>/tileInfo.json. When it is absent there but present one
// level up, the parent is used.
func (r *Reader) Read(_ context.Context, tileRoot string) (*domain.SidecarInfo, error) {
	path := r.locate(tileRoot)

	f, err := r.fs.Open(path)
	if err != nil {
		return nil, &domain.SidecarError{Path: path, Kind: domain.ErrMissingSidecar, Err: err}
	}
	defer f.Close()

	return domain.DecodeSidecar(path, f)
}

func (r *Reader) locate(tileRoot string) string {
	path := filepath.Join(tileRoot, domain.SidecarFilename)
	if ok, _ := afero.Exists(r.fs, path); ok {
		return path
	}
	parent := filepath.Join(filepath.Dir(tileRoot), domain.SidecarFilename)
	if ok, _ := afero.Exists(r.fs, parent); ok {
		return parent
	}
	return path
}
