// Package worldfile writes .j2w georeference sidecars next to band images.
package worldfile

import (
	"context"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/jobrunner/s2tile/internal/domain"
)

// Writer emits one world file per band image.
type Writer struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewWriter creates a writer on fs.
func NewWriter(fs afero.Fs, logger *slog.Logger) *Writer {
	return &Writer{fs: fs, logger: logger}
}

// Write writes <image>.j2w for every band path in order, overwriting existing
// files. Band folders must already exist. The first failure stops the loop;
// files already written stay in place.
func (w *Writer) Write(ctx context.Context, bandPaths []string, params domain.GeoreferenceParameters) ([]string, error) {
	content := []byte(params.WorldFile())
	written := make([]string, 0, len(bandPaths))

	for _, band := range bandPaths {
		if err := ctx.Err(); err != nil {
			return written, &domain.GeoreferenceWriteError{BandPath: band, Err: err}
		}

		path := domain.WorldFilePath(band)
		if err := afero.WriteFile(w.fs, path, content, 0o644); err != nil {
			return written, &domain.GeoreferenceWriteError{BandPath: band, Err: err}
		}
		written = append(written, path)
	}

	w.logger.Debug("wrote world files", "count", len(written))
	return written, nil
}
