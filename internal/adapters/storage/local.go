package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

// LocalStorage implements ObjectStorage for a local tile tree.
type LocalStorage struct {
	fs       afero.Fs
	basePath string
}

// NewLocalStorage creates a new local storage adapter.
func NewLocalStorage(fs afero.Fs, basePath string) *LocalStorage {
	return &LocalStorage{fs: fs, basePath: basePath}
}

// List returns all tile descriptor files below the base path.
func (s *LocalStorage) List(_ context.Context) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	err := afero.Walk(s.fs, s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !output.IsTileFile(path) {
			return nil
		}

		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		objects = append(objects, output.StorageObject{
			Key:          filepath.ToSlash(relPath),
			Size:         info.Size(),
			LastModified: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}

	return objects, nil
}

// Download copies a file to the destination (no-op when both are the same).
func (s *LocalStorage) Download(_ context.Context, key string, dest string) error {
	srcPath := s.FullPath(key)
	if filepath.Clean(srcPath) == filepath.Clean(dest) {
		return nil
	}

	src, err := s.fs.Open(srcPath)
	if err != nil {
		return &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	defer src.Close()

	if err := writeLocal(s.fs, dest, src); err != nil {
		return &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	return nil
}

// GetReader returns a reader for the given object.
func (s *LocalStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.FullPath(key))
	if err != nil {
		return nil, &domain.StorageError{Operation: "read", Key: key, Err: err}
	}
	return f, nil
}

// Exists checks if a file exists.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := s.fs.Stat(s.FullPath(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// FullPath returns the full path for a key.
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// BasePath returns the root of the tile tree.
func (s *LocalStorage) BasePath() string {
	return s.basePath
}
