// Package storage provides object storage adapters for tile descriptor files.
package storage

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// writeLocal copies r to dest on fs, creating parent directories.
func writeLocal(fs afero.Fs, dest string, r io.Reader) error {
	if err := fs.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}

	f, err := fs.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// relativeKey strips the configured prefix from an object key.
func relativeKey(key, prefix string) string {
	rel := strings.TrimPrefix(key, prefix)
	return strings.TrimPrefix(rel, "/")
}

// joinKey prefixes a relative key.
func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}
