package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

// HTTPStorage implements ObjectStorage for HTTP(S) mirrors of a tile tree.
//
// The index file lists one entry per line. An entry ending in "/" names a
// tile directory and expands to its metadata.xml and tileInfo.json.
type HTTPStorage struct {
	client    *http.Client
	fs        afero.Fs
	baseURL   string
	indexFile string
	username  string
	password  string
}

// HTTPConfig holds HTTP storage configuration.
type HTTPConfig struct {
	BaseURL   string
	IndexFile string // default: index.txt
	Timeout   time.Duration
	Username  string
	Password  string
}

// NewHTTPStorage creates a new HTTP storage adapter. Downloads are written to fs.
func NewHTTPStorage(fs afero.Fs, cfg HTTPConfig) *HTTPStorage {
	if cfg.IndexFile == "" {
		cfg.IndexFile = "index.txt"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	return &HTTPStorage{
		client:    &http.Client{Timeout: cfg.Timeout},
		fs:        fs,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		indexFile: cfg.IndexFile,
		username:  cfg.Username,
		password:  cfg.Password,
	}
}

// List returns all tile descriptor files listed in the index file.
func (s *HTTPStorage) List(ctx context.Context) ([]output.StorageObject, error) {
	resp, err := s.get(ctx, http.MethodGet, s.indexFile)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: s.indexFile, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	objects, err := parseIndex(resp.Body)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: s.indexFile, Err: err}
	}
	return objects, nil
}

func parseIndex(r io.Reader) ([]output.StorageObject, error) {
	var objects []output.StorageObject
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, "/") {
			objects = append(objects,
				output.StorageObject{Key: line + domain.MetadataFilename},
				output.StorageObject{Key: line + domain.SidecarFilename},
			)
			continue
		}

		if output.IsTileFile(line) {
			objects = append(objects, output.StorageObject{Key: line})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	return objects, nil
}

// Download downloads a file to dest.
func (s *HTTPStorage) Download(ctx context.Context, key string, dest string) error {
	body, err := s.GetReader(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if err := writeLocal(s.fs, dest, body); err != nil {
		return &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	return nil
}

// GetReader returns a reader for the given file.
func (s *HTTPStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.get(ctx, http.MethodGet, key)
	if err != nil {
		return nil, &domain.StorageError{Operation: "get", Key: key, Err: err}
	}
	return resp.Body, nil
}

// Exists checks if a file exists via HTTP HEAD request.
func (s *HTTPStorage) Exists(ctx context.Context, key string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, key)
	if err != nil {
		return false, &domain.StorageError{Operation: "head", Key: key, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK, nil
}

// get performs a request and fails on any status other than 200.
func (s *HTTPStorage) get(ctx context.Context, method, key string) (*http.Response, error) {
	resp, err := s.do(ctx, method, key)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, key)
	}
	return resp, nil
}

func (s *HTTPStorage) do(ctx context.Context, method, key string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/"+strings.TrimPrefix(key, "/"), nil)
	if err != nil {
		return nil, err
	}

	if s.username != "" && s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	return s.client.Do(req)
}
