package application

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

// mockBuilder implements input.TileBuilder for testing.
type mockBuilder struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error // keyed by tile path
}

func (m *mockBuilder) Assemble(_ context.Context, tilePath, profile string) (*domain.BuildPlan, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[tilePath]++
	m.mu.Unlock()

	if err, ok := m.fail[tilePath]; ok {
		return nil, err
	}
	if _, err := domain.LookupProfile(profile); err != nil {
		return nil, err
	}
	return &domain.BuildPlan{
		ID:            domain.PlanID(tilePath, profile),
		Profile:       profile,
		Item:          domain.ItemURI{Path: tilePath, GroupName: "T32TQM"},
		KeyProperties: domain.KeyProperties{ProductName: "S2A_MSIL2A_20200101_T32TQM"},
	}, nil
}

func (m *mockBuilder) CanOpen(_ context.Context, path string) bool {
	return strings.HasSuffix(path, domain.MetadataFilename)
}

func (m *mockBuilder) callCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	mu          sync.Mutex
	objects     []output.StorageObject
	downloaded  []string
	downloadErr error
	listErr     error
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]output.StorageObject(nil), m.objects...), nil
}

func (m *mockStorage) Download(_ context.Context, key, _ string) error {
	if m.downloadErr != nil {
		return m.downloadErr
	}
	m.mu.Lock()
	m.downloaded = append(m.downloaded, key)
	m.mu.Unlock()
	return nil
}

func (m *mockStorage) GetReader(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (m *mockStorage) Exists(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (m *mockStorage) setObjects(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = m.objects[:0]
	for _, k := range keys {
		m.objects = append(m.objects, output.StorageObject{Key: k})
	}
}

// mockPlanStore implements output.PlanStore for testing.
type mockPlanStore struct {
	mu    sync.Mutex
	saved map[string]string // plan ID -> tile path
}

func (m *mockPlanStore) Save(_ context.Context, plan *domain.BuildPlan, tilePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string]string)
	}
	m.saved[plan.ID.String()] = tilePath
	return nil
}

func (m *mockPlanStore) Get(_ context.Context, id string) (*output.PlanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path, ok := m.saved[id]; ok {
		return &output.PlanRecord{ID: id, TilePath: path}, nil
	}
	return nil, domain.ErrPlanNotFound
}

func (m *mockPlanStore) List(_ context.Context, _ output.PlanFilter) ([]output.PlanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]output.PlanRecord, 0, len(m.saved))
	for id, path := range m.saved {
		records = append(records, output.PlanRecord{ID: id, TilePath: path})
	}
	return records, nil
}

func (m *mockPlanStore) DeleteTile(_ context.Context, tilePath string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, path := range m.saved {
		if path == tilePath {
			delete(m.saved, id)
			n++
		}
	}
	return n, nil
}

func (m *mockPlanStore) Close() error { return nil }

func (m *mockPlanStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// mockInvalidator records invalidated paths.
type mockInvalidator struct {
	mu    sync.Mutex
	paths []string
	size  int
}

func (m *mockInvalidator) Invalidate(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
}

func (m *mockInvalidator) Len() int { return m.size }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
