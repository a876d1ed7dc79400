package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/s2tile/internal/domain"
)

// ErrRateLimited is returned when a manual sync is requested within SyncCooldown
// of the previous one.
var ErrRateLimited = errors.New("rate limit exceeded")

// SyncCooldown is the minimum time between API-triggered syncs.
const SyncCooldown = 30 * time.Second

// SyncResult summarises one pass over the tile source.
type SyncResult struct {
	TilesAdded      int       `json:"tiles_added"`
	TilesRemoved    int       `json:"tiles_removed"`
	TilesFailed     int       `json:"tiles_failed"`
	TilesTotal      int       `json:"tiles_total"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService rebuilds the registry from storage on a fixed interval and on demand.
type SyncService struct {
	registry *TileRegistry
	interval time.Duration
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	// running serialises passes; scheduled and manual syncs never overlap.
	running sync.Mutex

	mu            sync.Mutex
	lastTriggered time.Time
	nextScheduled time.Time
	last          *SyncResult
}

// NewSyncService creates a sync service for registry.
func NewSyncService(registry *TileRegistry, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		registry: registry,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the scheduler until ctx is canceled or Stop is called.
func (s *SyncService) Start(ctx context.Context) {
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *SyncService) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.schedule()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			if _, err := s.pass(ctx); err != nil {
				s.logger.Error("scheduled sync failed", "error", err)
			}
			s.schedule()
		}
	}
}

// Stop halts the scheduler and waits for a running pass to finish.
func (s *SyncService) Stop() {
	s.logger.Info("stopping sync service")
	close(s.stopCh)
	s.wg.Wait()
}

// TriggerSync runs a pass immediately.
// It returns ErrRateLimited when the previous manual pass started less than
// SyncCooldown ago.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if !s.lastTriggered.IsZero() && time.Since(s.lastTriggered) < SyncCooldown {
		s.mu.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastTriggered = time.Now()
	s.mu.Unlock()

	return s.pass(ctx)
}

// LastResult returns the outcome of the most recent successful pass.
func (s *SyncService) LastResult() (SyncResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return SyncResult{}, false
	}
	return *s.last, true
}

// Interval returns the scheduler interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}

func (s *SyncService) pass(ctx context.Context) (SyncResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	stats, err := s.registry.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	tiles, _ := s.registry.ListTiles(ctx)
	failed := 0
	for _, t := range tiles {
		if t.Status == domain.TileStatusError {
			failed++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	result := SyncResult{
		TilesAdded:      stats.Added,
		TilesRemoved:    stats.Removed,
		TilesFailed:     failed,
		TilesTotal:      len(tiles),
		SyncedAt:        time.Now(),
		NextScheduledAt: s.nextScheduled,
	}
	s.last = &result

	s.logger.Info("sync pass finished",
		"added", result.TilesAdded,
		"removed", result.TilesRemoved,
		"failed", result.TilesFailed,
		"total", result.TilesTotal,
	)
	return result, nil
}

func (s *SyncService) schedule() {
	s.mu.Lock()
	s.nextScheduled = time.Now().Add(s.interval)
	s.mu.Unlock()
}
