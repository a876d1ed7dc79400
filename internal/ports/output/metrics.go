package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncBuildCount increments the plan build counter.
	IncBuildCount(profile string, success bool)

	// ObserveBuildDuration records plan build duration.
	ObserveBuildDuration(profile string, duration time.Duration)

	// IncCacheLookup counts a document cache hit or miss.
	IncCacheLookup(hit bool)

	// SetCacheSize sets the number of cached documents.
	SetCacheSize(count int)

	// IncWorldFiles adds written world files.
	IncWorldFiles(count int)

	// SetTilesLoaded sets the number of registered tiles.
	SetTilesLoaded(count int)

	// SetTilesReady sets the number of ready tiles.
	SetTilesReady(count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncBuildCount implements MetricsCollector.
func (n *NoOpMetrics) IncBuildCount(_ string, _ bool) {}

// ObserveBuildDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveBuildDuration(_ string, _ time.Duration) {}

// IncCacheLookup implements MetricsCollector.
func (n *NoOpMetrics) IncCacheLookup(_ bool) {}

// SetCacheSize implements MetricsCollector.
func (n *NoOpMetrics) SetCacheSize(_ int) {}

// IncWorldFiles implements MetricsCollector.
func (n *NoOpMetrics) IncWorldFiles(_ int) {}

// SetTilesLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetTilesLoaded(_ int) {}

// SetTilesReady implements MetricsCollector.
func (n *NoOpMetrics) SetTilesReady(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
