// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	buildCounter        *prometheus.CounterVec
	buildDuration       *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	cacheSize           prometheus.Gauge
	worldFiles          prometheus.Counter
	tilesLoaded         prometheus.Gauge
	tilesReady          prometheus.Gauge
	storageOperations   *prometheus.CounterVec
	storageDuration     *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector registered with the default registry.
func NewCollector(namespace string) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered with reg.
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "s2tile"
	}
	factory := promauto.With(reg)

	return &Collector{
		buildCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Total number of build plan assemblies",
			},
			[]string{"profile", "status"},
		),

		buildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Build plan assembly duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"profile"},
		),

		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_cache_lookups_total",
				Help:      "Metadata document cache lookups",
			},
			[]string{"result"},
		),

		cacheSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "document_cache_entries",
				Help:      "Number of cached metadata documents",
			},
		),

		worldFiles: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "world_files_written_total",
				Help:      "Total number of world files written",
			},
		),

		tilesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tiles_loaded",
				Help:      "Number of registered tiles",
			},
		),

		tilesReady: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tiles_ready",
				Help:      "Number of tiles with built plans",
			},
		),

		storageOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		storageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// IncBuildCount increments the build counter.
func (c *Collector) IncBuildCount(profile string, success bool) {
	c.buildCounter.WithLabelValues(profile, statusLabel(success)).Inc()
}

// ObserveBuildDuration records build duration.
func (c *Collector) ObserveBuildDuration(profile string, duration time.Duration) {
	c.buildDuration.WithLabelValues(profile).Observe(duration.Seconds())
}

// IncCacheLookup counts a cache hit or miss.
func (c *Collector) IncCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// SetCacheSize sets the number of cached documents.
func (c *Collector) SetCacheSize(count int) {
	c.cacheSize.Set(float64(count))
}

// IncWorldFiles adds written world files.
func (c *Collector) IncWorldFiles(count int) {
	if count > 0 {
		c.worldFiles.Add(float64(count))
	}
}

// SetTilesLoaded sets the number of loaded tiles.
func (c *Collector) SetTilesLoaded(count int) {
	c.tilesLoaded.Set(float64(count))
}

// SetTilesReady sets the number of ready tiles.
func (c *Collector) SetTilesReady(count int) {
	c.tilesReady.Set(float64(count))
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	c.storageOperations.WithLabelValues(operation, statusLabel(success)).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncHTTPRequests increments the HTTP request counter.
func (c *Collector) IncHTTPRequests(method, path, status string) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration records HTTP request duration.
func (c *Collector) ObserveHTTPDuration(method, path string, duration time.Duration) {
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns HTTP middleware for metrics collection.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		path := routePath(r)
		status := statusToString(wrapped.statusCode)

		c.IncHTTPRequests(r.Method, path, status)
		c.ObserveHTTPDuration(r.Method, path, duration)
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// routePath returns the matched route template so tile IDs do not become labels.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// statusToString converts HTTP status code to string category.
func statusToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
