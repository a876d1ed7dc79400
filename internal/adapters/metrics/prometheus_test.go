package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jobrunner/s2tile/internal/ports/output"
)

var _ output.MetricsCollector = (*Collector)(nil)

func TestCollectorCounters(t *testing.T) {
	c := NewCollectorWithRegistry("test", prometheus.NewRegistry())

	c.IncBuildCount("20m", true)
	c.IncBuildCount("20m", true)
	c.IncBuildCount("10m", false)
	c.IncCacheLookup(true)
	c.IncCacheLookup(false)
	c.IncCacheLookup(false)
	c.SetCacheSize(7)
	c.IncWorldFiles(9)
	c.IncWorldFiles(0)
	c.SetTilesLoaded(3)
	c.SetTilesReady(2)
	c.ObserveBuildDuration("20m", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.buildCounter.WithLabelValues("20m", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.buildCounter.WithLabelValues("10m", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.cacheSize))
	assert.Equal(t, 9.0, testutil.ToFloat64(c.worldFiles))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.tilesLoaded))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.tilesReady))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	c := NewCollectorWithRegistry("test", prometheus.NewRegistry())

	r := mux.NewRouter()
	r.Use(c.Middleware)
	r.HandleFunc("/api/v1/tiles/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"T32TQM", "T33UUP"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tiles/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/tiles/{id}", "4xx")))
}

func TestStatusToString(t *testing.T) {
	tests := map[int]string{200: "2xx", 204: "2xx", 301: "3xx", 404: "4xx", 503: "5xx", 100: "unknown"}
	for code, want := range tests {
		assert.Equal(t, want, statusToString(code))
	}
}

func TestMetricsServerHandler(t *testing.T) {
	s := NewServer(9090, "/metrics", slog.New(slog.NewTextHandler(io.Discard, nil)))

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/metrics", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
