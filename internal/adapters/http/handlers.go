package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/s2tile/internal/application"
	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

// maxPlanLimit caps the number of plans returned by /api/v1/plans.
const maxPlanLimit = 1000

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":       boolToStatus(details.Healthy),
		"ready":        details.Ready,
		"tiles_loaded": details.TilesLoaded,
		"tiles_ready":  details.TilesReady,
		"cache_size":   details.CacheSize,
		"components":   details.Components,
		"tiles":        s.health.GetTileHealth(r.Context()),
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListProfiles returns the resolution profile registry.
func (s *Server) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	tags := domain.ProfileTags()
	profiles := make([]map[string]interface{}, 0, len(tags))
	for _, tag := range tags {
		p := domain.Profiles[tag]
		bands, err := p.Bands()
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		names := make([]string, len(bands))
		for i, b := range bands {
			names[i] = b.Name
		}
		profiles = append(profiles, map[string]interface{}{
			"tag":               p.Tag,
			"resolution_meters": p.ResolutionMeters(),
			"folder":            p.Folder(),
			"function_template": p.FunctionTemplate,
			"cloud_mask":        p.HasCloudMask(),
			"bands":             names,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// handleListBands returns the band catalog.
func (s *Server) handleListBands(w http.ResponseWriter, _ *http.Request) {
	catalog := domain.SortedBands()
	bands := make([]map[string]interface{}, len(catalog))
	for i, b := range catalog {
		bands[i] = map[string]interface{}{
			"name":           b.Name,
			"index":          b.Index,
			"filename":       b.Filename,
			"wavelength_min": b.WavelengthMin,
			"wavelength_max": b.WavelengthMax,
			"cloud_mask":     b.IsCloudMask(),
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"bands": bands,
		"count": len(bands),
	})
}

// handleBuild assembles a plan on demand for a tile below the build root.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	profile := q.Get("profile")
	if profile == "" {
		profile = domain.Profile20m
	}

	path, err := s.resolveBuildPath(q.Get("path"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	plan, err := s.builder.Assemble(r.Context(), path, profile)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, plan)
}

// resolveBuildPath maps a slash-separated path relative to the build root to a
// metadata.xml path. A tile directory resolves to its metadata.xml.
func (s *Server) resolveBuildPath(rel string) (string, error) {
	if rel == "" {
		return "", &domain.ValidationError{
			Field:      "path",
			Constraint: "required",
			Message:    "path parameter is required",
		}
	}

	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &domain.ValidationError{
			Field:      "path",
			Value:      rel,
			Constraint: "below build root",
			Message:    "path escapes the tile tree",
		}
	}

	full := filepath.Join(s.buildRoot, clean)
	if filepath.Base(full) != domain.MetadataFilename {
		full = filepath.Join(full, domain.MetadataFilename)
	}
	return full, nil
}

// handleListTiles returns all registered tiles.
func (s *Server) handleListTiles(w http.ResponseWriter, r *http.Request) {
	tiles, err := s.registry.ListTiles(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list tiles")
		return
	}

	response := make([]map[string]interface{}, len(tiles))
	for i := range tiles {
		response[i] = formatTile(&tiles[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tiles": response,
		"count": len(tiles),
	})
}

// handleGetTile returns a specific tile.
func (s *Server) handleGetTile(w http.ResponseWriter, r *http.Request) {
	tile, err := s.registry.GetTile(r.Context(), mux.Vars(r)["tileId"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatTile(tile))
}

// handleGetTilePlans returns the plans built for a tile.
func (s *Server) handleGetTilePlans(w http.ResponseWriter, r *http.Request) {
	tileID := mux.Vars(r)["tileId"]

	plans, err := s.registry.Plans(r.Context(), tileID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tile_id": tileID,
		"plans":   plans,
		"count":   len(plans),
	})
}

// handleListPlans queries the plan index.
func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePlanFilter(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	records, err := s.plans.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"plans": records,
		"count": len(records),
	})
}

// handleGetPlan returns one indexed plan.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	record, err := s.plans.Get(r.Context(), mux.Vars(r)["planId"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

// parsePlanFilter parses group, profile, max_cloud and limit.
func parsePlanFilter(r *http.Request) (output.PlanFilter, error) {
	q := r.URL.Query()
	filter := output.PlanFilter{
		GroupName: q.Get("group"),
		Profile:   q.Get("profile"),
	}

	if filter.Profile != "" {
		if _, err := domain.LookupProfile(filter.Profile); err != nil {
			return filter, err
		}
	}

	if v := q.Get("max_cloud"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			return filter, &domain.ValidationError{
				Field:      "max_cloud",
				Value:      v,
				Constraint: "0..100",
				Message:    "invalid max_cloud parameter",
			}
		}
		filter.MaxCloudCoverage = &f
	}

	if x, y := q.Get("x"), q.Get("y"); x != "" || y != "" {
		px, errX := strconv.ParseFloat(x, 64)
		py, errY := strconv.ParseFloat(y, 64)
		if errX != nil || errY != nil {
			return filter, &domain.ValidationError{
				Field:      "x,y",
				Value:      x + "," + y,
				Constraint: "numeric pair",
				Message:    "x and y must both be numbers",
			}
		}
		filter.Point = &[2]float64{px, py}
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPlanLimit {
			return filter, &domain.ValidationError{
				Field:      "limit",
				Value:      v,
				Constraint: fmt.Sprintf("1..%d", maxPlanLimit),
				Message:    "invalid limit parameter",
			}
		}
		filter.Limit = n
	}

	return filter, nil
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncService == nil {
		s.writeError(w, http.StatusNotFound, "Sync service not available")
		return
	}

	result, err := s.syncService.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(int(application.SyncCooldown/time.Second)))
			s.writeError(w, http.StatusTooManyRequests, "Sync rate limit exceeded, try again later")
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleOpenAPI returns the OpenAPI document as JSON.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := openAPIJSON()
	if err != nil {
		s.logger.Error("failed to render OpenAPI document", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

// handleOpenAPIYAML returns the embedded OpenAPI document unchanged.
func (s *Server) handleOpenAPIYAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPIDocument)
}

// formatTile formats a tile for JSON output.
func formatTile(t *domain.Tile) map[string]interface{} {
	m := map[string]interface{}{
		"id":           t.ID,
		"path":         t.Path,
		"group_name":   t.GroupName,
		"product_name": t.ProductName,
		"status":       t.Status,
		"ready":        t.IsReady(),
		"profiles":     t.Profiles(),
		"plan_count":   t.PlanCount(),
		"loaded_at":    t.LoadedAt,
	}
	if !t.BuiltAt.IsZero() {
		m["built_at"] = t.BuiltAt
	}
	if t.Error != "" {
		m["error"] = t.Error
	}
	return m
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr), errors.Is(err, domain.ErrUnknownProfile):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with the status statusForError assigns.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		s.writeError(w, status, validationErr.Message)
		return
	}
	s.writeError(w, status, err.Error())
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
