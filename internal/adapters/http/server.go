// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jobrunner/s2tile/internal/application"
	"github.com/jobrunner/s2tile/internal/config"
	"github.com/jobrunner/s2tile/internal/ports/input"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

// Server wraps the HTTP server with application handlers.
type Server struct {
	server      *http.Server
	router      *mux.Router
	builder     input.TileBuilder
	registry    input.TileRegistry
	health      input.HealthChecker
	syncService *application.SyncService
	plans       output.PlanStore
	logger      *slog.Logger
	config      config.ServerConfig
	buildRoot   string // on-demand builds are restricted to this tree
}

// Options holds the optional collaborators of the server.
type Options struct {
	SyncService *application.SyncService // enables POST /api/v1/sync
	Plans       output.PlanStore         // enables GET /api/v1/plans
	BuildRoot   string                   // base of ?path= in /api/v1/build
	Middleware  []mux.MiddlewareFunc     // applied after logging and recovery
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg config.ServerConfig,
	builder input.TileBuilder,
	registry input.TileRegistry,
	health input.HealthChecker,
	logger *slog.Logger,
	opts Options,
) *Server {
	s := &Server{
		builder:     builder,
		registry:    registry,
		health:      health,
		syncService: opts.SyncService,
		plans:       opts.Plans,
		logger:      logger,
		config:      cfg,
		buildRoot:   opts.BuildRoot,
	}

	s.router = s.setupRoutes(opts.Middleware)

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(extra []mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "Route not found")
	})
	var notAllowed http.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	if s.config.CORS.Enabled() {
		// Preflight requests match no GET/POST route.
		notAllowed = s.corsMiddleware(notAllowed)
	}
	r.MethodNotAllowedHandler = notAllowed

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(extra...)

	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Catalog endpoints
	api.HandleFunc("/profiles", s.handleListProfiles).Methods(http.MethodGet)
	api.HandleFunc("/bands", s.handleListBands).Methods(http.MethodGet)

	// On-demand build
	api.HandleFunc("/build", s.handleBuild).Methods(http.MethodGet)

	// Tile endpoints
	api.HandleFunc("/tiles", s.handleListTiles).Methods(http.MethodGet)
	api.HandleFunc("/tiles/{tileId}", s.handleGetTile).Methods(http.MethodGet)
	api.HandleFunc("/tiles/{tileId}/plans", s.handleGetTilePlans).Methods(http.MethodGet)

	// Plan index (only if a store is configured)
	if s.plans != nil {
		api.HandleFunc("/plans", s.handleListPlans).Methods(http.MethodGet)
		api.HandleFunc("/plans/{planId}", s.handleGetPlan).Methods(http.MethodGet)
	}

	// Manual sync (only with a sync service)
	if s.syncService != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	}

	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", s.handleOpenAPIYAML).Methods(http.MethodGet)

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the root handler, for use behind a TLS listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// RequestIDHeader carries the request ID; an incoming value is kept.
const RequestIDHeader = "X-Request-ID"

// loggingMiddleware assigns a request ID and logs every request.
// Health checks are logged at debug level.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		level := slog.LevelInfo
		if strings.HasPrefix(r.URL.Path, "/health") {
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware turns a handler panic into a JSON 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					"error", rec,
					"path", r.URL.Path,
					"request_id", w.Header().Get(RequestIDHeader),
				)
				s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
