// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	httpAdapter "github.com/jobrunner/s2tile/internal/adapters/http"
	"github.com/jobrunner/s2tile/internal/adapters/metadata"
	"github.com/jobrunner/s2tile/internal/adapters/metrics"
	"github.com/jobrunner/s2tile/internal/adapters/planstore"
	"github.com/jobrunner/s2tile/internal/adapters/sidecar"
	"github.com/jobrunner/s2tile/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/s2tile/internal/adapters/tls"
	"github.com/jobrunner/s2tile/internal/adapters/watcher"
	"github.com/jobrunner/s2tile/internal/adapters/worldfile"
	"github.com/jobrunner/s2tile/internal/application"
	"github.com/jobrunner/s2tile/internal/config"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "s2tile"

// Pipeline is the build path shared by the server and the CLI.
type Pipeline struct {
	Cache     *metadata.DocumentCache
	Assembler *application.Assembler
}

// NewPipeline wires the resolver, document cache, sidecar reader and
// world-file writer into an assembler. metrics may be nil.
func NewPipeline(fs afero.Fs, cfg config.BuildConfig, m output.MetricsCollector, logger *slog.Logger) (*Pipeline, error) {
	cache, err := metadata.NewDocumentCache(metadata.NewParser(fs), cfg.CacheSize, m, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing document cache: %w", err)
	}

	var georef output.GeoreferenceWriter
	if cfg.WorldFiles {
		georef = worldfile.NewWriter(fs, logger)
	}

	return &Pipeline{
		Cache: cache,
		Assembler: application.NewAssembler(
			metadata.NewNamespaceResolver(fs),
			cache,
			sidecar.NewReader(fs),
			georef,
			m,
			logger,
		),
	}, nil
}

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Fs            afero.Fs
	Storage       output.ObjectStorage
	Pipeline      *Pipeline
	PlanStore     *planstore.Store
	Registry      *application.TileRegistry
	SyncService   *application.SyncService
	HealthService *application.HealthService
	HTTPServer    *httpAdapter.Server
	TLSServer     *tlsAdapter.Server
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector
	MetricsServer *metrics.Server
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		Fs:     afero.NewOsFs(),
	}
	localPath := cfg.Storage.AbsLocalPath()

	// Initialize metrics
	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	var middleware []mux.MiddlewareFunc
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector(MetricsNamespace)
		app.MetricsServer = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		metricsCollector = app.Metrics
		middleware = append(middleware, app.Metrics.Middleware)
	}

	// Initialize storage adapter
	store, err := initStorage(ctx, app.Fs, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	// Initialize build pipeline
	app.Pipeline, err = NewPipeline(app.Fs, cfg.Build, metricsCollector, logger)
	if err != nil {
		return nil, err
	}

	// Initialize plan index
	var plans output.PlanStore
	if cfg.Index.Enabled {
		app.PlanStore, err = planstore.Open(ctx, cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("opening plan index: %w", err)
		}
		plans = app.PlanStore
	}

	// Initialize tile registry
	app.Registry = application.NewTileRegistry(
		app.Pipeline.Assembler,
		app.Pipeline.Cache,
		plans,
		app.Storage,
		app.Fs,
		metricsCollector,
		logger,
		application.RegistryConfig{
			Profiles:    cfg.Build.Profiles,
			LocalPath:   localPath,
			Concurrency: cfg.Build.Concurrency,
		},
	)

	if cfg.Sync.Enabled {
		app.SyncService = application.NewSyncService(app.Registry, cfg.Sync.Interval, logger)
	}

	// Initialize health service
	app.HealthService = application.NewHealthService(app.Registry, app.Pipeline.Cache)

	// Initialize HTTP server
	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.Pipeline.Assembler,
		app.Registry,
		app.HealthService,
		logger,
		httpAdapter.Options{
			SyncService: app.SyncService,
			Plans:       plans,
			BuildRoot:   localPath,
			Middleware:  middleware,
		},
	)

	// Initialize TLS server if enabled
	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(cfg.TLS, cfg.Server, app.HTTPServer.Handler(), logger)
		if err != nil {
			app.closeStore()
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Initialize file watcher for hot-reload
	if cfg.Watch.Enabled && !cfg.Storage.IsRemote() {
		w, err := watcher.New(
			watcher.Config{
				Roots:    []string{localPath},
				Debounce: cfg.Watch.Debounce,
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start starts all application components and blocks serving requests.
func (a *App) Start(ctx context.Context) error {
	if err := a.Registry.LoadAll(ctx); err != nil {
		a.Logger.Warn("failed to load tiles", "error", err)
	}

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	if a.SyncService != nil {
		a.SyncService.Start(ctx)
	}

	if a.MetricsServer != nil {
		go func() {
			if err := a.MetricsServer.Start(); err != nil {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	var err error
	if a.TLSServer != nil {
		if err = a.TLSServer.ManageCertificates(ctx); err != nil {
			return err
		}
		err = a.TLSServer.ListenAndServe()
	} else {
		err = a.HTTPServer.Start()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	if a.SyncService != nil {
		a.SyncService.Stop()
	}

	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("TLS server shutdown error", "error", err)
		}
	} else if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	a.closeStore()
	return nil
}

func (a *App) closeStore() {
	if a.PlanStore == nil {
		return
	}
	if err := a.PlanStore.Close(); err != nil {
		a.Logger.Error("failed to close plan index", "error", err)
	}
}

// handleFileEvent rebuilds or unloads the tile a watcher event refers to.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("tile event", "path", event.Path, "operation", event.Operation.String())

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		return a.Registry.ReloadTile(ctx, event.Path)

	case watcher.OpDelete:
		if err := a.Registry.UnloadPath(ctx, event.Path); err != nil {
			a.Logger.Warn("failed to unload deleted tile", "path", event.Path, "error", err)
		}
		return nil
	}

	return nil
}

// initStorage initializes the appropriate storage adapter. Remote adapters
// download into fs.
func initStorage(ctx context.Context, fs afero.Fs, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(fs, cfg.AbsLocalPath()), nil

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, fs, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			RequesterPays:   cfg.S3.RequesterPays,
		})

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(fs, storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case output.StorageTypeHTTP:
		return storage.NewHTTPStorage(fs, storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
