package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/s2tile/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build all tiles from storage and serve the REST API",
	Args:  cobra.NoArgs,
	RunE:  runServer,
}

func init() {
	f := serveCmd.Flags()

	// Server flags
	f.String("host", "0.0.0.0", "server host")
	f.Int("port", 8080, "server port")
	f.Bool("tls", false, "enable TLS")
	f.StringSlice("tls-domains", nil, "TLS domains")
	f.String("tls-email", "", "TLS email for Let's Encrypt")
	f.StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")

	// Storage flags
	f.String("storage-type", "local", "storage type (local, s3, azure, http)")
	f.String("storage-path", "./data", "tile tree (local) or download cache (remote)")

	// Build flags
	f.StringSlice("profiles", nil, "resolution profiles built per tile (default: all)")
	f.Int("concurrency", 4, "parallel tile builds")
	f.String("index", "", "plan index database (enables the plan index)")

	bind := map[string]string{
		"server.host":                 "host",
		"server.port":                 "port",
		"tls.enabled":                 "tls",
		"tls.domains":                 "tls-domains",
		"tls.email":                   "tls-email",
		"server.cors.allowed_origins": "cors",
		"storage.type":                "storage-type",
		"storage.local_path":          "storage-path",
		"build.profiles":              "profiles",
		"build.concurrency":           "concurrency",
		"index.path":                  "index",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("index") {
		viper.Set("index.enabled", true)
	}

	cfg, logger, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}

	logger.Info("starting s2tile",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage_type", cfg.Storage.Type,
		"profiles", cfg.Build.Profiles,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address())
		if err := application.Start(ctx); err != nil {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case runErr = <-serverErr:
		logger.Error("server error", "error", runErr)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down server")
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return runErr
}
