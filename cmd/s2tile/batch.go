package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jobrunner/s2tile/internal/adapters/planstore"
	"github.com/jobrunner/s2tile/internal/adapters/storage"
	"github.com/jobrunner/s2tile/internal/app"
	"github.com/jobrunner/s2tile/internal/application"
	"github.com/jobrunner/s2tile/internal/config"
	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/ports/output"
)

var batchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Build every tile below a directory",
	Long: `Builds every metadata.xml below the directory for each profile, writes the
world files and optionally records the plans in a SQLite plan index.`,
	Example: `  s2tile batch ./tiles --profiles 10m,20m --index plans.db`,
	Args:    cobra.ExactArgs(1),
	RunE:    runBatch,
}

func init() {
	batchCmd.Flags().StringSlice("profiles", nil, "resolution profiles (default: build.profiles)")
	batchCmd.Flags().String("index", "", "plan index database")
	batchCmd.Flags().Int("concurrency", 0, "parallel tile builds (default: build.concurrency)")

	rootCmd.AddCommand(batchCmd)
}

// batchOptions overrides the build configuration for one batch run.
type batchOptions struct {
	Profiles    []string
	Index       string
	Concurrency int
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var opts batchOptions
	opts.Profiles, _ = cmd.Flags().GetStringSlice("profiles")
	opts.Index, _ = cmd.Flags().GetString("index")
	opts.Concurrency, _ = cmd.Flags().GetInt("concurrency")

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runBatchDir(ctx, afero.NewOsFs(), dir, cfg.Build, opts, cmd.OutOrStdout(), logger)
}

// runBatchDir builds every tile below dir and prints one line per tile.
func runBatchDir(
	ctx context.Context,
	fs afero.Fs,
	dir string,
	cfg config.BuildConfig,
	opts batchOptions,
	w io.Writer,
	logger *slog.Logger,
) error {
	if len(opts.Profiles) > 0 {
		cfg.Profiles = opts.Profiles
	}
	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pipeline, err := app.NewPipeline(fs, cfg, nil, logger)
	if err != nil {
		return err
	}

	var plans output.PlanStore
	if opts.Index != "" {
		store, err := planstore.Open(ctx, opts.Index)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		plans = store
	}

	registry := application.NewTileRegistry(
		pipeline.Assembler,
		pipeline.Cache,
		plans,
		storage.NewLocalStorage(fs, dir),
		fs,
		nil,
		logger,
		application.RegistryConfig{
			Profiles:    cfg.Profiles,
			LocalPath:   dir,
			Concurrency: cfg.Concurrency,
		},
	)
	if err := registry.LoadAll(ctx); err != nil {
		return err
	}

	tiles, err := registry.ListTiles(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TILE\tGROUP\tSTATUS\tPLANS\tERROR")
	failed := 0
	for _, t := range tiles {
		if t.Status != domain.TileStatusReady {
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.GroupName, t.Status, t.PlanCount(), t.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d tiles failed", failed, len(tiles))
	}
	return nil
}
