package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jobrunner/s2tile/internal/app"
	"github.com/jobrunner/s2tile/internal/config"
	"github.com/jobrunner/s2tile/internal/domain"
)

var buildCmd = &cobra.Command{
	Use:   "build <metadata.xml | tile directory>",
	Short: "Assemble the build plan of one tile",
	Example: `  s2tile build tiles/32/T/QM/2020/1/1/0/metadata.xml --profile 20c
  s2tile build tiles/32/T/QM/2020/1/1/0 --output yaml --no-world-files`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringP("profile", "p", domain.Profile20m, "resolution profile (10m, 20m, 20c)")
	buildCmd.Flags().StringP("output", "o", "json", "output format (json, yaml)")
	buildCmd.Flags().Bool("no-world-files", false, "do not write world files next to the band images")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	profile, _ := cmd.Flags().GetString("profile")
	format, _ := cmd.Flags().GetString("output")
	noWorldFiles, _ := cmd.Flags().GetBool("no-world-files")

	buildCfg := cfg.Build
	buildCfg.WorldFiles = buildCfg.WorldFiles && !noWorldFiles

	plan, err := buildPlan(cmd.Context(), afero.NewOsFs(), buildCfg, args[0], profile, logger)
	if err != nil {
		return err
	}
	return writePlan(cmd.OutOrStdout(), plan, format)
}

// buildPlan assembles one plan. A tile directory resolves to its metadata.xml.
func buildPlan(ctx context.Context, fs afero.Fs, cfg config.BuildConfig, path, profile string, logger *slog.Logger) (*domain.BuildPlan, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if info, err := fs.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, domain.MetadataFilename)
	}

	pipeline, err := app.NewPipeline(fs, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.Assembler.Assemble(ctx, path, profile)
}

// writePlan encodes v as indented JSON or as YAML with the same field names.
func writePlan(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)

	case "yaml":
		// Round-trip through JSON so YAML keys follow the json tags and
		// the footprint keeps its GeoJSON shape.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()

	default:
		return fmt.Errorf("unknown output format %q (json, yaml)", format)
	}
}
