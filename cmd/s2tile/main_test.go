package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jobrunner/s2tile/internal/config"
	"github.com/jobrunner/s2tile/internal/domain"
	"github.com/jobrunner/s2tile/internal/domain/domaintest"
)

func testBuildConfig() config.BuildConfig {
	return config.BuildConfig{
		CacheSize:   8,
		Concurrency: 2,
		Profiles:    []string{domain.Profile20m},
		WorldFiles:  true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWritePlanJSON(t *testing.T) {
	var buf bytes.Buffer
	plan := &domain.BuildPlan{Profile: domain.Profile20m, SpatialReference: 32632}

	require.NoError(t, writePlan(&buf, plan, "json"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "20m", got["profile"])
	assert.Equal(t, float64(32632), got["spatialReference"])
	assert.Contains(t, buf.String(), "\n  \"profile\"")
}

func TestWritePlanYAML(t *testing.T) {
	var buf bytes.Buffer
	plan := &domain.BuildPlan{Profile: domain.Profile10m, SpatialReference: 32733}

	require.NoError(t, writePlan(&buf, plan, "yaml"))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "10m", got["profile"])
	assert.Equal(t, 32733, got["spatialReference"])
}

func TestWritePlanUnknownFormat(t *testing.T) {
	err := writePlan(io.Discard, &domain.BuildPlan{}, "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestBuildPlanFromDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	root := "/data/tiles/32/T/QM/2020/1/1/0"
	_, err := domaintest.WriteTile(fs, root, domaintest.DefaultMetadata(), domaintest.T32TQMSidecar)
	require.NoError(t, err)

	plan, err := buildPlan(context.Background(), fs, testBuildConfig(), root, domain.Profile20m, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, domain.Profile20m, plan.Profile)
	assert.Equal(t, 32632, plan.SpatialReference)
	assert.NotEmpty(t, plan.WorldFiles)
}

func TestBuildPlanUnknownProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	root := "/data/T32TQM"
	_, err := domaintest.WriteTile(fs, root, domaintest.DefaultMetadata(), "")
	require.NoError(t, err)

	_, err = buildPlan(context.Background(), fs, testBuildConfig(), root, "60m", discardLogger())
	assert.ErrorIs(t, err, domain.ErrUnknownProfile)
}

func TestRunBatchDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, root := range []string{"/data/T32TQM", "/data/T33UUP"} {
		_, err := domaintest.WriteTile(fs, root, domaintest.DefaultMetadata(), domaintest.T32TQMSidecar)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	opts := batchOptions{Profiles: []string{domain.Profile10m, domain.Profile20m}, Concurrency: 1}
	require.NoError(t, runBatchDir(context.Background(), fs, "/data", testBuildConfig(), opts, &buf, discardLogger()))

	out := buf.String()
	assert.Contains(t, out, "TILE")
	assert.Contains(t, out, "T32TQM")
	assert.Contains(t, out, "T33UUP")
	assert.Equal(t, 2, strings.Count(out, string(domain.TileStatusReady)))
}

func TestRunBatchDirReportsFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := domaintest.WriteTile(fs, "/data/T32TQM", domaintest.DefaultMetadata(), domaintest.T32TQMSidecar)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/data/broken/metadata.xml", []byte("<not-xml"), 0o644))

	var buf bytes.Buffer
	err = runBatchDir(context.Background(), fs, "/data", testBuildConfig(), batchOptions{}, &buf, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 tiles failed")
	assert.Contains(t, buf.String(), "broken")
}

func TestRunBatchDirInvalidProfile(t *testing.T) {
	err := runBatchDir(context.Background(), afero.NewMemMapFs(), "/data", testBuildConfig(),
		batchOptions{Profiles: []string{"60m"}}, io.Discard, discardLogger())
	assert.Error(t, err)
}

func TestPrintProfiles(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printProfiles(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "PROFILE"))
	assert.True(t, strings.HasPrefix(lines[1], "10m"))
	assert.Contains(t, lines[1], "B02,B03,B04,B08")
	assert.Contains(t, lines[2], "Composite10Bands.rft.xml")
	assert.Contains(t, lines[2], "B00,")
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "tile", "T32TQM")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "T32TQM", entry["tile"])
	assert.True(t, strings.HasSuffix(entry["time"].(string), "Z"))

	buf.Reset()
	setupLogger(config.LoggingConfig{Level: "debug", Format: "text"}, &buf).Debug("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, buf.String(), "s2tile dev")
	assert.Contains(t, buf.String(), "Commit:")
}
