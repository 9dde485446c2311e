//go:build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/estuary-stats/internal/adapter/render"
	"github.com/couchcryptid/estuary-stats/internal/adapter/xlsx"
	"github.com/couchcryptid/estuary-stats/internal/config"
	"github.com/couchcryptid/estuary-stats/internal/mockdata"
	"github.com/couchcryptid/estuary-stats/internal/observability"
	"github.com/couchcryptid/estuary-stats/internal/pipeline"
)

func findModel(t *testing.T, models []*pipeline.ModelResult, name string) *pipeline.ModelResult {
	t.Helper()
	for _, mr := range models {
		if mr.Name == name {
			return mr
		}
	}
	t.Fatalf("no model named %s", name)
	return nil
}

// TestAnalysisPipeline_EndToEnd drives the whole stack: generate a
// workbook, load it through the xlsx adapter, fit the default suite, and
// render every artifact to disk.
func TestAnalysisPipeline_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dir := t.TempDir()
	workbook := filepath.Join(dir, "survey.xlsx")
	obs, stations := mockdata.Generate(mockdata.Params{Seed: 7})
	require.NoError(t, xlsx.WriteWorkbook(workbook, "Samples", "Stations", obs, stations))

	cfg := &config.Config{
		WorkbookPath:    workbook,
		SamplesSheet:    "Samples",
		StationsSheet:   "Stations",
		OutputDir:       filepath.Join(dir, "out"),
		LogLevel:        "error",
		LogFormat:       "text",
		GridPoints:      60,
		ConfidenceLevel: 0.95,
		FitWorkers:      2,
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	p := pipeline.New(
		xlsx.NewLoader(cfg, logger),
		render.NewRenderer(cfg, logger),
		pipeline.DefaultSuite(),
		cfg,
		logger,
		metrics,
	)

	res, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, res.Survey.Observations, len(obs))

	// Every artifact landed on disk with content.
	require.NotEmpty(t, res.Artifacts)
	for _, artifact := range res.Artifacts {
		info, err := os.Stat(artifact)
		require.NoError(t, err, artifact)
		assert.Greater(t, info.Size(), int64(0), artifact)
	}

	report, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	text := string(report)
	assert.Contains(t, text, "## zoop_gaussian")
	assert.Contains(t, text, "## Taxon models")
	assert.Contains(t, text, "Marginal effect of salinity_psu")

	// The planted freshet row should stand out and trigger the refit.
	zoop := findModel(t, res.Models, "zoop_gaussian")
	assert.NotEmpty(t, zoop.Excluded, "planted outlier should be flagged as influential")

	metricsPath := filepath.Join(dir, "metrics.prom")
	require.NoError(t, metrics.WriteTextfile(metricsPath))
	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "estuary_fits_total"), "metrics file should carry fit counters")
}
