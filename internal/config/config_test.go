package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWorkbook = "testdata/survey.xlsx"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SURVEY_WORKBOOK", testWorkbook)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testWorkbook, cfg.WorkbookPath)
	assert.Equal(t, "Samples", cfg.SamplesSheet)
	assert.Equal(t, "Stations", cfg.StationsSheet)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 100, cfg.GridPoints)
	assert.Equal(t, 0.95, cfg.ConfidenceLevel)
	assert.Equal(t, 1, cfg.FitWorkers)
	assert.Equal(t, 0, cfg.BaselineYear)
	assert.Empty(t, cfg.MetricsFile)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("SURVEY_WORKBOOK", "/data/penobscot-2024.xlsx")
	t.Setenv("SURVEY_SAMPLES_SHEET", "Tows")
	t.Setenv("SURVEY_STATIONS_SHEET", "Sites")
	t.Setenv("OUTPUT_DIR", "/tmp/analysis")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("GRID_POINTS", "250")
	t.Setenv("CONFIDENCE_LEVEL", "0.9")
	t.Setenv("FIT_WORKERS", "4")
	t.Setenv("BASELINE_YEAR", "2019")
	t.Setenv("METRICS_FILE", "/var/lib/node_exporter/estuary.prom")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/penobscot-2024.xlsx", cfg.WorkbookPath)
	assert.Equal(t, "Tows", cfg.SamplesSheet)
	assert.Equal(t, "Sites", cfg.StationsSheet)
	assert.Equal(t, "/tmp/analysis", cfg.OutputDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 250, cfg.GridPoints)
	assert.Equal(t, 0.9, cfg.ConfidenceLevel)
	assert.Equal(t, 4, cfg.FitWorkers)
	assert.Equal(t, 2019, cfg.BaselineYear)
	assert.Equal(t, "/var/lib/node_exporter/estuary.prom", cfg.MetricsFile)
}

func TestLoad_MissingWorkbook(t *testing.T) {
	t.Setenv("SURVEY_WORKBOOK", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SURVEY_WORKBOOK")
}

func TestLoad_SheetCollision(t *testing.T) {
	t.Setenv("SURVEY_WORKBOOK", testWorkbook)
	t.Setenv("SURVEY_SAMPLES_SHEET", "Data")
	t.Setenv("SURVEY_STATIONS_SHEET", "Data")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoad_InvalidGridPoints(t *testing.T) {
	for _, bad := range []string{"1", "0", "-5", "5000", "many"} {
		t.Run(bad, func(t *testing.T) {
			t.Setenv("SURVEY_WORKBOOK", testWorkbook)
			t.Setenv("GRID_POINTS", bad)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "GRID_POINTS")
		})
	}
}

func TestLoad_InvalidConfidenceLevel(t *testing.T) {
	for _, bad := range []string{"0", "1", "1.5", "-0.9", "wide"} {
		t.Run(bad, func(t *testing.T) {
			t.Setenv("SURVEY_WORKBOOK", testWorkbook)
			t.Setenv("CONFIDENCE_LEVEL", bad)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "CONFIDENCE_LEVEL")
		})
	}
}

func TestLoad_InvalidFitWorkers(t *testing.T) {
	for _, bad := range []string{"0", "-1", "128", "all"} {
		t.Run(bad, func(t *testing.T) {
			t.Setenv("SURVEY_WORKBOOK", testWorkbook)
			t.Setenv("FIT_WORKERS", bad)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "FIT_WORKERS")
		})
	}
}

func TestLoad_InvalidBaselineYear(t *testing.T) {
	for _, bad := range []string{"1200", "2500", "first"} {
		t.Run(bad, func(t *testing.T) {
			t.Setenv("SURVEY_WORKBOOK", testWorkbook)
			t.Setenv("BASELINE_YEAR", bad)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "BASELINE_YEAR")
		})
	}
}
