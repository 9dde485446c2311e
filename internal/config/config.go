package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Config holds all analysis settings, populated from environment variables.
type Config struct {
	WorkbookPath  string
	SamplesSheet  string
	StationsSheet string
	OutputDir     string
	LogLevel      string
	LogFormat     string

	// Analysis settings.
	GridPoints      int     // marginal prediction grid resolution
	ConfidenceLevel float64 // interval level for predictions, in (0, 1)
	FitWorkers      int     // parallel per-taxon fits; 1 keeps the run serial
	BaselineYear    int     // sample-event baseline; 0 selects the earliest observed year

	// MetricsFile is a Prometheus textfile path written at the end of a run.
	// Empty disables the export.
	MetricsFile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	gridPoints, err := parseIntEnv("GRID_POINTS", 100, 2, 2000)
	if err != nil {
		return nil, err
	}

	fitWorkers, err := parseIntEnv("FIT_WORKERS", 1, 1, 64)
	if err != nil {
		return nil, err
	}

	confidence, err := parseConfidenceLevel()
	if err != nil {
		return nil, err
	}

	baselineYear, err := parseBaselineYear()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		WorkbookPath:  os.Getenv("SURVEY_WORKBOOK"),
		SamplesSheet:  envOrDefault("SURVEY_SAMPLES_SHEET", "Samples"),
		StationsSheet: envOrDefault("SURVEY_STATIONS_SHEET", "Stations"),
		OutputDir:     envOrDefault("OUTPUT_DIR", "out"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		LogFormat:     envOrDefault("LOG_FORMAT", "json"),

		GridPoints:      gridPoints,
		ConfidenceLevel: confidence,
		FitWorkers:      fitWorkers,
		BaselineYear:    baselineYear,

		MetricsFile: os.Getenv("METRICS_FILE"),
	}

	if cfg.WorkbookPath == "" {
		return nil, errors.New("SURVEY_WORKBOOK is required")
	}
	if cfg.SamplesSheet == cfg.StationsSheet {
		return nil, errors.New("SURVEY_SAMPLES_SHEET and SURVEY_STATIONS_SHEET must differ")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, min, max)
	}
	return n, nil
}

func parseConfidenceLevel() (float64, error) {
	s := os.Getenv("CONFIDENCE_LEVEL")
	if s == "" {
		return 0.95, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || v >= 1 {
		return 0, errors.New("invalid CONFIDENCE_LEVEL: must be a number strictly between 0 and 1")
	}
	return v, nil
}

// parseBaselineYear accepts 0 (earliest observed year) or a plausible
// calendar year.
func parseBaselineYear() (int, error) {
	s := os.Getenv("BASELINE_YEAR")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || (n != 0 && (n < 1900 || n > 2100)) {
		return 0, errors.New("invalid BASELINE_YEAR: must be 0 or a year between 1900 and 2100")
	}
	return n, nil
}
