// Command analyze runs the full survey analysis: load the workbook, fit
// the model suite and the per-taxon models, and write plots and the
// report under OUTPUT_DIR. Configuration is entirely environment-driven;
// SURVEY_WORKBOOK is required.
//
// Exit codes: 0 on a clean run, 1 on a fatal error, 2 when the run
// finished but one or more models failed to fit.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/estuary-stats/internal/adapter/render"
	"github.com/couchcryptid/estuary-stats/internal/adapter/xlsx"
	"github.com/couchcryptid/estuary-stats/internal/config"
	"github.com/couchcryptid/estuary-stats/internal/observability"
	"github.com/couchcryptid/estuary-stats/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	loader := xlsx.NewLoader(cfg, logger)
	renderer := render.NewRenderer(cfg, logger)

	p := pipeline.New(loader, renderer, pipeline.DefaultSuite(), cfg, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := p.Run(ctx)
	writeMetrics(cfg, logger, metrics)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}

	logger.Info("analysis complete",
		"report", res.ReportPath,
		"artifacts", len(res.Artifacts),
		"failed_models", res.Failed,
		"elapsed", res.Elapsed)

	if res.Failed > 0 {
		os.Exit(2)
	}
}

// writeMetrics exports the run's counters as a Prometheus textfile when
// METRICS_FILE is set. Export failures are logged, never fatal.
func writeMetrics(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Error("metrics textfile write error", "error", err, "path", cfg.MetricsFile)
		return
	}
	logger.Info("metrics written", "path", cfg.MetricsFile)
}
