package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for one analysis run. Each
// Metrics owns its registry: a batch run has no scrape endpoint, so the
// registry exists to be written out as a textfile at exit, and per-instance
// registries keep the constructor safe to call repeatedly in tests.
type Metrics struct {
	registry *prometheus.Registry

	ObservationsLoaded  prometheus.Gauge
	WorkbookRowsDropped prometheus.Counter

	// Model fitting metrics.
	FitsTotal         *prometheus.CounterVec // label: family={gaussian,gamma}
	FitErrors         prometheus.Counter
	FitsNotConverged  prometheus.Counter
	FitsRankDeficient prometheus.Counter
	FitRowsDropped    prometheus.Counter
	FitDuration       prometheus.Histogram

	PlotsRendered prometheus.Counter
}

// NewMetrics creates the run's instruments on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ObservationsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "estuary",
			Name:      "observations_loaded",
			Help:      "Observations in the survey after load-time filtering.",
		}),
		WorkbookRowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estuary",
			Name:      "workbook_rows_dropped_total",
			Help:      "Workbook rows discarded for a missing or unparseable date.",
		}),
		FitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estuary",
			Name:      "fits_total",
			Help:      "Models fitted, by error family.",
		}, []string{"family"}),
		FitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estuary",
			Name:      "fit_errors_total",
			Help:      "Model fits that failed outright.",
		}),
		FitsNotConverged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estuary",
			Name:      "fits_not_converged_total",
			Help:      "Fits returned with the non-convergence flag set.",
		}),
		FitsRankDeficient: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estuary",
			Name:      "fits_rank_deficient_total",
			Help:      "Fits stabilized after a rank-deficient normal matrix.",
		}),
		FitRowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estuary",
			Name:      "fit_rows_dropped_total",
			Help:      "Rows dropped from individual fits for missing values.",
		}),
		FitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "estuary",
			Name:      "fit_duration_seconds",
			Help:      "Duration of a single model fit.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		PlotsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estuary",
			Name:      "plots_rendered_total",
			Help:      "Diagnostic and marginal plots written to the output directory.",
		}),
	}

	m.registry.MustRegister(
		m.ObservationsLoaded,
		m.WorkbookRowsDropped,
		m.FitsTotal,
		m.FitErrors,
		m.FitsNotConverged,
		m.FitsRankDeficient,
		m.FitRowsDropped,
		m.FitDuration,
		m.PlotsRendered,
	)

	return m
}

// WriteTextfile exports the run's metrics in the node-exporter textfile
// format. Batch runs have no scrape endpoint; the textfile collector picks
// the file up on its next pass.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
