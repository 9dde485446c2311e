package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/estuary-stats/internal/config"
	"github.com/couchcryptid/estuary-stats/internal/domain"
	"github.com/couchcryptid/estuary-stats/internal/observability"
	"github.com/couchcryptid/estuary-stats/internal/stats"
)

// SurveyLoader reads the workbook and returns the derived survey.
type SurveyLoader interface {
	Load(ctx context.Context) (*domain.Survey, error)
}

// ArtifactRenderer writes plots and reports for fitted models.
type ArtifactRenderer interface {
	DiagnosticPlots(name string, d *stats.Diagnostics) ([]string, error)
	MarginalPlot(name string, g *stats.MarginalGrid) (string, error)
	FactorEffectsPlot(name, response, focal string, effects []stats.LevelEffect) (string, error)
	OrdinationPlot(name string, o *stats.Ordination) (string, error)
	WriteReport(filename, content string) (string, error)
}

// ModelResult is one fitted model with the artifacts drawn from it. A
// failed fit carries Err and nothing else; the run continues without it.
type ModelResult struct {
	Name      string
	Fit       *stats.Fit
	Summary   *stats.Summary
	Marginals []*stats.MarginalGrid
	Effects   map[string][]stats.LevelEffect
	Diag      *stats.Diagnostics

	// Excluded and Shifts report the influence refit: the rows left out
	// and the coefficient changes that caused.
	Excluded []int
	Shifts   []stats.CoefShift

	Notes []string
	Err   error
}

// Result is the outcome of one analysis run.
type Result struct {
	Survey     *domain.Survey
	Models     []*ModelResult
	TaxaModels []*ModelResult
	Ordination *stats.Ordination
	Artifacts  []string
	ReportPath string
	Failed     int
	Elapsed    time.Duration
}

// Pipeline orchestrates the load-fit-render run.
type Pipeline struct {
	loader   SurveyLoader
	renderer ArtifactRenderer
	suite    []ModelPlan
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Pipeline over the given stages and observability.
func New(loader SurveyLoader, renderer ArtifactRenderer, suite []ModelPlan, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		loader:   loader,
		renderer: renderer,
		suite:    suite,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes one full analysis: load the survey, fit every planned
// model, fit the per-taxon models, ordinate the composition, and write
// plots and the report. Individual model failures are recorded and
// counted, not fatal; loading and rendering failures are.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	survey, err := p.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load survey: %w", err)
	}
	p.metrics.ObservationsLoaded.Set(float64(len(survey.Observations)))
	p.metrics.WorkbookRowsDropped.Add(float64(survey.DroppedRows))

	frame, err := survey.Frame()
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}

	res := &Result{Survey: survey}
	for _, plan := range p.suite {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mr := p.runModel(frame, plan)
		if mr.Err != nil {
			res.Failed++
		}
		res.Models = append(res.Models, mr)
	}

	taxa, err := p.fitTaxa(ctx, frame)
	if err != nil {
		return nil, err
	}
	for _, mr := range taxa {
		if mr.Err != nil {
			res.Failed++
		}
	}
	res.TaxaModels = taxa

	res.Ordination = p.ordinate(frame)

	if err := p.render(res); err != nil {
		return nil, fmt.Errorf("render artifacts: %w", err)
	}

	path, err := p.renderer.WriteReport(reportFilename, p.buildReport(res))
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	res.ReportPath = path

	res.Elapsed = time.Since(start)
	p.logger.Info("analysis finished",
		"models", len(res.Models)+len(res.TaxaModels),
		"failed", res.Failed,
		"artifacts", len(res.Artifacts),
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// runModel fits one plan and collects its marginal grids, level effects,
// and diagnostics. Fit errors end up in ModelResult.Err; grid and
// diagnostic errors degrade to notes so a log-domain violation on one
// curve does not discard the model.
func (p *Pipeline) runModel(frame *stats.Frame, plan ModelPlan) *ModelResult {
	mr := &ModelResult{Name: plan.Name}

	start := time.Now()
	fit, err := stats.FitModel(plan.Spec, frame, stats.FitOptions{})
	p.metrics.FitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Error("model fit failed", "model", plan.Name, "error", err)
		p.metrics.FitErrors.Inc()
		mr.Err = err
		return mr
	}
	p.metrics.FitsTotal.WithLabelValues(fit.Spec.Family.String()).Inc()
	p.metrics.FitRowsDropped.Add(float64(len(fit.DroppedRows)))
	if !fit.Converged {
		p.logger.Warn("model did not converge", "model", plan.Name, "iterations", fit.Iterations)
		p.metrics.FitsNotConverged.Inc()
	}
	if fit.RankDeficient {
		p.logger.Warn("model matrix rank deficient", "model", plan.Name)
		p.metrics.FitsRankDeficient.Inc()
	}
	mr.Fit = fit
	mr.Summary = fit.Summary()

	for _, focal := range plan.Marginals {
		g, err := fit.Marginal(focal, stats.MarginalOptions{
			Points: p.cfg.GridPoints,
			Level:  p.cfg.ConfidenceLevel,
		})
		if err != nil {
			p.logger.Warn("marginal grid failed", "model", plan.Name, "term", focal, "error", err)
			mr.Notes = append(mr.Notes, fmt.Sprintf("marginal %s: %v", focal, err))
			continue
		}
		mr.Marginals = append(mr.Marginals, g)
	}
	for _, focal := range plan.Levels {
		effects, err := fit.FactorEffects(focal, stats.MarginalOptions{Level: p.cfg.ConfidenceLevel})
		if err != nil {
			p.logger.Warn("level effects failed", "model", plan.Name, "term", focal, "error", err)
			mr.Notes = append(mr.Notes, fmt.Sprintf("levels %s: %v", focal, err))
			continue
		}
		if mr.Effects == nil {
			mr.Effects = make(map[string][]stats.LevelEffect)
		}
		mr.Effects[focal] = effects
	}

	diag, err := fit.Diagnostics()
	if err != nil {
		p.logger.Warn("diagnostics failed", "model", plan.Name, "error", err)
		mr.Notes = append(mr.Notes, fmt.Sprintf("diagnostics: %v", err))
	} else {
		mr.Diag = diag
		if plan.Influence && len(diag.HighInfluence) > 0 {
			p.influenceRefit(mr, fit, diag.HighInfluence)
		}
	}

	p.logger.Info("model fitted",
		"model", plan.Name,
		"formula", fit.Spec.Formula(),
		"n", fit.N,
		"edf", fit.EDF,
		"deviance_explained", fit.DevianceExplained,
	)
	return mr
}

// influenceRefit refits without the flagged rows and records how the
// coefficients moved.
func (p *Pipeline) influenceRefit(mr *ModelResult, fit *stats.Fit, excluded []int) {
	refit, err := fit.RefitExcluding(excluded)
	if err != nil {
		p.logger.Warn("influence refit failed", "model", mr.Name, "error", err)
		mr.Notes = append(mr.Notes, fmt.Sprintf("influence refit: %v", err))
		return
	}
	mr.Excluded = excluded
	mr.Shifts = stats.CompareFits(fit, refit)
	p.logger.Info("influence refit", "model", mr.Name, "excluded_rows", len(excluded))
}

// fitTaxa fits the per-taxon models, at most cfg.FitWorkers at a time.
func (p *Pipeline) fitTaxa(ctx context.Context, frame *stats.Frame) ([]*ModelResult, error) {
	plans := TaxaPlans()
	out := make([]*ModelResult, len(plans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.FitWorkers)
	for i, plan := range plans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = p.runModel(frame, plan)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ordinate projects the taxon counts onto their first two principal
// axes. Failure here is a warning: composition plots are a side product.
func (p *Pipeline) ordinate(frame *stats.Frame) *stats.Ordination {
	labels, _ := frame.Factor(domain.ColEvent)
	ord, err := stats.Ordinate(frame, domain.Taxa(), labels, stats.TransformLog1p)
	if err != nil {
		p.logger.Warn("ordination failed", "error", err)
		return nil
	}
	return ord
}

// render writes the plot artifacts for every successful model.
func (p *Pipeline) render(res *Result) error {
	for _, mr := range res.Models {
		if mr.Err != nil {
			continue
		}
		if mr.Diag != nil {
			paths, err := p.renderer.DiagnosticPlots(mr.Name, mr.Diag)
			if err != nil {
				return err
			}
			res.Artifacts = append(res.Artifacts, paths...)
		}
		for _, g := range mr.Marginals {
			path, err := p.renderer.MarginalPlot(fmt.Sprintf("%s_%s", mr.Name, g.Term), g)
			if err != nil {
				return err
			}
			res.Artifacts = append(res.Artifacts, path)
		}
		for _, focal := range sortedKeys(mr.Effects) {
			path, err := p.renderer.FactorEffectsPlot(
				fmt.Sprintf("%s_%s", mr.Name, focal), mr.Fit.Spec.Response, focal, mr.Effects[focal])
			if err != nil {
				return err
			}
			res.Artifacts = append(res.Artifacts, path)
		}
	}
	if res.Ordination != nil {
		path, err := p.renderer.OrdinationPlot("taxa", res.Ordination)
		if err != nil {
			return err
		}
		res.Artifacts = append(res.Artifacts, path)
	}
	p.metrics.PlotsRendered.Add(float64(len(res.Artifacts)))
	return nil
}

func sortedKeys(m map[string][]stats.LevelEffect) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
