// Package render writes the analysis artifacts: diagnostic and marginal
// plots as PNG files, ordination biplots, and plain-text model reports.
package render

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/couchcryptid/estuary-stats/internal/config"
	"github.com/couchcryptid/estuary-stats/internal/stats"
)

var (
	pointBlue  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	lineOrange = color.RGBA{R: 230, G: 126, B: 34, A: 255}
	bandBlue   = color.RGBA{R: 31, G: 119, B: 180, A: 60}
	arrowRed   = color.RGBA{R: 178, G: 34, B: 34, A: 255}
	refGray    = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// Renderer writes plots and reports into the configured output directory.
// File names are derived from the model name passed by the caller, so
// concurrent callers must use distinct names.
type Renderer struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewRenderer(cfg *config.Config, logger *slog.Logger) *Renderer {
	return &Renderer{cfg: cfg, logger: logger}
}

func (r *Renderer) path(name string) string {
	return filepath.Join(r.cfg.OutputDir, name)
}

func (r *Renderer) ensureDir() error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir %s: %w", r.cfg.OutputDir, err)
	}
	return nil
}

// DiagnosticPlots renders the residual-vs-fitted, normal QQ, and
// scale-location panels for one fitted model and returns the paths of
// the files written.
func (r *Renderer) DiagnosticPlots(name string, d *stats.Diagnostics) ([]string, error) {
	if err := r.ensureDir(); err != nil {
		return nil, err
	}
	panels := []struct {
		suffix string
		build  func(*stats.Diagnostics) (*plot.Plot, error)
	}{
		{"residuals", residualsVsFitted},
		{"qq", normalQQ},
		{"scale_location", scaleLocation},
	}
	written := make([]string, 0, len(panels))
	for _, panel := range panels {
		p, err := panel.build(d)
		if err != nil {
			return written, fmt.Errorf("%s %s panel: %w", name, panel.suffix, err)
		}
		path := r.path(fmt.Sprintf("%s_%s.png", name, panel.suffix))
		if err := p.Save(6*vg.Inch, 4.5*vg.Inch, path); err != nil {
			return written, fmt.Errorf("save %s: %w", path, err)
		}
		written = append(written, path)
	}
	r.logger.Debug("diagnostic plots written", "model", name, "files", len(written))
	return written, nil
}

func residualsVsFitted(d *stats.Diagnostics) (*plot.Plot, error) {
	pts := make(plotter.XYs, len(d.Fitted))
	for i := range d.Fitted {
		pts[i] = plotter.XY{X: d.Fitted[i], Y: d.Pearson[i]}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Color = pointBlue
	sc.GlyphStyle.Radius = vg.Points(2.5)

	lo, hi := xSpan(pts)
	zero, err := dashedLine(lo, 0, hi, 0)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = "Residuals vs fitted"
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Fitted value"
	p.Y.Label.Text = "Pearson residual"
	p.Add(plotter.NewGrid(), sc, zero)
	return p, nil
}

func normalQQ(d *stats.Diagnostics) (*plot.Plot, error) {
	obs := append([]float64(nil), d.StdPearson...)
	sort.Float64s(obs)
	n := len(obs)
	pts := make(plotter.XYs, n)
	for i, v := range obs {
		pts[i] = plotter.XY{X: distuv.UnitNormal.Quantile((float64(i) + 0.5) / float64(n)), Y: v}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Color = pointBlue
	sc.GlyphStyle.Radius = vg.Points(2.5)

	lo, hi := xSpan(pts)
	ident, err := dashedLine(lo, lo, hi, hi)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = "Normal QQ"
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Theoretical quantile"
	p.Y.Label.Text = "Standardized residual"
	p.Add(plotter.NewGrid(), sc, ident)
	return p, nil
}

func scaleLocation(d *stats.Diagnostics) (*plot.Plot, error) {
	pts := make(plotter.XYs, len(d.Fitted))
	for i := range d.Fitted {
		pts[i] = plotter.XY{X: d.Fitted[i], Y: math.Sqrt(math.Abs(d.StdPearson[i]))}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	sc.GlyphStyle.Color = pointBlue
	sc.GlyphStyle.Radius = vg.Points(2.5)

	p := plot.New()
	p.Title.Text = "Scale-location"
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Fitted value"
	p.Y.Label.Text = "√|standardized residual|"
	p.Add(plotter.NewGrid(), sc)
	return p, nil
}

// MarginalPlot renders a marginal prediction curve with its confidence
// band on the response scale.
func (r *Renderer) MarginalPlot(name string, g *stats.MarginalGrid) (string, error) {
	if len(g.Points) == 0 {
		return "", fmt.Errorf("marginal grid for %s has no points", g.Term)
	}
	if err := r.ensureDir(); err != nil {
		return "", err
	}

	// Band polygon walks the upper edge left to right, then the lower
	// edge back.
	band := make(plotter.XYs, 0, 2*len(g.Points))
	for _, pt := range g.Points {
		band = append(band, plotter.XY{X: pt.Value, Y: pt.Upper})
	}
	for i := len(g.Points) - 1; i >= 0; i-- {
		band = append(band, plotter.XY{X: g.Points[i].Value, Y: g.Points[i].Lower})
	}
	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return "", fmt.Errorf("%s band: %w", name, err)
	}
	poly.Color = bandBlue
	poly.LineStyle.Color = color.Transparent

	curve := make(plotter.XYs, len(g.Points))
	for i, pt := range g.Points {
		curve[i] = plotter.XY{X: pt.Value, Y: pt.Predicted}
	}
	ln, err := plotter.NewLine(curve)
	if err != nil {
		return "", fmt.Errorf("%s curve: %w", name, err)
	}
	ln.LineStyle.Color = lineOrange
	ln.LineStyle.Width = vg.Points(1.5)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Marginal effect of %s on %s", g.Term, g.Response)
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = g.Term
	p.Y.Label.Text = g.Response
	p.Add(plotter.NewGrid(), poly, ln)
	p.Legend.Add(fmt.Sprintf("prediction with %.0f%% band", g.Level*100), ln)
	p.Legend.Top = true

	path := r.path(fmt.Sprintf("%s_marginal.png", name))
	if err := p.Save(6*vg.Inch, 4.5*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	r.logger.Debug("marginal plot written", "model", name, "term", g.Term)
	return path, nil
}

// FactorEffectsPlot renders predictions at each level of a factor as a
// bar chart with the level names along the x axis.
func (r *Renderer) FactorEffectsPlot(name, response, focal string, effects []stats.LevelEffect) (string, error) {
	if len(effects) == 0 {
		return "", fmt.Errorf("no level effects for %s", focal)
	}
	if err := r.ensureDir(); err != nil {
		return "", err
	}

	values := make(plotter.Values, len(effects))
	levels := make([]string, len(effects))
	for i, e := range effects {
		values[i] = e.Predicted
		levels[i] = e.Level
	}
	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return "", fmt.Errorf("%s bars: %w", name, err)
	}
	bars.Color = pointBlue

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Predicted %s by %s", response, focal)
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = focal
	p.Y.Label.Text = response
	p.Add(plotter.NewGrid(), bars)
	p.NominalX(levels...)

	path := r.path(fmt.Sprintf("%s_levels.png", name))
	if err := p.Save(6*vg.Inch, 4.5*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	r.logger.Debug("factor effects plot written", "model", name, "term", focal)
	return path, nil
}

// OrdinationPlot renders the first two principal axes as a biplot:
// sample scores as points, column loadings as arrows from the origin.
func (r *Renderer) OrdinationPlot(name string, o *stats.Ordination) (string, error) {
	if err := r.ensureDir(); err != nil {
		return "", err
	}

	pts := make(plotter.XYs, len(o.Points))
	labs := make([]string, len(o.Points))
	labelled := false
	for i, pt := range o.Points {
		pts[i] = plotter.XY{X: pt.X, Y: pt.Y}
		labs[i] = pt.Label
		if pt.Label != "" {
			labelled = true
		}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("%s scores: %w", name, err)
	}
	sc.GlyphStyle.Color = pointBlue
	sc.GlyphStyle.Radius = vg.Points(3)

	p := plot.New()
	p.Title.Text = "Principal component ordination"
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = fmt.Sprintf("PC1 (%.1f%% of variance)", o.Explained[0]*100)
	p.Y.Label.Text = fmt.Sprintf("PC2 (%.1f%% of variance)", o.Explained[1]*100)
	p.Add(plotter.NewGrid(), sc)

	if labelled {
		labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labs})
		if err != nil {
			return "", fmt.Errorf("%s labels: %w", name, err)
		}
		for i := range labels.TextStyle {
			labels.TextStyle[i].Font.Size = vg.Points(7)
		}
		p.Add(labels)
	}

	if err := addLoadingArrows(p, pts, o); err != nil {
		return "", fmt.Errorf("%s loadings: %w", name, err)
	}

	path := r.path(fmt.Sprintf("%s_ordination.png", name))
	if err := p.Save(7*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	r.logger.Debug("ordination plot written", "model", name, "points", len(o.Points))
	return path, nil
}

// addLoadingArrows scales the column loadings to the spread of the
// scores so the arrows stay inside the cloud of points.
func addLoadingArrows(p *plot.Plot, scores plotter.XYs, o *stats.Ordination) error {
	var maxScore, maxLoad float64
	for _, pt := range scores {
		maxScore = math.Max(maxScore, math.Hypot(pt.X, pt.Y))
	}
	for _, l := range o.Loadings {
		maxLoad = math.Max(maxLoad, math.Hypot(l[0], l[1]))
	}
	if maxScore == 0 || maxLoad == 0 {
		return nil
	}
	scale := 0.8 * maxScore / maxLoad

	tips := make(plotter.XYs, 0, len(o.Loadings))
	names := make([]string, 0, len(o.Loadings))
	for j, l := range o.Loadings {
		tip := plotter.XY{X: l[0] * scale, Y: l[1] * scale}
		arrow, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, tip})
		if err != nil {
			return err
		}
		arrow.LineStyle.Color = arrowRed
		arrow.LineStyle.Width = vg.Points(1)
		p.Add(arrow)
		tips = append(tips, tip)
		names = append(names, o.Columns[j])
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: tips, Labels: names})
	if err != nil {
		return err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Font.Size = vg.Points(8)
		labels.TextStyle[i].Color = arrowRed
	}
	p.Add(labels)
	return nil
}

func dashedLine(x0, y0, x1, y1 float64) (*plotter.Line, error) {
	ln, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y0}, {X: x1, Y: y1}})
	if err != nil {
		return nil, err
	}
	ln.LineStyle.Color = refGray
	ln.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	return ln, nil
}

func xSpan(pts plotter.XYs) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, pt := range pts {
		lo = math.Min(lo, pt.X)
		hi = math.Max(hi, pt.X)
	}
	if lo > hi {
		return 0, 1
	}
	return lo, hi
}
