package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MarginalOptions controls how a marginal effect grid is built.
type MarginalOptions struct {
	// Points is the grid size. Default 100.
	Points int
	// Level is the confidence level of the band. Default 0.95.
	Level float64
	// Min and Max bound the grid in raw predictor units. When they are
	// equal the observed range of the training rows is used.
	Min, Max float64
	// Values supplies the grid outright, overriding Points, Min and Max.
	Values []float64
}

// MarginalPoint is one evaluated point of a marginal effect curve, on the
// original response scale.
type MarginalPoint struct {
	Value     float64
	Predicted float64
	Lower     float64
	Upper     float64
}

// MarginalGrid is a marginal effect curve: the focal predictor swept over a
// grid while every other predictor sits at a typical value. Numeric
// predictors hold their training median, factors hold their reference
// level, and random intercepts are set to the population level.
type MarginalGrid struct {
	Response    string
	Term        string
	Label       string
	Level       float64
	Points      []MarginalPoint
	HeldNumeric map[string]float64
	HeldFactor  map[string]string
}

// LevelEffect is the predicted response at one factor level with the other
// predictors held at typical values.
type LevelEffect struct {
	Level     string
	Predicted float64
	Lower     float64
	Upper     float64
}

// Marginal sweeps a numeric predictor over a grid in raw units. The grid
// values pass through the term's transform, so a value outside the
// transform domain (log of zero turbidity, say) fails with a DomainError
// rather than producing a silent -Inf.
func (f *Fit) Marginal(focal string, opts MarginalOptions) (*MarginalGrid, error) {
	if f.vb == nil {
		return nil, errNoCovariance
	}
	var block *termBlock
	for _, b := range f.design.terms {
		if b.column == focal && (b.kind == kindLinear || b.kind == kindSmooth) {
			block = b
			break
		}
	}
	if block == nil {
		return nil, fmt.Errorf("marginal: %q is not a numeric term of the model", focal)
	}
	points, level, err := gridDefaults(opts)
	if err != nil {
		return nil, err
	}

	values := opts.Values
	if len(values) == 0 {
		lo, hi := opts.Min, opts.Max
		if lo == hi {
			lo, hi = f.design.observedRange(focal)
		}
		if !(hi > lo) {
			return nil, fmt.Errorf("marginal: degenerate grid range [%g,%g] for %q", lo, hi, focal)
		}
		values = linspace(lo, hi, points)
	}

	grid, heldN, heldF, err := f.design.typicalFrame(focal, len(values))
	if err != nil {
		return nil, err
	}
	if err := grid.AddNumeric(focal, values); err != nil {
		return nil, err
	}

	preds, err := f.Predict(grid, PredictOptions{Level: level})
	if err != nil {
		return nil, err
	}
	out := &MarginalGrid{
		Response:    f.Spec.Response,
		Term:        focal,
		Label:       block.label,
		Level:       level,
		HeldNumeric: heldN,
		HeldFactor:  heldF,
	}
	for i, p := range preds {
		out.Points = append(out.Points, MarginalPoint{
			Value:     values[i],
			Predicted: p.Value,
			Lower:     p.Lower,
			Upper:     p.Upper,
		})
	}
	return out, nil
}

// FactorEffects predicts the response at each level of a factor term with
// the other predictors at typical values.
func (f *Fit) FactorEffects(focal string, opts MarginalOptions) ([]LevelEffect, error) {
	if f.vb == nil {
		return nil, errNoCovariance
	}
	var block *termBlock
	for _, b := range f.design.terms {
		if b.column == focal && b.kind == kindFactor {
			block = b
			break
		}
	}
	if block == nil {
		return nil, fmt.Errorf("marginal: %q is not a factor term of the model", focal)
	}
	_, level, err := gridDefaults(opts)
	if err != nil {
		return nil, err
	}

	grid, _, _, err := f.design.typicalFrame(focal, len(block.levels))
	if err != nil {
		return nil, err
	}
	if err := grid.AddFactor(focal, block.levels); err != nil {
		return nil, err
	}
	preds, err := f.Predict(grid, PredictOptions{Level: level})
	if err != nil {
		return nil, err
	}
	out := make([]LevelEffect, len(block.levels))
	for i, p := range preds {
		out[i] = LevelEffect{Level: block.levels[i], Predicted: p.Value, Lower: p.Lower, Upper: p.Upper}
	}
	return out, nil
}

func gridDefaults(opts MarginalOptions) (points int, level float64, err error) {
	points = opts.Points
	if points == 0 {
		points = 100
	}
	if points < 2 {
		return 0, 0, fmt.Errorf("marginal: grid needs at least two points, got %d", points)
	}
	level = opts.Level
	if level == 0 {
		level = 0.95
	}
	if level <= 0 || level >= 1 {
		return 0, 0, fmt.Errorf("marginal: confidence level %g outside (0,1)", level)
	}
	return points, level, nil
}

// typicalFrame builds an n-row frame holding every model column except skip
// at its typical value. The caller adds the focal column.
func (d *design) typicalFrame(skip string, n int) (*Frame, map[string]float64, map[string]string, error) {
	grid := NewFrame(n)
	heldN := make(map[string]float64)
	heldF := make(map[string]string)
	for _, b := range d.terms {
		if b.column == "" || b.column == skip {
			continue
		}
		switch b.kind {
		case kindLinear, kindSmooth:
			m, err := d.trainingMedian(b.column)
			if err != nil {
				return nil, nil, nil, err
			}
			heldN[b.column] = m
			col := make([]float64, n)
			for i := range col {
				col[i] = m
			}
			if err := grid.AddNumeric(b.column, col); err != nil {
				return nil, nil, nil, err
			}
		case kindFactor:
			ref := b.levels[0]
			heldF[b.column] = ref
			col := make([]string, n)
			for i := range col {
				col[i] = ref
			}
			if err := grid.AddFactor(b.column, col); err != nil {
				return nil, nil, nil, err
			}
		case kindRandom:
			// Population level; the prediction path never reads the
			// column.
		}
	}
	return grid, heldN, heldF, nil
}

// trainingMedian is the median of a column over the rows the fit kept.
func (d *design) trainingMedian(name string) (float64, error) {
	col, ok := d.data.Numeric(name)
	if !ok {
		return 0, fmt.Errorf("column %q: no such numeric column", name)
	}
	vals := make([]float64, 0, len(d.rows))
	for _, r := range d.rows {
		if !math.IsNaN(col[r]) {
			vals = append(vals, col[r])
		}
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("column %q: no non-missing training values", name)
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil), nil
}

// observedRange is the raw min and max of a column over the kept rows.
func (d *design) observedRange(name string) (lo, hi float64) {
	col, _ := d.data.Numeric(name)
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, r := range d.rows {
		v := col[r]
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
