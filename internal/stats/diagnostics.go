package stats

import (
	"fmt"
	"math"
	"sort"
)

// Diagnostics bundles per-observation series for residual plots and
// influence screening. Slices are indexed by fitted observation (0..N-1);
// Rows maps each back to its source frame row.
type Diagnostics struct {
	Rows []int

	Fitted     []float64
	Pearson    []float64
	Deviance   []float64
	StdPearson []float64
	Leverage   []float64
	Cook       []float64

	// HighLeverage and HighInfluence hold observation indices whose hat
	// value exceeds 2·EDF/n or whose Cook distance exceeds 4/n.
	HighLeverage  []int
	HighInfluence []int
}

// Diagnostics computes residuals, leverages, and Cook-style influence for
// every fitted observation.
func (f *Fit) Diagnostics() (*Diagnostics, error) {
	if f.vb == nil {
		return nil, errNoCovariance
	}
	d := f.design
	n := f.N
	out := &Diagnostics{
		Rows:       append([]int(nil), d.rows...),
		Fitted:     append([]float64(nil), f.Fitted...),
		Pearson:    make([]float64, n),
		Deviance:   make([]float64, n),
		StdPearson: make([]float64, n),
		Leverage:   make([]float64, n),
		Cook:       make([]float64, n),
	}

	fam := f.Spec.Family
	phi := f.Dispersion
	if phi <= 0 || math.IsNaN(phi) {
		phi = 1
	}
	levCut := 2 * f.EDF / float64(n)
	cookCut := 4 / float64(n)

	for i := 0; i < n; i++ {
		y, mu := d.y[i], f.Fitted[i]
		out.Pearson[i] = (y - mu) / math.Sqrt(fam.Variance(mu))
		out.Deviance[i] = fam.DevianceResidual(y, mu)

		// Hat value of the weighted penalized smoother:
		// h_i = w_i x_i' (X'WX+S)^-1 x_i, with (X'WX+S)^-1 = Vb/phi.
		xi := d.x.RawRowView(i)
		var q float64
		for j, xj := range xi {
			if xj == 0 {
				continue
			}
			for k, xk := range xi {
				if xk != 0 {
					q += xj * xk * f.vb.At(j, k)
				}
			}
		}
		h := f.weights[i] * q / phi
		if h < 0 {
			h = 0
		}
		if h > 1-1e-8 {
			h = 1 - 1e-8
		}
		out.Leverage[i] = h

		out.StdPearson[i] = out.Pearson[i] / math.Sqrt(phi*(1-h))
		r := out.StdPearson[i]
		out.Cook[i] = r * r * h / (f.EDF * (1 - h))

		if h > levCut {
			out.HighLeverage = append(out.HighLeverage, i)
		}
		if out.Cook[i] > cookCut {
			out.HighInfluence = append(out.HighInfluence, i)
		}
	}
	return out, nil
}

// RefitExcluding refits the same model with the given observations removed
// from the data. Indices address fitted observations (0..N-1), as reported
// by Diagnostics, not raw frame rows.
func (f *Fit) RefitExcluding(indices []int) (*Fit, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("refit: no observations to exclude")
	}
	excluded := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 || i >= f.N {
			return nil, fmt.Errorf("refit: observation %d out of range [0,%d)", i, f.N)
		}
		excluded[f.design.rows[i]] = true
	}
	var keep []int
	for r := 0; r < f.design.data.Len(); r++ {
		if !excluded[r] {
			keep = append(keep, r)
		}
	}
	sub, err := f.design.data.Subset(keep)
	if err != nil {
		return nil, err
	}
	return FitModel(f.Spec, sub, f.opts)
}

// CoefShift is the change in one coefficient between two fits of the same
// model on different rows.
type CoefShift struct {
	Name      string
	Before    float64
	After     float64
	AbsChange float64
	RelChange float64
	SEShift   float64 // change in units of the first fit's standard error; NaN without a covariance
}

// CompareFits pairs coefficients by name and reports the shift between two
// fits, largest relative change first. Coefficients present in only one
// fit (a factor level lost with its rows, say) are skipped.
func CompareFits(before, after *Fit) []CoefShift {
	idx := make(map[string]int, len(after.CoefNames))
	for i, name := range after.CoefNames {
		idx[name] = i
	}
	var out []CoefShift
	for i, name := range before.CoefNames {
		j, ok := idx[name]
		if !ok {
			continue
		}
		b, a := before.Coefficients[i], after.Coefficients[j]
		abs := math.Abs(a - b)
		seShift := math.NaN()
		if before.vb != nil {
			if v := before.vb.At(i, i); v > 0 {
				seShift = abs / math.Sqrt(v)
			}
		}
		out = append(out, CoefShift{
			Name:      name,
			Before:    b,
			After:     a,
			AbsChange: abs,
			RelChange: abs / math.Max(math.Abs(b), 1e-8),
			SEShift:   seShift,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelChange > out[j].RelChange })
	return out
}
