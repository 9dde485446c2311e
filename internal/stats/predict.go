package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Prediction is one predicted mean with its confidence band, mapped back to
// the original response scale. Eta and SE stay on the link scale, where the
// band is actually computed.
type Prediction struct {
	Value float64
	Lower float64
	Upper float64
	Eta   float64
	SE    float64
}

// PredictOptions controls prediction. The zero value predicts population
// level with a 95% band.
type PredictOptions struct {
	// Level is the confidence level of the band. Default 0.95.
	Level float64
	// IncludeRandom adds the fitted random intercept for each row's
	// level instead of the population-level zero.
	IncludeRandom bool
}

func (o PredictOptions) withDefaults() (PredictOptions, error) {
	if o.Level == 0 {
		o.Level = 0.95
	}
	if o.Level <= 0 || o.Level >= 1 {
		return o, fmt.Errorf("confidence level %g outside (0,1)", o.Level)
	}
	return o, nil
}

// Predict evaluates the fit for every row of data. Rows must be complete:
// a missing value, unknown factor level, or transform domain violation is
// an error, not a dropped row.
func (f *Fit) Predict(data *Frame, opts PredictOptions) ([]Prediction, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if f.vb == nil {
		return nil, errNoCovariance
	}
	z := distuv.UnitNormal.Quantile(0.5 + opts.Level/2)
	out := make([]Prediction, data.Len())
	row := make([]float64, f.design.p())
	for i := 0; i < data.Len(); i++ {
		if err := f.design.rowFor(data, i, row, opts.IncludeRandom); err != nil {
			return nil, err
		}
		out[i] = f.predictRow(row, z)
	}
	return out, nil
}

// predictRow maps one design row through the coefficient vector, the link,
// and the response transform. The band is symmetric on the link scale only;
// the back-transform may flip or skew it, so the bounds are reordered after
// mapping.
func (f *Fit) predictRow(row []float64, z float64) Prediction {
	var eta, v float64
	for j, x := range row {
		if x == 0 {
			continue
		}
		eta += x * f.Coefficients[j]
		for k, xk := range row {
			if xk != 0 {
				v += x * xk * f.vb.At(j, k)
			}
		}
	}
	se := 0.0
	if v > 0 {
		se = math.Sqrt(v)
	}
	link, tr := f.Spec.Link, f.Spec.ResponseTransform
	lo := tr.Inverse(link.Mu(eta - z*se))
	hi := tr.Inverse(link.Mu(eta + z*se))
	if lo > hi {
		lo, hi = hi, lo
	}
	return Prediction{
		Value: tr.Inverse(link.Mu(eta)),
		Lower: lo,
		Upper: hi,
		Eta:   eta,
		SE:    se,
	}
}
