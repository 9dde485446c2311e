package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CoefEntry is one row of the parametric coefficient table.
type CoefEntry struct {
	Name     string
	Estimate float64
	StdErr   float64
	TValue   float64
	PValue   float64
}

// TermTest is a single-term Wald test against the model's residual degrees
// of freedom. Parametric terms use their column count as the test rank;
// penalized terms use the rounded effective degrees of freedom with a
// pseudo-inverse of the coefficient covariance.
type TermTest struct {
	Term   string
	Kind   string
	Rank   float64
	EDF    float64
	F      float64
	PValue float64
}

// Summary collects the reportable pieces of a fit.
type Summary struct {
	Formula string
	Family  string
	Link    string

	N           int
	DroppedRows int

	Coefficients []CoefEntry
	Terms        []TermTest

	EDF               float64
	ResidualDF        float64
	Dispersion        float64
	Deviance          float64
	NullDeviance      float64
	DevianceExplained float64
	GCV               float64

	Converged     bool
	RankDeficient bool
	Warnings      []string
}

func (k termKind) String() string {
	switch k {
	case kindIntercept:
		return "intercept"
	case kindLinear:
		return "linear"
	case kindFactor:
		return "factor"
	case kindSmooth:
		return "smooth"
	case kindRandom:
		return "random"
	}
	return "unknown"
}

// Summary assembles the coefficient table and term tests. When the
// coefficient covariance is unavailable the tables are omitted and a
// warning is recorded instead.
func (f *Fit) Summary() *Summary {
	s := &Summary{
		Formula:           f.Spec.Formula(),
		Family:            f.Spec.Family.String(),
		Link:              f.Spec.Link.String(),
		N:                 f.N,
		DroppedRows:       len(f.DroppedRows),
		EDF:               f.EDF,
		ResidualDF:        f.ResidualDF,
		Dispersion:        f.Dispersion,
		Deviance:          f.Deviance,
		NullDeviance:      f.NullDeviance,
		DevianceExplained: f.DevianceExplained,
		GCV:               f.GCV,
		Converged:         f.Converged,
		RankDeficient:     f.RankDeficient,
		Warnings:          append([]string(nil), f.Warnings...),
	}
	coefs, err := f.ParametricCoefficients()
	if err != nil {
		s.Warnings = append(s.Warnings, "coefficient table unavailable: "+err.Error())
	} else {
		s.Coefficients = coefs
	}
	tests, err := f.TermTests()
	if err != nil {
		s.Warnings = append(s.Warnings, "term tests unavailable: "+err.Error())
	} else {
		s.Terms = tests
	}
	return s
}

var errNoCovariance = errors.New("coefficient covariance unavailable")

// ParametricCoefficients returns the unpenalized coefficients with standard
// errors and two-sided t-tests. Spline and random intercept coefficients
// are excluded; TermTests covers those blocks whole.
func (f *Fit) ParametricCoefficients() ([]CoefEntry, error) {
	if f.vb == nil {
		return nil, errNoCovariance
	}
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: f.ResidualDF}
	var out []CoefEntry
	for _, b := range f.design.terms {
		if b.penalized() {
			continue
		}
		for j := b.start; j < b.start+b.width; j++ {
			est := f.Coefficients[j]
			se := math.Sqrt(f.vb.At(j, j))
			e := CoefEntry{Name: f.CoefNames[j], Estimate: est, StdErr: se}
			if se > 0 {
				e.TValue = est / se
				e.PValue = 2 * tdist.Survival(math.Abs(e.TValue))
			} else {
				e.TValue = math.NaN()
				e.PValue = math.NaN()
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// TermTests runs one Wald test per model term, in model order, skipping the
// intercept.
func (f *Fit) TermTests() ([]TermTest, error) {
	if f.vb == nil {
		return nil, errNoCovariance
	}
	fdistDen := f.ResidualDF
	var out []TermTest
	for _, b := range f.design.terms {
		if b.kind == kindIntercept {
			continue
		}
		test := TermTest{Term: b.label, Kind: b.kind.String()}
		beta := mat.NewVecDense(b.width, f.Coefficients[b.start:b.start+b.width])
		cov := f.blockCov(b)

		if b.penalized() {
			edf := f.termEDF[b.label]
			test.EDF = edf
			rank := int(math.Round(edf))
			if rank < 1 {
				rank = 1
			}
			stat, used := pseudoWald(beta, cov, rank)
			test.Rank = float64(used)
			if used > 0 && !math.IsNaN(stat) {
				test.F = stat / float64(used)
				test.PValue = distuv.F{D1: float64(used), D2: fdistDen}.Survival(test.F)
			} else {
				test.F, test.PValue = math.NaN(), math.NaN()
			}
		} else {
			test.EDF = float64(b.width)
			test.Rank = float64(b.width)
			stat, ok := fullWald(beta, cov)
			if !ok {
				// Singular block covariance, fall back to the
				// pseudo-inverse at full requested rank.
				var used int
				stat, used = pseudoWald(beta, cov, b.width)
				test.Rank = float64(used)
			}
			if test.Rank > 0 && !math.IsNaN(stat) {
				test.F = stat / test.Rank
				test.PValue = distuv.F{D1: test.Rank, D2: fdistDen}.Survival(test.F)
			} else {
				test.F, test.PValue = math.NaN(), math.NaN()
			}
		}
		out = append(out, test)
	}
	return out, nil
}

func (f *Fit) blockCov(b *termBlock) *mat.SymDense {
	s := mat.NewSymDense(b.width, nil)
	for i := 0; i < b.width; i++ {
		for j := i; j < b.width; j++ {
			s.SetSym(i, j, f.vb.At(b.start+i, b.start+j))
		}
	}
	return s
}

// fullWald computes b' V^-1 b via Cholesky. ok is false when V cannot be
// factorized.
func fullWald(b *mat.VecDense, cov *mat.SymDense) (float64, bool) {
	var chol mat.Cholesky
	if !chol.Factorize(cov) {
		return 0, false
	}
	sol := mat.NewVecDense(b.Len(), nil)
	if err := chol.SolveVecTo(sol, b); err != nil {
		return 0, false
	}
	return mat.Dot(b, sol), true
}

// pseudoWald computes b' V^- b keeping at most rank leading eigenvalues of
// V, dropping components below a relative tolerance. Returns the statistic
// and the rank actually used.
func pseudoWald(b *mat.VecDense, cov *mat.SymDense, rank int) (float64, int) {
	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return math.NaN(), 0
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	q := b.Len()
	if rank > q {
		rank = q
	}
	maxVal := vals[q-1]
	if maxVal <= 0 {
		return math.NaN(), 0
	}
	tol := maxVal * 1e-10

	// Eigenvalues come back ascending; walk the top ones.
	var stat float64
	used := 0
	for i := q - 1; i >= q-rank && i >= 0; i-- {
		if vals[i] <= tol {
			break
		}
		var proj float64
		for r := 0; r < q; r++ {
			proj += vecs.At(r, i) * b.AtVec(r)
		}
		stat += proj * proj / vals[i]
		used++
	}
	return stat, used
}
