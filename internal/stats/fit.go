package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// FitOptions tunes the solver. The zero value selects the defaults.
type FitOptions struct {
	// MaxIter bounds the IRLS iterations. Default 50.
	MaxIter int
	// Tol is the relative deviance change that counts as converged.
	// Default 1e-8.
	Tol float64
	// LambdaMin and LambdaMax bound the smoothing grid. Defaults 1e-4
	// and 1e8; the grid steps by factors of ten.
	LambdaMin, LambdaMax float64
	// GridSweeps is the number of coordinate-descent passes over the
	// penalized terms. Default 2.
	GridSweeps int
}

func (o FitOptions) withDefaults() FitOptions {
	if o.MaxIter == 0 {
		o.MaxIter = 50
	}
	if o.Tol == 0 {
		o.Tol = 1e-8
	}
	if o.LambdaMin == 0 {
		o.LambdaMin = 1e-4
	}
	if o.LambdaMax == 0 {
		o.LambdaMax = 1e8
	}
	if o.GridSweeps == 0 {
		o.GridSweeps = 2
	}
	return o
}

// SmoothTermInfo reports the selected smoothing weight and effective
// degrees of freedom for one penalized term.
type SmoothTermInfo struct {
	Term   string
	Lambda float64
	EDF    float64
}

// Fit is a fitted model. Fitted values and deviances are on the modeled
// scale, after the response transform; Predict and Marginal fold the
// transform back.
type Fit struct {
	Spec ModelSpec

	Coefficients []float64
	CoefNames    []string

	Fitted          []float64
	LinearPredictor []float64

	EDF               float64
	ResidualDF        float64
	Dispersion        float64
	Deviance          float64
	NullDeviance      float64
	DevianceExplained float64
	GCV               float64
	Smoothing         []SmoothTermInfo

	N           int
	DroppedRows []int
	Iterations  int

	// Converged false or RankDeficient true mark a fit to treat with
	// suspicion, not a failure; the coefficients are still reported.
	Converged     bool
	RankDeficient bool
	Warnings      []string

	design  *design
	opts    FitOptions
	weights []float64
	xtwx    *mat.SymDense
	vb      *mat.SymDense
	termEDF map[string]float64
}

// FitModel fits spec to data. Rows with missing values are dropped and
// listed in DroppedRows; transform domain violations and structural
// problems are errors.
func FitModel(spec ModelSpec, data *Frame, opts FitOptions) (*Fit, error) {
	d, err := buildDesign(spec, data)
	if err != nil {
		return nil, err
	}
	return fitDesign(d, opts)
}

func fitDesign(d *design, opts FitOptions) (*Fit, error) {
	opts = opts.withDefaults()

	penalized := d.penalizedTerms()
	lambdas := make([]float64, len(penalized))
	for i := range lambdas {
		lambdas[i] = 1
	}
	if len(penalized) > 0 {
		grid := lambdaGrid(opts)
		for sweep := 0; sweep < opts.GridSweeps; sweep++ {
			for ti := range penalized {
				best, bestScore := lambdas[ti], math.Inf(1)
				trial := make([]float64, len(lambdas))
				copy(trial, lambdas)
				for _, lam := range grid {
					trial[ti] = lam
					res, err := d.pirls(trial, opts)
					if err != nil {
						continue
					}
					if score := gcvScore(d.n(), res.dev, res.edf); score < bestScore {
						best, bestScore = lam, score
					}
				}
				lambdas[ti] = best
			}
		}
	}

	res, err := d.pirls(lambdas, opts)
	if err != nil {
		return nil, err
	}

	n := d.n()
	fit := &Fit{
		Spec:            d.spec,
		Coefficients:    vecSlice(res.beta),
		CoefNames:       append([]string(nil), d.names...),
		Fitted:          res.mu,
		LinearPredictor: res.eta,
		EDF:             res.edf,
		Deviance:        res.dev,
		GCV:             gcvScore(n, res.dev, res.edf),
		N:               n,
		DroppedRows:     append([]int(nil), d.dropped...),
		Iterations:      res.iterations,
		Converged:       res.converged,
		RankDeficient:   res.rankDeficient,
		Warnings:        res.warnings,
		design:          d,
		opts:            opts,
		weights:         res.w,
		xtwx:            res.xtwx,
		termEDF:         make(map[string]float64),
	}

	residDF := float64(n) - res.edf
	if residDF < 1 {
		residDF = 1
		fit.Warnings = append(fit.Warnings, "effective degrees of freedom exhaust the sample")
	}
	fit.ResidualDF = residDF

	var pearson float64
	for i := 0; i < n; i++ {
		r := d.y[i] - res.mu[i]
		pearson += r * r / d.spec.Family.Variance(res.mu[i])
	}
	fit.Dispersion = pearson / residDF

	// Null model: intercept only, for which the fitted mean is ybar
	// regardless of link.
	ybar := mean(d.y)
	null := make([]float64, n)
	for i := range null {
		null[i] = ybar
	}
	fit.NullDeviance = d.spec.Family.Deviance(d.y, null)
	if fit.NullDeviance > 0 {
		fit.DevianceExplained = 1 - fit.Deviance/fit.NullDeviance
	}

	// Per-term effective degrees of freedom from the trace diagonal.
	for _, b := range d.terms {
		var edf float64
		if b.penalized() {
			for j := b.start; j < b.start+b.width; j++ {
				edf += res.edfDiag[j]
			}
		} else {
			edf = float64(b.width)
		}
		fit.termEDF[b.label] = edf
	}
	for i, b := range penalized {
		b.lambda = lambdas[i]
		fit.Smoothing = append(fit.Smoothing, SmoothTermInfo{
			Term:   b.label,
			Lambda: lambdas[i],
			EDF:    fit.termEDF[b.label],
		})
	}

	// Coefficient covariance (X'WX + S)^-1 scaled by the dispersion.
	vb := mat.NewSymDense(d.p(), nil)
	if err := res.chol.InverseTo(vb); err != nil {
		fit.Warnings = append(fit.Warnings, "coefficient covariance unavailable: "+err.Error())
	} else {
		vb.ScaleSym(fit.Dispersion, vb)
		fit.vb = vb
	}

	if !fit.Converged {
		fit.Warnings = append(fit.Warnings, fmt.Sprintf("IRLS did not converge within %d iterations", opts.MaxIter))
	}
	if fit.RankDeficient {
		fit.Warnings = append(fit.Warnings, "model is rank deficient or near-singular; estimates are regularized")
	}
	return fit, nil
}

func (d *design) penalizedTerms() []*termBlock {
	var out []*termBlock
	for _, b := range d.terms {
		if b.penalized() {
			out = append(out, b)
		}
	}
	return out
}

func lambdaGrid(opts FitOptions) []float64 {
	var grid []float64
	for lam := opts.LambdaMin; lam <= opts.LambdaMax*(1+1e-12); lam *= 10 {
		grid = append(grid, lam)
	}
	return grid
}

func gcvScore(n int, dev, edf float64) float64 {
	denom := float64(n) - edf
	if denom <= 0 || math.IsNaN(dev) || math.IsInf(dev, 0) {
		return math.Inf(1)
	}
	return float64(n) * dev / (denom * denom)
}

// penaltyTotal embeds each term penalty at its block offset, scaled by its
// smoothing weight, into one p-by-p matrix.
func (d *design) penaltyTotal(lambdas []float64) *mat.SymDense {
	s := mat.NewSymDense(d.p(), nil)
	li := 0
	for _, b := range d.terms {
		if !b.penalized() {
			continue
		}
		lam := lambdas[li]
		li++
		for i := 0; i < b.width; i++ {
			for j := i; j < b.width; j++ {
				v := lam * b.penalty.At(i, j)
				if v != 0 {
					s.SetSym(b.start+i, b.start+j, s.At(b.start+i, b.start+j)+v)
				}
			}
		}
	}
	return s
}

type pirlsResult struct {
	beta          *mat.VecDense
	eta, mu       []float64
	w             []float64
	dev           float64
	edf           float64
	edfDiag       []float64
	iterations    int
	converged     bool
	rankDeficient bool
	warnings      []string
	chol          *mat.Cholesky
	xtwx          *mat.SymDense
}

// pirls runs penalized iteratively reweighted least squares at fixed
// smoothing weights. Failures to make progress degrade to flags and
// warnings; only the inability to solve any system at all is an error.
func (d *design) pirls(lambdas []float64, opts FitOptions) (*pirlsResult, error) {
	n, p := d.n(), d.p()
	fam, link := d.spec.Family, d.spec.Link
	s := d.penaltyTotal(lambdas)

	mu := make([]float64, n)
	eta := make([]float64, n)
	ybar := mean(d.y)
	for i := range mu {
		mu[i] = fam.initialMu(d.y[i], ybar)
		eta[i] = link.Eta(mu[i])
	}

	res := &pirlsResult{w: make([]float64, n)}
	z := make([]float64, n)
	beta := mat.NewVecDense(p, nil)
	betaOld := mat.NewVecDense(p, nil)
	dev := math.Inf(1)
	first := true

	for iter := 1; iter <= opts.MaxIter; iter++ {
		res.iterations = iter
		for i := 0; i < n; i++ {
			g := link.DEtaDMu(mu[i])
			res.w[i] = 1 / (fam.Variance(mu[i]) * g * g)
			z[i] = eta[i] + (d.y[i]-mu[i])*g
		}

		xtwx, xtwz := crossProducts(d.x, res.w, z)
		a := mat.NewSymDense(p, nil)
		a.AddSym(xtwx, s)
		chol, jittered, err := factorizeWithJitter(a)
		if err != nil {
			if first {
				return nil, fmt.Errorf("penalized least squares: %w", err)
			}
			res.rankDeficient = true
			res.converged = false
			break
		}
		if jittered {
			res.rankDeficient = true
		}

		betaOld.CopyVec(beta)
		if err := chol.SolveVecTo(beta, xtwz); err != nil {
			if first {
				return nil, fmt.Errorf("penalized least squares: %w", err)
			}
			res.rankDeficient = true
			break
		}

		newDev, ok := d.evalStep(beta, betaOld, eta, mu, first)
		if !ok {
			res.warnings = append(res.warnings, "step halving failed to find a valid update")
			res.converged = false
			res.chol, res.xtwx = chol, xtwx
			if !first {
				// Keep the last coefficients that produced valid means.
				beta.CopyVec(betaOld)
			}
			break
		}
		res.chol, res.xtwx = chol, xtwx

		if !first && math.Abs(newDev-dev) < opts.Tol*(math.Abs(newDev)+0.1) {
			dev = newDev
			res.converged = true
			break
		}
		dev = newDev
		first = false
	}

	if res.chol == nil {
		return nil, errors.New("penalized least squares: no valid iteration")
	}
	res.beta = beta
	res.eta, res.mu = eta, mu
	res.dev = dev

	// edf = tr((X'WX + S)^-1 X'WX), accumulated per coefficient so term
	// blocks can report their own share.
	inv := mat.NewDense(p, p, nil)
	if err := res.chol.SolveTo(inv, res.xtwx); err == nil {
		res.edfDiag = make([]float64, p)
		for j := 0; j < p; j++ {
			res.edfDiag[j] = inv.At(j, j)
			res.edf += inv.At(j, j)
		}
	} else {
		res.edfDiag = make([]float64, p)
		res.edf = float64(p)
		res.warnings = append(res.warnings, "effective degrees of freedom fell back to the coefficient count")
	}
	return res, nil
}

// evalStep applies the candidate coefficients, halving back toward the
// previous ones while the implied means or deviance are invalid.
func (d *design) evalStep(beta, betaOld *mat.VecDense, eta, mu []float64, first bool) (float64, bool) {
	fam, link := d.spec.Family, d.spec.Link
	n := d.n()
	try := mat.NewVecDense(beta.Len(), nil)
	try.CopyVec(beta)
	for half := 0; half <= 10; half++ {
		valid := true
		var ev mat.VecDense
		ev.MulVec(d.x, try)
		for i := 0; i < n; i++ {
			e := ev.AtVec(i)
			m := link.Mu(e)
			if math.IsNaN(m) || math.IsInf(m, 0) || (fam == FamilyGamma && m <= 0) {
				valid = false
				break
			}
			eta[i] = e
			mu[i] = m
		}
		if valid {
			dev := fam.Deviance(d.y, mu)
			if !math.IsNaN(dev) && !math.IsInf(dev, 0) {
				beta.CopyVec(try)
				return dev, true
			}
		}
		if first {
			// No previous point to retreat toward.
			return 0, false
		}
		try.AddScaledVec(betaOld, 0.5, subVec(try, betaOld))
	}
	return 0, false
}

func subVec(a, b *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(a.Len(), nil)
	out.SubVec(a, b)
	return out
}

// crossProducts forms X'WX and X'Wz in one pass over the rows.
func crossProducts(x *mat.Dense, w, z []float64) (*mat.SymDense, *mat.VecDense) {
	n, p := x.Dims()
	a := make([]float64, p*p)
	b := make([]float64, p)
	for i := 0; i < n; i++ {
		xi := x.RawRowView(i)
		wi := w[i]
		zi := z[i]
		for j := 0; j < p; j++ {
			xij := xi[j]
			if xij == 0 {
				continue
			}
			b[j] += wi * xij * zi
			base := j * p
			for k := j; k < p; k++ {
				a[base+k] += wi * xij * xi[k]
			}
		}
	}
	xtwx := mat.NewSymDense(p, nil)
	for j := 0; j < p; j++ {
		for k := j; k < p; k++ {
			xtwx.SetSym(j, k, a[j*p+k])
		}
	}
	return xtwx, mat.NewVecDense(p, b)
}

// factorizeWithJitter tries a Cholesky factorization, adding escalating
// ridge jitter on failure. The jittered flag marks the estimates as
// regularized rather than exact.
func factorizeWithJitter(a *mat.SymDense) (*mat.Cholesky, bool, error) {
	var chol mat.Cholesky
	if chol.Factorize(a) {
		return &chol, false, nil
	}
	p, _ := a.Dims()
	var md float64
	for i := 0; i < p; i++ {
		md += a.At(i, i)
	}
	md /= float64(p)
	if md <= 0 || math.IsNaN(md) {
		md = 1
	}
	jit := md * 1e-8
	for t := 0; t < 6; t++ {
		aj := mat.NewSymDense(p, nil)
		aj.CopySym(a)
		for i := 0; i < p; i++ {
			aj.SetSym(i, i, aj.At(i, i)+jit)
		}
		if chol.Factorize(aj) {
			return &chol, true, nil
		}
		jit *= 100
	}
	return nil, true, errors.New("cholesky factorization failed even with ridge jitter")
}

func vecSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
