// Package stats fits penalized generalized additive models to survey data
// and derives the predictions, tests, and diagnostics the analysis pipeline
// reports.
//
// # Model Structure
//
// A model is a [ModelSpec]: a numeric response with an optional transform,
// an exponential family with a link, and four kinds of terms:
//
//	Linear:  one column, optionally transformed. One coefficient.
//	Factor:  treatment contrasts against the first level. k-1 coefficients.
//	Smooth:  cubic B-spline basis, evenly spaced knots over the observed
//	         range, centered for identifiability. K coefficients (default 10).
//	Random:  one intercept per observed level, ridge-penalized as a group.
//
// Fitting is penalized iteratively reweighted least squares: at each step
// solve (X'WX + Σ λⱼSⱼ)β = X'Wz with the usual working weights and
// response. Deviance convergence within a relative tolerance ends the loop.
//
// # Smoothing
//
// Spline penalties are second-order difference matrices plus a small
// identity shrinkage, so a large enough λ removes a term entirely rather
// than leaving a straight line behind. λ values are chosen per term by
// coordinate descent over a fixed log-spaced grid scored with GCV:
//
//	GCV = n·deviance / (n − edf)²
//	grid: 1e-4 … 1e8 in decade steps, two sweeps
//
// The grid is fixed and ties break toward the smaller λ, so refitting the
// same data reproduces the same model exactly.
//
// # Failure Handling
//
// Numerical trouble degrades to flags, not errors. A Cholesky failure adds
// escalating ridge jitter and marks the fit [Fit.RankDeficient]; running
// out of iterations marks it not [Fit.Converged]. Both append to
// [Fit.Warnings] and leave the estimates reportable. Errors are reserved
// for structural problems: unknown columns, factors with one level,
// transform domain violations, no usable rows.
//
// # Scales
//
// Three scales appear in the results and are easy to conflate:
//
//	raw:     the response column as loaded, e.g. herring catch.
//	modeled: after [Transform], e.g. log(catch). Fitted values, residuals,
//	         and deviances live here.
//	link:    η = g(μ). Standard errors and confidence bands are computed
//	         here, then folded back through the inverse link and inverse
//	         transform by [Fit.Predict] and [Fit.Marginal].
//
// Backfolding preserves band coverage but not symmetry, and for the
// inverse link it flips the bound order; prediction reorders the bounds
// after mapping.
package stats
