package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// bspline is a cubic B-spline basis over a fixed data range. The basis has
// k functions built from evenly spaced interior knots, with the boundary
// knots repeated degree+1 times so the basis spans [lo,hi] exactly.
type bspline struct {
	degree int
	knots  []float64
	k      int
	lo, hi float64
}

const splineDegree = 3

// newBSpline builds a cubic basis with k functions covering [lo,hi].
// k must be at least degree+1 (4) so at least one interior interval exists.
func newBSpline(lo, hi float64, k int) (*bspline, error) {
	if k < splineDegree+1 {
		return nil, fmt.Errorf("spline basis needs at least %d functions, got %d", splineDegree+1, k)
	}
	if !(hi > lo) {
		return nil, fmt.Errorf("spline range [%g,%g] is degenerate", lo, hi)
	}
	// k basis functions of degree d require k-d interior intervals, so
	// k-d+1 distinct breakpoints including the boundaries.
	intervals := k - splineDegree
	knots := make([]float64, 0, k+splineDegree+1)
	for i := 0; i <= splineDegree; i++ {
		knots = append(knots, lo)
	}
	step := (hi - lo) / float64(intervals)
	for i := 1; i < intervals; i++ {
		knots = append(knots, lo+float64(i)*step)
	}
	for i := 0; i <= splineDegree; i++ {
		knots = append(knots, hi)
	}
	return &bspline{degree: splineDegree, knots: knots, k: k, lo: lo, hi: hi}, nil
}

// eval fills dst with the k basis function values at x. Values outside
// [lo,hi] are clamped to the boundary, which pins extrapolated predictions
// to the boundary value rather than letting the polynomial pieces run wild.
func (b *bspline) eval(x float64, dst []float64) {
	if len(dst) != b.k {
		panic("bspline: dst length mismatch")
	}
	if x < b.lo {
		x = b.lo
	}
	if x > b.hi {
		x = b.hi
	}
	for i := range dst {
		dst[i] = b.basis(i, b.degree, x)
	}
	// The recursion leaves the final basis function zero at the right
	// boundary; by convention it is one there.
	if x == b.hi {
		dst[b.k-1] = 1
	}
}

// basis is the Cox-de Boor recursion for the i-th function of degree d.
func (b *bspline) basis(i, d int, x float64) float64 {
	if d == 0 {
		if b.knots[i] <= x && x < b.knots[i+1] {
			return 1
		}
		return 0
	}
	var left, right float64
	if denom := b.knots[i+d] - b.knots[i]; denom > 0 {
		left = (x - b.knots[i]) / denom * b.basis(i, d-1, x)
	}
	if denom := b.knots[i+d+1] - b.knots[i+1]; denom > 0 {
		right = (b.knots[i+d+1] - x) / denom * b.basis(i+1, d-1, x)
	}
	return left + right
}

// matrix evaluates the basis at each x and returns the n-by-k design block.
func (b *bspline) matrix(xs []float64) *mat.Dense {
	m := mat.NewDense(len(xs), b.k, nil)
	row := make([]float64, b.k)
	for i, x := range xs {
		b.eval(x, row)
		m.SetRow(i, row)
	}
	return m
}

// penalty returns the k-by-k second-order difference penalty D'D plus a
// small multiple of the identity. The difference part penalizes wiggle;
// the identity part shrinks the whole block, so as the smoothing weight
// grows the term is removed entirely instead of flattening to a line.
func (b *bspline) penalty(shrink float64) *mat.SymDense {
	k := b.k
	rows := k - 2
	d := mat.NewDense(rows, k, nil)
	for i := 0; i < rows; i++ {
		d.Set(i, i, 1)
		d.Set(i, i+1, -2)
		d.Set(i, i+2, 1)
	}
	s := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			var sum float64
			for r := 0; r < rows; r++ {
				sum += d.At(r, i) * d.At(r, j)
			}
			if i == j {
				sum += shrink
			}
			s.SetSym(i, j, sum)
		}
	}
	return s
}

// center subtracts the column means from a basis block in place and returns
// the means. Centering removes the confound with the intercept; predictions
// reuse the stored means so new data lands in the same column space.
func center(m *mat.Dense) []float64 {
	n, k := m.Dims()
	means := make([]float64, k)
	for j := 0; j < k; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += m.At(i, j)
		}
		means[j] = sum / float64(n)
		for i := 0; i < n; i++ {
			m.Set(i, j, m.At(i, j)-means[j])
		}
	}
	return means
}

// rangeOf returns the min and max of xs ignoring NaN.
func rangeOf(xs []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi, hi > lo
}
