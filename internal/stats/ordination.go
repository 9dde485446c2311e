package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// OrdinationPoint is one row's coordinates on the first two principal axes.
type OrdinationPoint struct {
	Label string
	X, Y  float64
}

// Ordination is a principal component projection of a multivariate
// composition onto its first two axes, with per-column loadings for
// biplot arrows.
type Ordination struct {
	Points    []OrdinationPoint
	Explained [2]float64
	Columns   []string
	Loadings  [][2]float64
	Dropped   int
}

// Ordinate projects the named numeric columns onto their first two
// principal axes. Each value passes through tr first, so count-like
// columns can be tamed with log1p; a transform domain violation is an
// error. Rows with a missing value in any column are dropped. labels is
// optional and aligned to frame rows.
func Ordinate(data *Frame, columns []string, labels []string, tr Transform) (*Ordination, error) {
	if len(columns) < 2 {
		return nil, fmt.Errorf("ordination: need at least two columns, got %d", len(columns))
	}
	if labels != nil && len(labels) != data.Len() {
		return nil, fmt.Errorf("ordination: %d labels for %d rows", len(labels), data.Len())
	}
	cols := make([][]float64, len(columns))
	for j, name := range columns {
		col, ok := data.Numeric(name)
		if !ok {
			return nil, fmt.Errorf("ordination: no numeric column %q", name)
		}
		cols[j] = col
	}

	var rows []int
	for i := 0; i < data.Len(); i++ {
		keep := true
		for _, col := range cols {
			if math.IsNaN(col[i]) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, i)
		}
	}
	if len(rows) < 3 {
		return nil, fmt.Errorf("ordination: %d complete rows, need at least three", len(rows))
	}

	n, p := len(rows), len(columns)
	m := mat.NewDense(n, p, nil)
	for i, r := range rows {
		for j, col := range cols {
			v, err := tr.Forward(col[r])
			if err != nil {
				return nil, fmt.Errorf("ordination column %q row %d: %w", columns[j], r, err)
			}
			m.Set(i, j, v)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(m, nil); !ok {
		return nil, fmt.Errorf("ordination: principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)
	var total float64
	for _, v := range vars {
		total += v
	}

	// Scores are the centered data projected on the leading axes.
	means := make([]float64, p)
	for j := 0; j < p; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += m.At(i, j)
		}
		means[j] = sum / float64(n)
	}
	out := &Ordination{Columns: append([]string(nil), columns...), Dropped: data.Len() - n}
	if total > 0 {
		out.Explained[0] = vars[0] / total
		if len(vars) > 1 {
			out.Explained[1] = vars[1] / total
		}
	}
	_, nc := vecs.Dims()
	for i, r := range rows {
		var x, y float64
		for j := 0; j < p; j++ {
			c := m.At(i, j) - means[j]
			x += c * vecs.At(j, 0)
			if nc > 1 {
				y += c * vecs.At(j, 1)
			}
		}
		pt := OrdinationPoint{X: x, Y: y}
		if labels != nil {
			pt.Label = labels[r]
		}
		out.Points = append(out.Points, pt)
	}
	for j := 0; j < p; j++ {
		var l [2]float64
		l[0] = vecs.At(j, 0)
		if nc > 1 {
			l[1] = vecs.At(j, 1)
		}
		out.Loadings = append(out.Loadings, l)
	}
	return out, nil
}
