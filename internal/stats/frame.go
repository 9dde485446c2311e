package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Frame is a column-oriented table of equal-length columns, the input shape
// the fitter consumes. Numeric columns use NaN for missing values; factor
// columns use the empty string. Columns are immutable once added.
type Frame struct {
	n       int
	numeric map[string][]float64
	factors map[string][]string
	order   []string
}

// NewFrame creates an empty frame with n rows.
func NewFrame(n int) *Frame {
	return &Frame{
		n:       n,
		numeric: make(map[string][]float64),
		factors: make(map[string][]string),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// AddNumeric adds a numeric column. The slice is copied.
func (f *Frame) AddNumeric(name string, values []float64) error {
	if err := f.checkAdd(name, len(values)); err != nil {
		return err
	}
	col := make([]float64, len(values))
	copy(col, values)
	f.numeric[name] = col
	f.order = append(f.order, name)
	return nil
}

// AddFactor adds a categorical column. The slice is copied.
func (f *Frame) AddFactor(name string, values []string) error {
	if err := f.checkAdd(name, len(values)); err != nil {
		return err
	}
	col := make([]string, len(values))
	copy(col, values)
	f.factors[name] = col
	f.order = append(f.order, name)
	return nil
}

func (f *Frame) checkAdd(name string, n int) error {
	if name == "" {
		return fmt.Errorf("frame: empty column name")
	}
	if n != f.n {
		return fmt.Errorf("frame: column %q has %d rows, frame has %d", name, n, f.n)
	}
	if _, ok := f.numeric[name]; ok {
		return fmt.Errorf("frame: column %q already exists", name)
	}
	if _, ok := f.factors[name]; ok {
		return fmt.Errorf("frame: column %q already exists", name)
	}
	return nil
}

// Numeric returns a numeric column by name. The returned slice must not be
// modified.
func (f *Frame) Numeric(name string) ([]float64, bool) {
	col, ok := f.numeric[name]
	return col, ok
}

// Factor returns a factor column by name. The returned slice must not be
// modified.
func (f *Frame) Factor(name string) ([]string, bool) {
	col, ok := f.factors[name]
	return col, ok
}

// HasColumn reports whether any column with the name exists.
func (f *Frame) HasColumn(name string) bool {
	if _, ok := f.numeric[name]; ok {
		return true
	}
	_, ok := f.factors[name]
	return ok
}

// Subset returns a new frame containing only the given rows, in order.
func (f *Frame) Subset(rows []int) (*Frame, error) {
	for _, r := range rows {
		if r < 0 || r >= f.n {
			return nil, fmt.Errorf("frame: row %d out of range [0,%d)", r, f.n)
		}
	}
	out := NewFrame(len(rows))
	for _, name := range f.order {
		if col, ok := f.numeric[name]; ok {
			sub := make([]float64, len(rows))
			for i, r := range rows {
				sub[i] = col[r]
			}
			out.numeric[name] = sub
			out.order = append(out.order, name)
			continue
		}
		col := f.factors[name]
		sub := make([]string, len(rows))
		for i, r := range rows {
			sub[i] = col[r]
		}
		out.factors[name] = sub
		out.order = append(out.order, name)
	}
	return out, nil
}

// Median returns the median of a numeric column ignoring NaN, the default
// "typical value" used when holding non-focal predictors fixed.
func (f *Frame) Median(name string) (float64, error) {
	col, ok := f.numeric[name]
	if !ok {
		return 0, fmt.Errorf("frame: no numeric column %q", name)
	}
	vals := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("frame: column %q has no non-missing values", name)
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil), nil
}

// Levels returns the sorted distinct non-empty values of a factor column.
func (f *Frame) Levels(name string) ([]string, error) {
	col, ok := f.factors[name]
	if !ok {
		return nil, fmt.Errorf("frame: no factor column %q", name)
	}
	seen := make(map[string]bool)
	var levels []string
	for _, v := range col {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		levels = append(levels, v)
	}
	sort.Strings(levels)
	return levels, nil
}
