package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// DefaultBasisDim is the spline basis size used when a Smooth leaves K zero.
const DefaultBasisDim = 10

// shrinkEps scales the identity added to spline penalties so that heavy
// smoothing removes a term entirely instead of flattening it to a line.
const shrinkEps = 1e-3

// ErrNoUsableRows is returned when every row is lost to missing values.
var ErrNoUsableRows = errors.New("no usable rows after dropping missing values")

// Linear is an unpenalized numeric term, optionally transformed.
type Linear struct {
	Name      string
	Transform Transform
}

// Factor is a categorical term coded with treatment contrasts. Levels may
// pin the level order, in which case the first entry is the reference and
// any observed value outside the list is an error. When empty, levels are
// read from the data in sorted order.
type Factor struct {
	Name   string
	Levels []string
}

// Smooth is a penalized spline term. K is the basis dimension.
type Smooth struct {
	Name      string
	Transform Transform
	K         int
}

// Random is a random intercept term: one coefficient per observed level,
// ridge-penalized so the fitted smoothing weight shrinks the whole set
// toward zero.
type Random struct {
	Name string
}

// ModelSpec describes one model: the response with its transform, the
// family and link, and the predictor terms.
type ModelSpec struct {
	Response          string
	ResponseTransform Transform
	Family            Family
	Link              Link
	Linear            []Linear
	Factors           []Factor
	Smooths           []Smooth
	Random            []Random
}

// Formula renders the spec in compact notation for logs and reports.
func (s ModelSpec) Formula() string {
	var parts []string
	for _, t := range s.Linear {
		parts = append(parts, t.Transform.Describe(t.Name))
	}
	for _, t := range s.Factors {
		parts = append(parts, t.Name)
	}
	for _, t := range s.Smooths {
		parts = append(parts, "s("+t.Transform.Describe(t.Name)+")")
	}
	for _, t := range s.Random {
		parts = append(parts, "re("+t.Name+")")
	}
	resp := s.ResponseTransform.Describe(s.Response)
	if len(parts) == 0 {
		return resp + " ~ 1"
	}
	return resp + " ~ " + strings.Join(parts, " + ")
}

// Validate checks the spec for structural problems before any data is seen.
func (s ModelSpec) Validate() error {
	if s.Response == "" {
		return errors.New("model spec: empty response")
	}
	if err := s.Family.ValidateLink(s.Link); err != nil {
		return fmt.Errorf("model spec: %w", err)
	}
	seen := map[string]bool{s.Response: true}
	claim := func(name string) error {
		if name == "" {
			return errors.New("model spec: empty term name")
		}
		if name == s.Response {
			return fmt.Errorf("model spec: term %q is the response", name)
		}
		if seen[name] {
			return fmt.Errorf("model spec: term %q appears twice", name)
		}
		seen[name] = true
		return nil
	}
	for _, t := range s.Linear {
		if err := claim(t.Name); err != nil {
			return err
		}
	}
	for _, t := range s.Factors {
		if err := claim(t.Name); err != nil {
			return err
		}
	}
	for _, t := range s.Smooths {
		if err := claim(t.Name); err != nil {
			return err
		}
		if t.K != 0 && t.K < splineDegree+1 {
			return fmt.Errorf("model spec: smooth %q basis dimension %d is below the minimum %d", t.Name, t.K, splineDegree+1)
		}
	}
	for _, t := range s.Random {
		if err := claim(t.Name); err != nil {
			return err
		}
	}
	return nil
}

type termKind int

const (
	kindIntercept termKind = iota
	kindLinear
	kindFactor
	kindSmooth
	kindRandom
)

// termBlock is one model term bound to its slice of the design matrix.
type termBlock struct {
	kind      termKind
	label     string
	column    string
	transform Transform
	start     int
	width     int

	// factor and random terms
	levels []string

	// smooth terms
	basis   *bspline
	centers []float64

	// smooth and random terms
	penalty *mat.SymDense
	lambda  float64
}

func (t *termBlock) penalized() bool { return t.penalty != nil }

func (t *termBlock) levelIndex(v string) int {
	for i, l := range t.levels {
		if l == v {
			return i
		}
	}
	return -1
}

// design is a model spec bound to a frame: the assembled matrix, the
// transformed response, and the per-term state needed to rebuild rows for
// new data.
type design struct {
	spec  ModelSpec
	terms []*termBlock
	names []string

	data *Frame
	x    *mat.Dense
	y    []float64

	rows    []int
	dropped []int
}

func (d *design) n() int { return len(d.rows) }
func (d *design) p() int { return len(d.names) }

// buildDesign assembles the design matrix for spec over data. Rows with a
// missing response or any missing predictor are dropped and recorded.
// Transform domain violations are errors, not drops: a response or
// predictor that cannot be transformed means the model itself is wrong for
// the data.
func buildDesign(spec ModelSpec, data *Frame) (*design, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	yraw, ok := data.Numeric(spec.Response)
	if !ok {
		return nil, fmt.Errorf("response %q: no such numeric column", spec.Response)
	}

	numericCols := make(map[string][]float64)
	factorCols := make(map[string][]string)
	needNumeric := func(name string) error {
		col, ok := data.Numeric(name)
		if !ok {
			return fmt.Errorf("term %q: no such numeric column", name)
		}
		numericCols[name] = col
		return nil
	}
	needFactor := func(name string) error {
		col, ok := data.Factor(name)
		if !ok {
			return fmt.Errorf("term %q: no such factor column", name)
		}
		factorCols[name] = col
		return nil
	}
	for _, t := range spec.Linear {
		if err := needNumeric(t.Name); err != nil {
			return nil, err
		}
	}
	for _, t := range spec.Smooths {
		if err := needNumeric(t.Name); err != nil {
			return nil, err
		}
	}
	for _, t := range spec.Factors {
		if err := needFactor(t.Name); err != nil {
			return nil, err
		}
	}
	for _, t := range spec.Random {
		if err := needFactor(t.Name); err != nil {
			return nil, err
		}
	}

	var rows, dropped []int
	for i := 0; i < data.Len(); i++ {
		if rowMissing(i, yraw, numericCols, factorCols) {
			dropped = append(dropped, i)
			continue
		}
		rows = append(rows, i)
	}
	if len(rows) == 0 {
		return nil, ErrNoUsableRows
	}

	y, err := transformColumn(spec.ResponseTransform.Describe(spec.Response), spec.ResponseTransform, yraw, rows)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		if err := spec.Family.CheckResponse(y[i]); err != nil {
			return nil, fmt.Errorf("response %q row %d: %w", spec.Response, r, err)
		}
	}

	d := &design{spec: spec, data: data, y: y, rows: rows, dropped: dropped}
	n := len(rows)

	type payload struct {
		block *termBlock
		data  *mat.Dense
	}
	var built []payload
	add := func(b *termBlock, m *mat.Dense) {
		built = append(built, payload{b, m})
		d.terms = append(d.terms, b)
	}

	ones := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		ones.Set(i, 0, 1)
	}
	add(&termBlock{kind: kindIntercept, label: "(Intercept)", width: 1}, ones)

	for _, t := range spec.Linear {
		label := t.Transform.Describe(t.Name)
		vals, err := transformColumn(label, t.Transform, numericCols[t.Name], rows)
		if err != nil {
			return nil, err
		}
		add(&termBlock{kind: kindLinear, label: label, column: t.Name, transform: t.Transform, width: 1},
			mat.NewDense(n, 1, vals))
	}

	for _, t := range spec.Factors {
		block, m, err := buildFactorBlock(t, factorCols[t.Name], rows)
		if err != nil {
			return nil, err
		}
		add(block, m)
	}

	for _, t := range spec.Smooths {
		block, m, err := buildSmoothBlock(t, numericCols[t.Name], rows)
		if err != nil {
			return nil, err
		}
		add(block, m)
	}

	for _, t := range spec.Random {
		block, m, err := buildRandomBlock(t, factorCols[t.Name], rows)
		if err != nil {
			return nil, err
		}
		add(block, m)
	}

	p := 0
	for _, b := range d.terms {
		b.start = p
		p += b.width
	}
	d.x = mat.NewDense(n, p, nil)
	for _, pl := range built {
		b := pl.block
		d.x.Slice(0, n, b.start, b.start+b.width).(*mat.Dense).Copy(pl.data)
	}
	d.names = coefficientNames(d.terms)
	return d, nil
}

func rowMissing(i int, y []float64, numeric map[string][]float64, factors map[string][]string) bool {
	if math.IsNaN(y[i]) {
		return true
	}
	for _, col := range numeric {
		if math.IsNaN(col[i]) {
			return true
		}
	}
	for _, col := range factors {
		if col[i] == "" {
			return true
		}
	}
	return false
}

// transformColumn applies tr to col at the kept rows. Any domain violation
// fails the whole build; the error names the label, the number of offending
// rows, and wraps the first DomainError.
func transformColumn(label string, tr Transform, col []float64, rows []int) ([]float64, error) {
	out := make([]float64, len(rows))
	var bad []int
	var first error
	for i, r := range rows {
		z, err := tr.Forward(col[r])
		if err != nil {
			bad = append(bad, r)
			if first == nil {
				first = err
			}
			continue
		}
		out[i] = z
	}
	if first != nil {
		return nil, fmt.Errorf("%s: %d row(s) outside transform domain, first at row %d: %w", label, len(bad), bad[0], first)
	}
	return out, nil
}

func observedLevels(col []string, rows []int) []string {
	seen := make(map[string]bool)
	var levels []string
	for _, r := range rows {
		if v := col[r]; !seen[v] {
			seen[v] = true
			levels = append(levels, v)
		}
	}
	sort.Strings(levels)
	return levels
}

func buildFactorBlock(t Factor, col []string, rows []int) (*termBlock, *mat.Dense, error) {
	levels := t.Levels
	if len(levels) == 0 {
		levels = observedLevels(col, rows)
	}
	if len(levels) < 2 {
		return nil, nil, fmt.Errorf("factor %q: %d level(s) observed, need at least two", t.Name, len(levels))
	}
	block := &termBlock{kind: kindFactor, label: t.Name, column: t.Name, width: len(levels) - 1, levels: levels}
	m := mat.NewDense(len(rows), block.width, nil)
	for i, r := range rows {
		idx := block.levelIndex(col[r])
		if idx < 0 {
			return nil, nil, fmt.Errorf("factor %q: unknown level %q at row %d", t.Name, col[r], r)
		}
		if idx > 0 {
			m.Set(i, idx-1, 1)
		}
	}
	return block, m, nil
}

func buildSmoothBlock(t Smooth, col []float64, rows []int) (*termBlock, *mat.Dense, error) {
	label := "s(" + t.Transform.Describe(t.Name) + ")"
	vals, err := transformColumn(label, t.Transform, col, rows)
	if err != nil {
		return nil, nil, err
	}
	k := t.K
	if k == 0 {
		k = DefaultBasisDim
	}
	distinct := make(map[float64]bool, len(vals))
	for _, v := range vals {
		distinct[v] = true
	}
	if len(distinct) < k {
		return nil, nil, fmt.Errorf("smooth %s: %d distinct values cannot support basis dimension %d", label, len(distinct), k)
	}
	lo, hi, ok := rangeOf(vals)
	if !ok {
		return nil, nil, fmt.Errorf("smooth %s: degenerate range", label)
	}
	basis, err := newBSpline(lo, hi, k)
	if err != nil {
		return nil, nil, fmt.Errorf("smooth %s: %w", label, err)
	}
	m := basis.matrix(vals)
	centers := center(m)
	block := &termBlock{
		kind:      kindSmooth,
		label:     label,
		column:    t.Name,
		transform: t.Transform,
		width:     k,
		basis:     basis,
		centers:   centers,
		penalty:   basis.penalty(shrinkEps),
	}
	return block, m, nil
}

func buildRandomBlock(t Random, col []string, rows []int) (*termBlock, *mat.Dense, error) {
	levels := observedLevels(col, rows)
	if len(levels) < 2 {
		return nil, nil, fmt.Errorf("random intercept %q: %d level(s) observed, need at least two", t.Name, len(levels))
	}
	block := &termBlock{
		kind:   kindRandom,
		label:  "re(" + t.Name + ")",
		column: t.Name,
		width:  len(levels),
		levels: levels,
	}
	pen := mat.NewSymDense(len(levels), nil)
	for i := range levels {
		pen.SetSym(i, i, 1)
	}
	block.penalty = pen
	m := mat.NewDense(len(rows), block.width, nil)
	for i, r := range rows {
		m.Set(i, block.levelIndex(col[r]), 1)
	}
	return block, m, nil
}

func coefficientNames(terms []*termBlock) []string {
	var names []string
	for _, b := range terms {
		switch b.kind {
		case kindIntercept:
			names = append(names, "(Intercept)")
		case kindLinear:
			names = append(names, b.label)
		case kindFactor:
			for _, l := range b.levels[1:] {
				names = append(names, b.column+l)
			}
		case kindSmooth:
			for j := 1; j <= b.width; j++ {
				names = append(names, fmt.Sprintf("%s.%d", b.label, j))
			}
		case kindRandom:
			for _, l := range b.levels {
				names = append(names, fmt.Sprintf("%s.%s", b.label, l))
			}
		}
	}
	return names
}

// rowFor fills dst with the design row for row i of data, using the bases,
// centers, and level codings fixed at fit time. Random intercept columns
// stay zero unless includeRandom is set, which is the population-level
// convention for marginal prediction.
func (d *design) rowFor(data *Frame, i int, dst []float64, includeRandom bool) error {
	if len(dst) != d.p() {
		return fmt.Errorf("design row: dst length %d, want %d", len(dst), d.p())
	}
	for j := range dst {
		dst[j] = 0
	}
	for _, b := range d.terms {
		switch b.kind {
		case kindIntercept:
			dst[b.start] = 1

		case kindLinear:
			v, err := numericAt(data, b.column, i)
			if err != nil {
				return err
			}
			z, err := b.transform.Forward(v)
			if err != nil {
				return fmt.Errorf("%s at row %d: %w", b.label, i, err)
			}
			dst[b.start] = z

		case kindFactor:
			v, err := factorAt(data, b.column, i)
			if err != nil {
				return err
			}
			idx := b.levelIndex(v)
			if idx < 0 {
				return fmt.Errorf("factor %q: unknown level %q at row %d", b.column, v, i)
			}
			if idx > 0 {
				dst[b.start+idx-1] = 1
			}

		case kindSmooth:
			v, err := numericAt(data, b.column, i)
			if err != nil {
				return err
			}
			z, err := b.transform.Forward(v)
			if err != nil {
				return fmt.Errorf("%s at row %d: %w", b.label, i, err)
			}
			row := make([]float64, b.width)
			b.basis.eval(z, row)
			for j := range row {
				dst[b.start+j] = row[j] - b.centers[j]
			}

		case kindRandom:
			if !includeRandom {
				continue
			}
			v, err := factorAt(data, b.column, i)
			if err != nil {
				return err
			}
			idx := b.levelIndex(v)
			if idx < 0 {
				return fmt.Errorf("random intercept %q: unknown level %q at row %d", b.column, v, i)
			}
			dst[b.start+idx] = 1
		}
	}
	return nil
}

func numericAt(data *Frame, name string, i int) (float64, error) {
	col, ok := data.Numeric(name)
	if !ok {
		return 0, fmt.Errorf("column %q: no such numeric column", name)
	}
	if math.IsNaN(col[i]) {
		return 0, fmt.Errorf("column %q: missing value at row %d", name, i)
	}
	return col[i], nil
}

func factorAt(data *Frame, name string, i int) (string, error) {
	col, ok := data.Factor(name)
	if !ok {
		return "", fmt.Errorf("column %q: no such factor column", name)
	}
	if col[i] == "" {
		return "", fmt.Errorf("column %q: missing value at row %d", name, i)
	}
	return col[i], nil
}
