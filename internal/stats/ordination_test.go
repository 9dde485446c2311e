package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdinateCollinearColumns(t *testing.T) {
	// Three columns moving together along one direction: the first axis
	// must carry essentially all the variance.
	n := 12
	f := NewFrame(n)
	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	for i := 0; i < n; i++ {
		ti := float64(i)
		a[i] = 1 + 2*ti
		b[i] = 5 - ti
		c[i] = 0.5 * ti
	}
	require.NoError(t, f.AddNumeric("a", a))
	require.NoError(t, f.AddNumeric("b", b))
	require.NoError(t, f.AddNumeric("c", c))

	labels := make([]string, n)
	for i := range labels {
		labels[i] = string(rune('a' + i))
	}
	ord, err := Ordinate(f, []string{"a", "b", "c"}, labels, TransformIdentity)
	require.NoError(t, err)

	require.Len(t, ord.Points, n)
	assert.InDelta(t, 1, ord.Explained[0], 1e-9)
	assert.InDelta(t, 0, ord.Explained[1], 1e-9)
	assert.Equal(t, "a", ord.Points[0].Label)
	assert.Equal(t, 0, ord.Dropped)

	t.Run("second axis collapses", func(t *testing.T) {
		for _, p := range ord.Points {
			assert.InDelta(t, 0, p.Y, 1e-8)
		}
	})

	t.Run("scores center at zero", func(t *testing.T) {
		var sum float64
		for _, p := range ord.Points {
			sum += p.X
		}
		assert.InDelta(t, 0, sum, 1e-8)
	})
}

func TestOrdinateDropsIncompleteRows(t *testing.T) {
	f := NewFrame(6)
	require.NoError(t, f.AddNumeric("a", []float64{1, 2, math.NaN(), 4, 5, 6}))
	require.NoError(t, f.AddNumeric("b", []float64{2, 1, 3, math.NaN(), 2, 4}))

	ord, err := Ordinate(f, []string{"a", "b"}, nil, TransformIdentity)
	require.NoError(t, err)
	assert.Equal(t, 2, ord.Dropped)
	assert.Len(t, ord.Points, 4)
}

func TestOrdinateTransform(t *testing.T) {
	f := NewFrame(4)
	require.NoError(t, f.AddNumeric("a", []float64{0, 3, 7, 15}))
	require.NoError(t, f.AddNumeric("b", []float64{1, 0, 2, 4}))

	t.Run("log1p accepts zero counts", func(t *testing.T) {
		_, err := Ordinate(f, []string{"a", "b"}, nil, TransformLog1p)
		assert.NoError(t, err)
	})

	t.Run("log rejects zero counts", func(t *testing.T) {
		_, err := Ordinate(f, []string{"a", "b"}, nil, TransformLog)
		require.Error(t, err)
		var de *DomainError
		assert.True(t, errors.As(err, &de))
	})
}

func TestOrdinateErrors(t *testing.T) {
	f := NewFrame(4)
	require.NoError(t, f.AddNumeric("a", []float64{1, 2, 3, 4}))

	t.Run("too few columns", func(t *testing.T) {
		_, err := Ordinate(f, []string{"a"}, nil, TransformIdentity)
		assert.Error(t, err)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := Ordinate(f, []string{"a", "zzz"}, nil, TransformIdentity)
		assert.Error(t, err)
	})

	t.Run("label length mismatch", func(t *testing.T) {
		g := NewFrame(3)
		require.NoError(t, g.AddNumeric("a", []float64{1, 2, 3}))
		require.NoError(t, g.AddNumeric("b", []float64{3, 2, 1}))
		_, err := Ordinate(g, []string{"a", "b"}, []string{"only-one"}, TransformIdentity)
		assert.Error(t, err)
	})

	t.Run("too few complete rows", func(t *testing.T) {
		g := NewFrame(2)
		require.NoError(t, g.AddNumeric("a", []float64{1, 2}))
		require.NoError(t, g.AddNumeric("b", []float64{2, 1}))
		_, err := Ordinate(g, []string{"a", "b"}, nil, TransformIdentity)
		assert.Error(t, err)
	})
}
