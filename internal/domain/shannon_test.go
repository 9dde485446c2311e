package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShannonIndex(t *testing.T) {
	tests := []struct {
		name      string
		densities []float64
		want      float64
	}{
		{"even community of four", []float64{25, 25, 25, 25}, math.Log(4)},
		{"single taxon", []float64{120, 0, 0}, 0},
		{"zeros contribute nothing", []float64{10, 10, 0, 0, 0, 0}, math.Log(2)},
		{"uneven split", []float64{2, 1, 1}, 1.5 * math.Log(2)},
		{"scale invariant", []float64{200, 100, 100}, 1.5 * math.Log(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ShannonIndex(tt.densities), 1e-12)
		})
	}
}

func TestShannonIndexBoundedByRichness(t *testing.T) {
	densities := []float64{812, 120, 330, 215, 84, 19}
	h := ShannonIndex(densities)

	assert.Greater(t, h, 0.0)
	assert.Less(t, h, math.Log(float64(len(densities))))
}

func TestShannonIndexUndefined(t *testing.T) {
	assert.True(t, math.IsNaN(ShannonIndex(nil)))
	assert.True(t, math.IsNaN(ShannonIndex([]float64{0, 0, 0})))
	assert.True(t, math.IsNaN(ShannonIndex([]float64{10, math.NaN()})))
	assert.True(t, math.IsNaN(ShannonIndex([]float64{10, -1})))
}
