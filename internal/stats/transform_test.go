package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformForward(t *testing.T) {
	tests := []struct {
		name     string
		tr       Transform
		in       float64
		expected float64
		wantErr  bool
	}{
		{"identity passes through", TransformIdentity, 3.5, 3.5, false},
		{"identity zero", TransformIdentity, 0, 0, false},
		{"identity negative", TransformIdentity, -2, -2, false},
		{"log of e", TransformLog, math.E, 1, false},
		{"log of one", TransformLog, 1, 0, false},
		{"log of zero rejected", TransformLog, 0, 0, true},
		{"log of negative rejected", TransformLog, -1, 0, true},
		{"log1p of zero", TransformLog1p, 0, 0, false},
		{"log1p of count", TransformLog1p, math.E - 1, 1, false},
		{"log1p above boundary", TransformLog1p, -0.5, math.Log1p(-0.5), false},
		{"log1p at boundary rejected", TransformLog1p, -1, 0, true},
		{"log1p below boundary rejected", TransformLog1p, -2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tr.Forward(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				var de *DomainError
				require.True(t, errors.As(err, &de))
				assert.Equal(t, tt.tr, de.Transform)
				assert.Equal(t, tt.in, de.Value)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-12)
		})
	}
}

func TestTransformForwardMissingValue(t *testing.T) {
	// NaN marks a missing value and must survive every transform so the
	// row-dropping logic downstream can see it.
	for _, tr := range []Transform{TransformIdentity, TransformLog, TransformLog1p} {
		t.Run(tr.String(), func(t *testing.T) {
			got, err := tr.Forward(math.NaN())
			require.NoError(t, err)
			assert.True(t, math.IsNaN(got))
		})
	}
}

func TestTransformRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		tr     Transform
		values []float64
	}{
		{"identity", TransformIdentity, []float64{-12.5, 0, 1e-9, 3.7, 4200}},
		{"log", TransformLog, []float64{1e-9, 0.5, 1, 17.3, 9600}},
		{"log1p", TransformLog1p, []float64{-0.999, 0, 0.25, 88, 14000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.values {
				z, err := tt.tr.Forward(v)
				require.NoError(t, err)
				assert.InDelta(t, v, tt.tr.Inverse(z), 1e-9*math.Max(1, math.Abs(v)))
			}
		})
	}
}

func TestTransformDescribe(t *testing.T) {
	assert.Equal(t, "herring_catch", TransformIdentity.Describe("herring_catch"))
	assert.Equal(t, "log(turbidity)", TransformLog.Describe("turbidity"))
	assert.Equal(t, "log1p(zoop_density)", TransformLog1p.Describe("zoop_density"))
}

func TestDomainErrorMessage(t *testing.T) {
	_, err := TransformLog.Forward(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log")
	assert.Contains(t, err.Error(), "0")
}
