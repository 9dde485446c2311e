package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictOnNewData(t *testing.T) {
	fit, err := FitModel(ModelSpec{
		Response: "y", Family: FamilyGaussian, Link: LinkIdentity,
		Linear: []Linear{{Name: "x"}},
	}, trendFrame(t, 50), FitOptions{})
	require.NoError(t, err)

	nf := NewFrame(3)
	require.NoError(t, nf.AddNumeric("x", []float64{0, 5, 10}))
	preds, err := fit.Predict(nf, PredictOptions{})
	require.NoError(t, err)
	require.Len(t, preds, 3)

	for i, want := range []float64{2, 17, 32} {
		assert.InDelta(t, want, preds[i].Value, 0.3)
		assert.Greater(t, preds[i].SE, 0.0)
		assert.LessOrEqual(t, preds[i].Lower, preds[i].Value)
		assert.GreaterOrEqual(t, preds[i].Upper, preds[i].Value)
	}

	t.Run("wider level means wider band", func(t *testing.T) {
		wide, err := fit.Predict(nf, PredictOptions{Level: 0.99})
		require.NoError(t, err)
		for i := range preds {
			assert.Greater(t, wide[i].Upper-wide[i].Lower, preds[i].Upper-preds[i].Lower)
		}
	})
}

func TestPredictReversesResponseTransform(t *testing.T) {
	// Model log(y) with a Gaussian; predictions must come back in raw
	// units of y.
	n := 50
	f := NewFrame(n)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i) / float64(n-1) * 4
		y[i] = math.Exp(2+0.5*x[i]) * math.Exp(0.05*math.Sin(float64(i)*2.1))
	}
	require.NoError(t, f.AddNumeric("x", x))
	require.NoError(t, f.AddNumeric("y", y))

	fit, err := FitModel(ModelSpec{
		Response: "y", ResponseTransform: TransformLog,
		Family: FamilyGaussian, Link: LinkIdentity,
		Linear: []Linear{{Name: "x"}},
	}, f, FitOptions{})
	require.NoError(t, err)

	nf := NewFrame(2)
	require.NoError(t, nf.AddNumeric("x", []float64{1, 3}))
	preds, err := fit.Predict(nf, PredictOptions{})
	require.NoError(t, err)

	assert.InEpsilon(t, math.Exp(2.5), preds[0].Value, 0.1)
	assert.InEpsilon(t, math.Exp(3.5), preds[1].Value, 0.1)
	for _, p := range preds {
		assert.Positive(t, p.Lower, "log-scale bands can never cross zero after back-transform")
	}
}

func TestPredictErrors(t *testing.T) {
	f := seasonalFrame(t, 24)
	fit, err := FitModel(ModelSpec{
		Response: "y", Family: FamilyGaussian, Link: LinkIdentity,
		Linear:  []Linear{{Name: "x"}},
		Factors: []Factor{{Name: "season", Levels: []string{"Spring", "Summer", "Fall"}}},
	}, f, FitOptions{})
	require.NoError(t, err)

	t.Run("missing value", func(t *testing.T) {
		nf := NewFrame(1)
		require.NoError(t, nf.AddNumeric("x", []float64{math.NaN()}))
		require.NoError(t, nf.AddFactor("season", []string{"Spring"}))
		_, err := fit.Predict(nf, PredictOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing value")
	})

	t.Run("unknown factor level", func(t *testing.T) {
		nf := NewFrame(1)
		require.NoError(t, nf.AddNumeric("x", []float64{2}))
		require.NoError(t, nf.AddFactor("season", []string{"Winter"}))
		_, err := fit.Predict(nf, PredictOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown level")
	})

	t.Run("absent column", func(t *testing.T) {
		nf := NewFrame(1)
		require.NoError(t, nf.AddNumeric("x", []float64{2}))
		_, err := fit.Predict(nf, PredictOptions{})
		assert.Error(t, err)
	})

	t.Run("bad confidence level", func(t *testing.T) {
		nf := NewFrame(1)
		require.NoError(t, nf.AddNumeric("x", []float64{2}))
		require.NoError(t, nf.AddFactor("season", []string{"Fall"}))
		_, err := fit.Predict(nf, PredictOptions{Level: 1.2})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "confidence level")
	})
}
