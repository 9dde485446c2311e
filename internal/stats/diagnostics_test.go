package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticsResiduals(t *testing.T) {
	fit, err := FitModel(ModelSpec{
		Response: "y", Family: FamilyGaussian, Link: LinkIdentity,
		Linear: []Linear{{Name: "x"}},
	}, trendFrame(t, 40), FitOptions{})
	require.NoError(t, err)

	diag, err := fit.Diagnostics()
	require.NoError(t, err)
	require.Len(t, diag.Pearson, 40)

	t.Run("gaussian pearson equals deviance residual", func(t *testing.T) {
		for i := range diag.Pearson {
			assert.InDelta(t, diag.Pearson[i], diag.Deviance[i], 1e-10)
		}
	})

	t.Run("standardization inflates by leverage", func(t *testing.T) {
		for i := range diag.Pearson {
			if diag.Pearson[i] > 0 {
				assert.Greater(t, diag.StdPearson[i]*math.Sqrt(fit.Dispersion), diag.Pearson[i]*0.99)
			}
		}
	})

	t.Run("rows map one to one without missing data", func(t *testing.T) {
		for i, r := range diag.Rows {
			assert.Equal(t, i, r)
		}
	})
}

func TestDiagnosticsRowsSkipDropped(t *testing.T) {
	f := NewFrame(10)
	x := make([]float64, 10)
	y := make([]float64, 10)
	for i := range x {
		x[i] = float64(i)
		y[i] = 2 * x[i]
	}
	y[4] = math.NaN()
	require.NoError(t, f.AddNumeric("x", x))
	require.NoError(t, f.AddNumeric("y", y))

	fit, err := FitModel(ModelSpec{
		Response: "y", Family: FamilyGaussian, Linear: []Linear{{Name: "x"}},
	}, f, FitOptions{})
	require.NoError(t, err)

	diag, err := fit.Diagnostics()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 5, 6, 7, 8, 9}, diag.Rows)
}

// outlierFrame puts one observation far from the trend at an extreme x, so
// it is both high leverage and high influence.
func outlierFrame(t *testing.T) *Frame {
	t.Helper()
	n := 31
	f := NewFrame(n)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < 30; i++ {
		x[i] = float64(i) / 29
		y[i] = 2 + 3*x[i] + 0.1*math.Sin(float64(i)*2.3)
	}
	x[30] = 10
	y[30] = 80 // trend predicts 32
	require.NoError(t, f.AddNumeric("x", x))
	require.NoError(t, f.AddNumeric("y", y))
	return f
}

func TestDiagnosticsFlagsInfluentialPoint(t *testing.T) {
	fit, err := FitModel(ModelSpec{
		Response: "y", Family: FamilyGaussian, Link: LinkIdentity,
		Linear: []Linear{{Name: "x"}},
	}, outlierFrame(t), FitOptions{})
	require.NoError(t, err)

	diag, err := fit.Diagnostics()
	require.NoError(t, err)

	assert.Contains(t, diag.HighLeverage, 30)
	assert.Contains(t, diag.HighInfluence, 30)
	assert.Greater(t, diag.Leverage[30], 0.9, "a lone point at x=10 dominates its own fit")
}

func TestRefitExcluding(t *testing.T) {
	fit, err := FitModel(ModelSpec{
		Response: "y", Family: FamilyGaussian, Link: LinkIdentity,
		Linear: []Linear{{Name: "x"}},
	}, outlierFrame(t), FitOptions{})
	require.NoError(t, err)

	refit, err := fit.RefitExcluding([]int{30})
	require.NoError(t, err)
	assert.Equal(t, fit.N-1, refit.N)

	// Without the distant point the slope returns to the trend.
	assert.InDelta(t, 3, refit.Coefficients[1], 0.1)
	assert.Greater(t, fit.Coefficients[1], 5.0, "the outlier tilts the full fit")

	t.Run("shift report ranks the slope change first", func(t *testing.T) {
		shifts := CompareFits(fit, refit)
		require.NotEmpty(t, shifts)
		byName := map[string]CoefShift{}
		for _, s := range shifts {
			byName[s.Name] = s
		}
		slope, ok := byName["x"]
		require.True(t, ok)
		assert.Greater(t, slope.RelChange, 0.1)
		assert.False(t, math.IsNaN(slope.SEShift))
		assert.Greater(t, slope.SEShift, 1.0, "a shift this large spans several standard errors")
	})

	t.Run("index validation", func(t *testing.T) {
		_, err := fit.RefitExcluding([]int{99})
		assert.Error(t, err)
		_, err = fit.RefitExcluding(nil)
		assert.Error(t, err)
	})
}

// lowSalinityFrame builds a survey-shaped table where the apparent salinity
// effect on log density rests on one low-salinity sample: the other sites
// sit in a narrow 18-30 PSU band with a nearly flat trend.
func lowSalinityFrame(t *testing.T) *Frame {
	t.Helper()
	n := 30
	f := NewFrame(n)
	sal := make([]float64, n)
	logDen := make([]float64, n)
	for i := 0; i < n-1; i++ {
		sal[i] = 18 + 12*float64(i)/float64(n-2)
		logDen[i] = 5 + 0.01*(sal[i]-24) + 0.05*math.Sin(float64(i)*2.3)
	}
	sal[n-1] = 2.0
	logDen[n-1] = 2.5
	require.NoError(t, f.AddNumeric("salinity_psu", sal))
	require.NoError(t, f.AddNumeric("log_density", logDen))
	return f
}

func TestLowSalinitySampleDrivesSalinityTerm(t *testing.T) {
	spec := ModelSpec{
		Response: "log_density", Family: FamilyGaussian, Link: LinkIdentity,
		Linear: []Linear{{Name: "salinity_psu"}},
	}
	fit, err := FitModel(spec, lowSalinityFrame(t), FitOptions{})
	require.NoError(t, err)

	diag, err := fit.Diagnostics()
	require.NoError(t, err)
	require.Contains(t, diag.HighInfluence, 29, "the low-salinity sample should be flagged")

	refit, err := fit.RefitExcluding([]int{29})
	require.NoError(t, err)

	full := fit.Coefficients[1]
	trimmed := refit.Coefficients[1]
	assert.Greater(t, full, 0.05, "one low-salinity sample props up the apparent effect")
	assert.Less(t, math.Abs(trimmed), math.Abs(full)/2, "excluding it collapses the salinity term")

	shifts := CompareFits(fit, refit)
	require.NotEmpty(t, shifts)
	var slope CoefShift
	for _, s := range shifts {
		if s.Name == "salinity_psu" {
			slope = s
		}
	}
	require.Equal(t, "salinity_psu", slope.Name)
	assert.Greater(t, slope.RelChange, 0.3)
	assert.Greater(t, slope.SEShift, 1.0)
}
