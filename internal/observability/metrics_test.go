package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsIsolated(t *testing.T) {
	// Per-instance registries: constructing twice must not panic with
	// duplicate registration.
	a := NewMetrics()
	b := NewMetrics()

	a.FitErrors.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.FitErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FitErrors))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObservationsLoaded.Set(58)
	m.FitsTotal.WithLabelValues("gaussian").Inc()
	m.FitsTotal.WithLabelValues("gamma").Add(2)
	m.FitsNotConverged.Inc()

	path := filepath.Join(t.TempDir(), "estuary.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "estuary_observations_loaded 58")
	assert.Contains(t, text, `estuary_fits_total{family="gamma"} 2`)
	assert.Contains(t, text, `estuary_fits_total{family="gaussian"} 1`)
	assert.Contains(t, text, "estuary_fits_not_converged_total 1")
}
