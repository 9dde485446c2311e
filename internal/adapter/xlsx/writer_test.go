package xlsx

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/estuary-stats/internal/domain"
)

func TestWriteWorkbook_Layout(t *testing.T) {
	o := fixtureObservation(t, "2019-04-15", "PE-03")
	o.TurbidityNTU = math.NaN()

	path := filepath.Join(t.TempDir(), "survey.xlsx")
	require.NoError(t, WriteWorkbook(path, "Samples", "Stations",
		[]domain.Observation{o}, fixtureStations()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Samples")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	wantHeader := make([]string, len(samplesSchema))
	for i, col := range samplesSchema {
		wantHeader[i] = col.name
	}
	assert.Equal(t, wantHeader, rows[0])

	assert.Equal(t, "2019-04-15", rows[1][0])
	assert.Equal(t, "PE-03", rows[1][1])
	assert.Equal(t, "12.5", rows[1][2])
	assert.Equal(t, "", rows[1][4], "NaN must become an empty cell")

	stations, err := f.GetRows("Stations")
	require.NoError(t, err)
	require.Len(t, stations, 5)
	assert.Equal(t, []string{"Station", "Name", "Lat", "Lon"}, stations[0])
	assert.Equal(t, "PE-03", stations[1][0])
	assert.Equal(t, "Verona Narrows", stations[1][1])
}
