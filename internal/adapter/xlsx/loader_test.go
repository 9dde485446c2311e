package xlsx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/estuary-stats/internal/config"
	"github.com/couchcryptid/estuary-stats/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(path string) *config.Config {
	return &config.Config{
		WorkbookPath:  path,
		SamplesSheet:  "Samples",
		StationsSheet: "Stations",
	}
}

func fixtureStations() []domain.Station {
	return []domain.Station{
		{Label: "PE-03", Name: "Verona Narrows", Lat: 44.60, Lon: -68.80},
		{Label: "PE-06", Name: "Bucksport Reach", Lat: 44.57, Lon: -68.79},
		{Label: "PE-09", Name: "Odom Ledge", Lat: 44.52, Lon: -68.80},
		{Label: "PE-12", Name: "Fort Point", Lat: 44.47, Lon: -68.81},
	}
}

func fixtureObservation(t *testing.T, date, label string) domain.Observation {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	return domain.Observation{
		Date:           d,
		Station:        domain.Station{Label: label},
		TempC:          12.5,
		SalinityPSU:    18.2,
		TurbidityNTU:   3.1,
		ChlorophyllUgL: 2.4,
		DOSatPct:       96.0,
		HerringCatch:   12,
		ZoopDensity:    1500,
		ShannonH:       1.3,
		Acartia:        700,
		Centropages:    100,
		Eurytemora:     250,
		Oithona:        180,
		Pseudocalanus:  60,
		Temora:         15,
		Lat:            44.6,
		Lon:            -68.8,
	}
}

func samplesHeader() []any {
	header := make([]any, len(samplesSchema))
	for i, col := range samplesSchema {
		header[i] = col.name
	}
	return header
}

func stationsHeader() []any {
	return []any{"Station", "Name", "Lat", "Lon"}
}

func stationRows() [][]any {
	rows := [][]any{stationsHeader()}
	for _, st := range fixtureStations() {
		rows = append(rows, []any{st.Label, st.Name, st.Lat, st.Lon})
	}
	return rows
}

// sampleRow builds a full data row with plausible values; date, station, and
// turbidity are the cells the tests tamper with.
func sampleRow(date, station any, turbidity any) []any {
	return []any{date, station, 12.5, 18.2, turbidity, 2.4, 96.0, 12.0, 1500.0, 1.3,
		700.0, 100.0, 250.0, 180.0, 60.0, 15.0, 44.6, -68.8}
}

// writeRaw writes sheets cell by cell so tests can produce malformed
// workbooks the writer refuses to. A nil cell stays unset.
func writeRaw(t *testing.T, path string, samples, stations [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Samples"))
	if stations != nil {
		_, err := f.NewSheet("Stations")
		require.NoError(t, err)
	}

	write := func(sheet string, rows [][]any) {
		for r, row := range rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(sheet, cell, v))
			}
		}
	}
	write("Samples", samples)
	if stations != nil {
		write("Stations", stations)
	}

	require.NoError(t, f.SaveAs(path))
}

func TestLoad_RoundTrip(t *testing.T) {
	o1 := fixtureObservation(t, "2019-04-15", "PE-03")
	o2 := fixtureObservation(t, "2019-04-15", "PE-12")
	o2.SalinityPSU = math.NaN()
	o3 := fixtureObservation(t, "2020-07-20", "PE-06")
	o3.TempC = 19.2

	path := filepath.Join(t.TempDir(), "survey.xlsx")
	require.NoError(t, WriteWorkbook(path, "Samples", "Stations",
		[]domain.Observation{o3, o1, o2}, fixtureStations()))

	survey, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, survey.Observations, 3)
	assert.Equal(t, 0, survey.DroppedRows)
	assert.Equal(t, 2019, survey.BaselineYear)

	// sorted by (date, station code), metadata joined, features derived
	got := survey.Observations
	assert.Equal(t, "PE-03", got[0].Station.Label)
	assert.Equal(t, 1, got[0].Station.Code)
	assert.Equal(t, "Verona Narrows", got[0].Station.Name)
	assert.Equal(t, "PE-12", got[1].Station.Label)
	assert.Equal(t, 4, got[1].Station.Code)
	assert.Equal(t, "PE-06", got[2].Station.Label)

	assert.Equal(t, 12.5, got[0].TempC)
	assert.Equal(t, 19.2, got[2].TempC)
	assert.True(t, math.IsNaN(got[1].SalinityPSU))
	assert.Equal(t, 700.0, got[0].Acartia)

	assert.Equal(t, domain.Spring, got[0].Season)
	assert.Equal(t, 1, got[0].SampleEvent)
	assert.Equal(t, "2020-Summer", got[2].EventLabel)
	assert.Equal(t, 5, got[2].SampleEvent)

	require.Len(t, survey.Stations, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{
		survey.Stations[0].Code, survey.Stations[1].Code,
		survey.Stations[2].Code, survey.Stations[3].Code,
	})
}

func TestLoad_DropsMissingDates(t *testing.T) {
	samples := [][]any{
		samplesHeader(),
		sampleRow("2019-04-15", "PE-03", 3.1),
		sampleRow(nil, "PE-06", 3.1),
		sampleRow("NA", "PE-09", 3.1),
		sampleRow("sometime in spring", "PE-12", 3.1),
	}
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	writeRaw(t, path, samples, stationRows())

	survey, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, survey.Observations, 1)
	assert.Equal(t, 3, survey.DroppedRows)
}

func TestLoad_SerialDate(t *testing.T) {
	samples := [][]any{
		samplesHeader(),
		sampleRow(43570.0, "PE-03", 3.1), // Excel serial for 2019-04-15
	}
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	writeRaw(t, path, samples, stationRows())

	survey, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, survey.Observations, 1)
	assert.Equal(t, time.Date(2019, 4, 15, 0, 0, 0, 0, time.UTC), survey.Observations[0].Date)
}

func TestLoad_HeaderNameMismatch(t *testing.T) {
	samples := [][]any{samplesHeader(), sampleRow("2019-04-15", "PE-03", 3.1)}
	samples[0][2] = "Temp" // want Temp_C

	path := filepath.Join(t.TempDir(), "survey.xlsx")
	writeRaw(t, path, samples, stationRows())

	_, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "Samples", schemaErr.Sheet)
	assert.Equal(t, "Temp_C", schemaErr.Column)
	assert.Contains(t, schemaErr.Error(), `"Temp"`)
}

func TestLoad_HeaderCountMismatch(t *testing.T) {
	header := samplesHeader()
	samples := [][]any{header[:len(header)-1]}

	path := filepath.Join(t.TempDir(), "survey.xlsx")
	writeRaw(t, path, samples, stationRows())

	_, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Reason, "expected 18 columns, found 17")
}

func TestLoad_NonNumericCell(t *testing.T) {
	samples := [][]any{
		samplesHeader(),
		sampleRow("2019-04-15", "PE-03", 3.1),
		sampleRow("2019-07-20", "PE-03", "high"),
	}
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	writeRaw(t, path, samples, stationRows())

	_, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "Turbidity_NTU", schemaErr.Column)
	assert.Equal(t, 3, schemaErr.Row)
	assert.Contains(t, schemaErr.Reason, `"high"`)
}

func TestLoad_EmptyStationCell(t *testing.T) {
	samples := [][]any{
		samplesHeader(),
		sampleRow("2019-04-15", nil, 3.1),
	}
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	writeRaw(t, path, samples, stationRows())

	_, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "Station", schemaErr.Column)
	assert.Equal(t, 2, schemaErr.Row)
}

func TestLoad_UnknownStation(t *testing.T) {
	samples := [][]any{
		samplesHeader(),
		sampleRow("2019-04-15", "PE-99", 3.1),
	}
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	writeRaw(t, path, samples, stationRows())

	_, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"PE-99"`)
}

func TestLoad_DuplicateEvent(t *testing.T) {
	samples := [][]any{
		samplesHeader(),
		sampleRow("2019-04-15", "PE-03", 3.1),
		sampleRow("2019-04-15", "PE-03", 4.0),
	}
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	writeRaw(t, path, samples, stationRows())

	_, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate sampling event")
}

func TestLoad_NoDataRows(t *testing.T) {
	samples := [][]any{samplesHeader()}
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	writeRaw(t, path, samples, stationRows())

	_, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoObservations)
}

func TestLoad_MissingStationsSheet(t *testing.T) {
	samples := [][]any{samplesHeader(), sampleRow("2019-04-15", "PE-03", 3.1)}
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	writeRaw(t, path, samples, nil)

	_, err := NewLoader(testConfig(path), testLogger()).Load(context.Background())
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "Stations", schemaErr.Sheet)
}

func TestLoad_MissingWorkbook(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "absent.xlsx"))
	_, err := NewLoader(cfg, testLogger()).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open workbook")
}

func TestLoad_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(testConfig("irrelevant.xlsx"), testLogger()).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
