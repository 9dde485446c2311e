package xlsx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/estuary-stats/internal/config"
	"github.com/couchcryptid/estuary-stats/internal/domain"
)

// Loader reads survey workbooks into the domain model.
// It implements pipeline.SurveyLoader.
type Loader struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewLoader creates a workbook loader for the configured path and sheets.
func NewLoader(cfg *config.Config, logger *slog.Logger) *Loader {
	return &Loader{cfg: cfg, logger: logger}
}

// Load reads the configured workbook, assembles the survey, and derives its
// features. Rows with a missing or unparseable date are dropped and counted;
// schema mismatches, unknown stations, and duplicate (date, station) pairs
// are errors.
func (l *Loader) Load(ctx context.Context) (*domain.Survey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(l.cfg.WorkbookPath)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", l.cfg.WorkbookPath, err)
	}
	defer f.Close()

	obs, dropped, err := l.readSamples(f)
	if err != nil {
		return nil, err
	}
	stations, err := l.readStations(f)
	if err != nil {
		return nil, err
	}

	survey, err := domain.NewSurvey(obs, stations, dropped)
	if err != nil {
		return nil, fmt.Errorf("assemble survey: %w", err)
	}
	if err := survey.Derive(l.cfg.BaselineYear); err != nil {
		return nil, fmt.Errorf("derive features: %w", err)
	}

	l.logger.Info("survey loaded",
		"workbook", l.cfg.WorkbookPath,
		"observations", len(survey.Observations),
		"stations", len(survey.Stations),
		"dropped_rows", survey.DroppedRows,
		"baseline_year", survey.BaselineYear,
	)
	return survey, nil
}

func (l *Loader) readSamples(f *excelize.File) ([]domain.Observation, int, error) {
	sheet := l.cfg.SamplesSheet
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, 0, &SchemaError{Sheet: sheet, Reason: err.Error()}
	}
	if len(rows) == 0 {
		return nil, 0, &SchemaError{Sheet: sheet, Reason: "missing header row"}
	}
	if err := checkHeader(sheet, rows[0], samplesSchema); err != nil {
		return nil, 0, err
	}

	var obs []domain.Observation
	var dropped int
	for r, row := range rows[1:] {
		wbRow := r + 2 // 1-based, after the header

		date, ok := parseDate(cellAt(row, 0))
		if !ok {
			dropped++
			continue
		}

		label := cellAt(row, 1)
		if label == "" {
			return nil, 0, &SchemaError{Sheet: sheet, Column: "Station", Row: wbRow, Reason: "station label is empty"}
		}

		nums := make([]float64, len(samplesSchema)-2)
		for i := 2; i < len(samplesSchema); i++ {
			v, err := parseNumeric(sheet, samplesSchema[i].name, wbRow, cellAt(row, i))
			if err != nil {
				return nil, 0, err
			}
			nums[i-2] = v
		}

		obs = append(obs, domain.Observation{
			Date:    date,
			Station: domain.Station{Label: label},

			TempC:          nums[0],
			SalinityPSU:    nums[1],
			TurbidityNTU:   nums[2],
			ChlorophyllUgL: nums[3],
			DOSatPct:       nums[4],
			HerringCatch:   nums[5],

			ZoopDensity:   nums[6],
			ShannonH:      nums[7],
			Acartia:       nums[8],
			Centropages:   nums[9],
			Eurytemora:    nums[10],
			Oithona:       nums[11],
			Pseudocalanus: nums[12],
			Temora:        nums[13],

			Lat: nums[14],
			Lon: nums[15],
		})
	}
	return obs, dropped, nil
}

func (l *Loader) readStations(f *excelize.File) ([]domain.Station, error) {
	sheet := l.cfg.StationsSheet
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &SchemaError{Sheet: sheet, Reason: err.Error()}
	}
	if len(rows) == 0 {
		return nil, &SchemaError{Sheet: sheet, Reason: "missing header row"}
	}
	if err := checkHeader(sheet, rows[0], stationsSchema); err != nil {
		return nil, err
	}

	var stations []domain.Station
	for r, row := range rows[1:] {
		wbRow := r + 2

		label := cellAt(row, 0)
		if label == "" {
			return nil, &SchemaError{Sheet: sheet, Column: "Station", Row: wbRow, Reason: "station label is empty"}
		}
		lat, err := parseNumeric(sheet, "Lat", wbRow, cellAt(row, 2))
		if err != nil {
			return nil, err
		}
		lon, err := parseNumeric(sheet, "Lon", wbRow, cellAt(row, 3))
		if err != nil {
			return nil, err
		}

		stations = append(stations, domain.Station{
			Label: label,
			Name:  cellAt(row, 1),
			Lat:   lat,
			Lon:   lon,
		})
	}
	return stations, nil
}
