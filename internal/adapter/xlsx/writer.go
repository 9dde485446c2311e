package xlsx

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/estuary-stats/internal/domain"
)

// WriteWorkbook writes a survey workbook in the declared schema: a Samples
// sheet with one row per observation and a Stations sheet with the site
// metadata. NaN measurements become empty cells. The loader reads exactly
// what this writes; genmock and tests build fixtures through it.
func WriteWorkbook(path, samplesSheet, stationsSheet string, obs []domain.Observation, stations []domain.Station) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", samplesSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", samplesSheet, err)
	}
	if _, err := f.NewSheet(stationsSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", stationsSheet, err)
	}

	if err := writeHeader(f, samplesSheet, samplesSchema); err != nil {
		return err
	}
	for i, o := range obs {
		row := i + 2
		cells := []any{
			o.Date.Format("2006-01-02"),
			o.Station.Label,
			o.TempC, o.SalinityPSU, o.TurbidityNTU, o.ChlorophyllUgL, o.DOSatPct, o.HerringCatch,
			o.ZoopDensity, o.ShannonH,
			o.Acartia, o.Centropages, o.Eurytemora, o.Oithona, o.Pseudocalanus, o.Temora,
			o.Lat, o.Lon,
		}
		if err := writeRow(f, samplesSheet, row, cells); err != nil {
			return err
		}
	}

	if err := writeHeader(f, stationsSheet, stationsSchema); err != nil {
		return err
	}
	for i, st := range stations {
		row := i + 2
		cells := []any{st.Label, st.Name, st.Lat, st.Lon}
		if err := writeRow(f, stationsSheet, row, cells); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, schema []column) error {
	for i, col := range schema {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col.name); err != nil {
			return fmt.Errorf("write header %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// writeRow writes one data row, skipping NaN values so they read back as
// missing.
func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	for i, v := range cells {
		if fv, ok := v.(float64); ok && math.IsNaN(fv) {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write cell %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
