package xlsx

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// SchemaError reports a workbook sheet, header, or cell that does not match
// the declared layout. Schema problems are fatal for the run: silently
// coercing a mistyped column would corrupt every model downstream.
type SchemaError struct {
	Sheet  string
	Column string
	Row    int // 1-based workbook row; 0 for sheet- or header-level problems
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("sheet %s: column %s, row %d: %s", e.Sheet, e.Column, e.Row, e.Reason)
	}
	if e.Column != "" {
		return fmt.Sprintf("sheet %s: column %s: %s", e.Sheet, e.Column, e.Reason)
	}
	return fmt.Sprintf("sheet %s: %s", e.Sheet, e.Reason)
}

type columnKind int

const (
	kindDate columnKind = iota
	kindText
	kindNumeric
)

type column struct {
	name string
	kind columnKind
}

// samplesSchema is the declared column order of the Samples sheet. One row
// per sampling event; the loader fails loudly on any header deviation.
var samplesSchema = []column{
	{"Date", kindDate},
	{"Station", kindText},
	{"Temp_C", kindNumeric},
	{"Salinity_PSU", kindNumeric},
	{"Turbidity_NTU", kindNumeric},
	{"Chlorophyll_ugL", kindNumeric},
	{"DO_Sat_Pct", kindNumeric},
	{"Herring_Catch", kindNumeric},
	{"Zoop_Density", kindNumeric},
	{"Shannon_H", kindNumeric},
	{"Acartia", kindNumeric},
	{"Centropages", kindNumeric},
	{"Eurytemora", kindNumeric},
	{"Oithona", kindNumeric},
	{"Pseudocalanus", kindNumeric},
	{"Temora", kindNumeric},
	{"Lat", kindNumeric},
	{"Lon", kindNumeric},
}

// stationsSchema is the declared column order of the Stations sheet.
var stationsSchema = []column{
	{"Station", kindText},
	{"Name", kindText},
	{"Lat", kindNumeric},
	{"Lon", kindNumeric},
}

// checkHeader validates the first row of a sheet against its schema.
func checkHeader(sheet string, header []string, schema []column) error {
	if len(header) != len(schema) {
		return &SchemaError{
			Sheet:  sheet,
			Reason: fmt.Sprintf("expected %d columns, found %d", len(schema), len(header)),
		}
	}
	for i, col := range schema {
		if header[i] != col.name {
			return &SchemaError{
				Sheet:  sheet,
				Column: col.name,
				Reason: fmt.Sprintf("header %d is %q, want %q", i+1, header[i], col.name),
			}
		}
	}
	return nil
}

// cellAt returns the cell in column i of a data row. GetRows trims trailing
// empty cells, so short rows read as empty strings.
func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// isNA reports the workbook's missing-value spellings.
func isNA(s string) bool {
	return s == "" || strings.EqualFold(s, "NA") || strings.EqualFold(s, "NaN")
}

// parseNumeric converts a numeric cell. Missing-value spellings become NaN;
// anything else that does not parse as a number is a schema error.
func parseNumeric(sheet, columnName string, row int, s string) (float64, error) {
	if isNA(s) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &SchemaError{
			Sheet:  sheet,
			Column: columnName,
			Row:    row,
			Reason: fmt.Sprintf("cannot parse %q as a number", s),
		}
	}
	return v, nil
}

// dateLayouts are the date spellings accepted in the Date column, tried in
// order. Excel serial numbers are handled separately.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"01-02-06",
}

// parseDate converts a Date cell. Returns ok=false for missing or
// unparseable dates; the caller drops (and counts) those rows.
func parseDate(s string) (time.Time, bool) {
	if isNA(s) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if d, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
