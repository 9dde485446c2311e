package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/estuary-stats/internal/stats"
)

var (
	// ErrNoObservations is returned when a survey would contain zero rows.
	ErrNoObservations = errors.New("no observations after filtering")

	// ErrNotDerived is returned by accessors that need the derived grouping
	// keys before DeriveFeatures has run.
	ErrNotDerived = errors.New("survey features not derived")
)

// Station identifies one of the program's fixed sampling sites.
type Station struct {
	Code  int     // dense 1..k code assigned by NewSurvey, sorted by label
	Label string  // raw workbook label, e.g. "PE-06"
	Name  string  // descriptive name from the Stations sheet
	Lat   float64 // nominal site coordinates from the Stations sheet
	Lon   float64
}

// Observation is one sampling event: a (Date, Station) pair carrying the
// measurements taken on that visit. Missing numeric measurements are NaN.
type Observation struct {
	Date    time.Time
	Station Station

	// Water chemistry and effort covariates.
	TempC          float64 // surface temperature, degrees C
	SalinityPSU    float64
	TurbidityNTU   float64
	ChlorophyllUgL float64
	DOSatPct       float64 // dissolved oxygen, percent saturation
	HerringCatch   float64 // river-herring count at the weir that day

	// Zooplankton net-tow results.
	ZoopDensity   float64 // total density, individuals per cubic meter
	ShannonH      float64
	Acartia       float64
	Centropages   float64
	Eurytemora    float64
	Oithona       float64
	Pseudocalanus float64
	Temora        float64

	// Tow position fix. NaN when the logger had no GPS lock.
	Lat float64
	Lon float64

	// Derived grouping keys, set once by DeriveFeatures.
	Year        int
	Season      Season
	DayOfYear   int
	MonthName   string
	SampleEvent int    // season index + 3*(Year - baseline)
	EventLabel  string // "YYYY-Season", unique per (Year, Season)
}

// Taxon column names for the six copepod taxa the program counts, matching
// the workbook column order.
const (
	TaxonAcartia       = "acartia"
	TaxonCentropages   = "centropages"
	TaxonEurytemora    = "eurytemora"
	TaxonOithona       = "oithona"
	TaxonPseudocalanus = "pseudocalanus"
	TaxonTemora        = "temora"
)

// Taxa lists the six taxa in canonical column order.
func Taxa() []string {
	return []string{
		TaxonAcartia, TaxonCentropages, TaxonEurytemora,
		TaxonOithona, TaxonPseudocalanus, TaxonTemora,
	}
}

// TaxonDensity returns the recorded density for one taxon column.
func (o Observation) TaxonDensity(taxon string) (float64, bool) {
	switch taxon {
	case TaxonAcartia:
		return o.Acartia, true
	case TaxonCentropages:
		return o.Centropages, true
	case TaxonEurytemora:
		return o.Eurytemora, true
	case TaxonOithona:
		return o.Oithona, true
	case TaxonPseudocalanus:
		return o.Pseudocalanus, true
	case TaxonTemora:
		return o.Temora, true
	}
	return math.NaN(), false
}

// TaxaDensities returns the six per-taxon densities in canonical order.
func (o Observation) TaxaDensities() []float64 {
	return []float64{
		o.Acartia, o.Centropages, o.Eurytemora,
		o.Oithona, o.Pseudocalanus, o.Temora,
	}
}

// Column names of the model-ready frame built by [Survey.Frame].
const (
	ColTempC       = "temp_c"
	ColSalinity    = "salinity_psu"
	ColTurbidity   = "turbidity_ntu"
	ColChlorophyll = "chlorophyll_ugl"
	ColDOSat       = "do_sat_pct"
	ColHerring     = "herring_catch"

	ColZoopDensity = "zoop_density"
	ColShannon     = "shannon_h"

	ColDayOfYear   = "day_of_year"
	ColYear        = "year"
	ColSampleEvent = "sample_event"

	ColStation    = "station" // dense station code as a factor level
	ColSeason     = "season"
	ColYearFactor = "year_f"
	ColEvent      = "event" // "YYYY-Season" grouping key
)

// TransformFor returns the fitting transform designated for a predictor
// column. Turbidity and chlorophyll are strongly right-skewed and are
// modeled on the log scale; herring catch is count-like with real zeros and
// uses log1p. Everything else is fit untransformed.
func TransformFor(column string) stats.Transform {
	switch column {
	case ColTurbidity, ColChlorophyll:
		return stats.TransformLog
	case ColHerring:
		return stats.TransformLog1p
	}
	return stats.TransformIdentity
}

// AssignStationCodes maps raw station labels to dense codes 1..k sorted by
// label: distinct labels get distinct consecutive codes and label order is
// preserved, so the mapping is a strictly increasing bijection onto 1..k.
// Empty labels are ignored.
func AssignStationCodes(labels []string) map[string]int {
	distinct := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if l != "" {
			distinct[l] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(distinct))
	for l := range distinct {
		sorted = append(sorted, l)
	}
	sort.Strings(sorted)

	codes := make(map[string]int, len(sorted))
	for i, l := range sorted {
		codes[l] = i + 1
	}
	return codes
}

// Survey is a loaded survey dataset: observations joined to station
// metadata, with dense station codes assigned and load-time filtering
// accounted for.
type Survey struct {
	Observations []Observation
	Stations     []Station // sorted by label; Stations[i].Code == i+1
	BaselineYear int       // resolved by Derive; sample-event ordinals count from here
	DroppedRows  int       // workbook rows discarded for a missing or unparseable date
	ProducedAt   time.Time
}

// NewSurvey assembles a Survey from parsed observations and station records.
// Station codes are assigned here (sorted by label, 1..k) and stamped onto
// every observation, and observations are sorted by (Date, Station.Code).
//
// Errors: zero observations, duplicate or empty station labels, an
// observation referencing a station absent from stations, and duplicate
// (Date, Station) pairs.
func NewSurvey(obs []Observation, stations []Station, droppedRows int) (*Survey, error) {
	if len(obs) == 0 {
		return nil, ErrNoObservations
	}

	byLabel := make(map[string]Station, len(stations))
	labels := make([]string, 0, len(stations))
	for _, st := range stations {
		if st.Label == "" {
			return nil, errors.New("station record with empty label")
		}
		if _, dup := byLabel[st.Label]; dup {
			return nil, fmt.Errorf("duplicate station label %q", st.Label)
		}
		byLabel[st.Label] = st
		labels = append(labels, st.Label)
	}

	codes := AssignStationCodes(labels)
	coded := make([]Station, 0, len(byLabel))
	for label, st := range byLabel {
		st.Code = codes[label]
		byLabel[label] = st
		coded = append(coded, st)
	}
	sort.Slice(coded, func(i, j int) bool { return coded[i].Code < coded[j].Code })

	out := make([]Observation, len(obs))
	seen := make(map[string]struct{}, len(obs))
	for i, o := range obs {
		st, ok := byLabel[o.Station.Label]
		if !ok {
			return nil, fmt.Errorf("observation %d: station %q not in the stations sheet", i, o.Station.Label)
		}
		o.Station = st

		key := o.Date.Format("2006-01-02") + "|" + st.Label
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate sampling event: %s at station %s", o.Date.Format("2006-01-02"), st.Label)
		}
		seen[key] = struct{}{}
		out[i] = o
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Station.Code < out[j].Station.Code
	})

	return &Survey{
		Observations: out,
		Stations:     coded,
		DroppedRows:  droppedRows,
		ProducedAt:   clock.Now(),
	}, nil
}

// Derive computes the derived grouping keys for every observation in place
// and records the resolved baseline year. A baselineYear of 0 selects the
// earliest observed year.
func (s *Survey) Derive(baselineYear int) error {
	derived, baseline, err := DeriveFeatures(s.Observations, baselineYear)
	if err != nil {
		return err
	}
	s.Observations = derived
	s.BaselineYear = baseline
	return nil
}

// Frame converts the survey into the model-ready column layout consumed by
// the stats package. Numeric columns use NaN for missing values; the factor
// columns are station code, season, year, and sample-event label. Derive
// must have run first.
func (s *Survey) Frame() (*stats.Frame, error) {
	if s.BaselineYear == 0 {
		return nil, ErrNotDerived
	}
	n := len(s.Observations)
	f := stats.NewFrame(n)

	numeric := []struct {
		name string
		get  func(Observation) float64
	}{
		{ColTempC, func(o Observation) float64 { return o.TempC }},
		{ColSalinity, func(o Observation) float64 { return o.SalinityPSU }},
		{ColTurbidity, func(o Observation) float64 { return o.TurbidityNTU }},
		{ColChlorophyll, func(o Observation) float64 { return o.ChlorophyllUgL }},
		{ColDOSat, func(o Observation) float64 { return o.DOSatPct }},
		{ColHerring, func(o Observation) float64 { return o.HerringCatch }},
		{ColZoopDensity, func(o Observation) float64 { return o.ZoopDensity }},
		{ColShannon, func(o Observation) float64 { return o.ShannonH }},
		{ColDayOfYear, func(o Observation) float64 { return float64(o.DayOfYear) }},
		{ColYear, func(o Observation) float64 { return float64(o.Year) }},
		{ColSampleEvent, func(o Observation) float64 { return float64(o.SampleEvent) }},
	}
	for ti, taxon := range Taxa() {
		ti := ti
		numeric = append(numeric, struct {
			name string
			get  func(Observation) float64
		}{taxon, func(o Observation) float64 { return o.TaxaDensities()[ti] }})
	}
	for _, col := range numeric {
		vals := make([]float64, n)
		for i, o := range s.Observations {
			vals[i] = col.get(o)
		}
		if err := f.AddNumeric(col.name, vals); err != nil {
			return nil, fmt.Errorf("build frame: %w", err)
		}
	}

	factors := []struct {
		name string
		get  func(Observation) string
	}{
		{ColStation, func(o Observation) string { return strconv.Itoa(o.Station.Code) }},
		{ColSeason, func(o Observation) string { return o.Season.String() }},
		{ColYearFactor, func(o Observation) string { return strconv.Itoa(o.Year) }},
		{ColEvent, func(o Observation) string { return o.EventLabel }},
	}
	for _, col := range factors {
		vals := make([]string, n)
		for i, o := range s.Observations {
			vals[i] = col.get(o)
		}
		if err := f.AddFactor(col.name, vals); err != nil {
			return nil, fmt.Errorf("build frame: %w", err)
		}
	}

	return f, nil
}

// Years returns the distinct sampled years in increasing order.
func (s *Survey) Years() []int {
	seen := make(map[int]struct{})
	for _, o := range s.Observations {
		seen[o.Date.Year()] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// MeanLocations returns one Station per site with Lat/Lon replaced by the
// mean tow fix over that station's observations. Stations with no usable
// fixes keep their nominal sheet coordinates.
func (s *Survey) MeanLocations() []Station {
	out := make([]Station, len(s.Stations))
	copy(out, s.Stations)
	for i := range out {
		var sumLat, sumLon float64
		var n int
		for _, o := range s.Observations {
			if o.Station.Code != out[i].Code {
				continue
			}
			if math.IsNaN(o.Lat) || math.IsNaN(o.Lon) {
				continue
			}
			sumLat += o.Lat
			sumLon += o.Lon
			n++
		}
		if n > 0 {
			out[i].Lat = sumLat / float64(n)
			out[i].Lon = sumLon / float64(n)
		}
	}
	return out
}
