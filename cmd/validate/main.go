// Command validate performs data integrity checks on a survey workbook
// before it goes anywhere near a model: station code assignment,
// sample-event ordinals, transform domains for every column the model
// suite transforms, and diversity-index consistency against the raw taxa
// counts.
//
// Usage:
//
//	go run ./cmd/validate -workbook survey_mock.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/couchcryptid/estuary-stats/internal/adapter/xlsx"
	"github.com/couchcryptid/estuary-stats/internal/config"
	"github.com/couchcryptid/estuary-stats/internal/domain"
	"github.com/couchcryptid/estuary-stats/internal/observability"
	"github.com/couchcryptid/estuary-stats/internal/pipeline"
	"github.com/couchcryptid/estuary-stats/internal/stats"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	workbook := flag.String("workbook", os.Getenv("SURVEY_WORKBOOK"), "path to the survey workbook")
	samplesSheet := flag.String("samples-sheet", "Samples", "sheet name for sample rows")
	stationsSheet := flag.String("stations-sheet", "Stations", "sheet name for station records")
	baselineYear := flag.Int("baseline-year", 0, "sample-event baseline year; 0 selects the earliest observed year")
	flag.Parse()

	if *workbook == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*workbook, *samplesSheet, *stationsSheet, *baselineYear); code != 0 {
		os.Exit(code)
	}
}

func run(workbook, samplesSheet, stationsSheet string, baselineYear int) int {
	cfg := &config.Config{
		WorkbookPath:  workbook,
		SamplesSheet:  samplesSheet,
		StationsSheet: stationsSheet,
		BaselineYear:  baselineYear,
		LogLevel:      "warn",
		LogFormat:     "text",
	}
	logger := observability.NewLogger(cfg)

	// ── Load the workbook ──
	fmt.Println("=== Survey Workbook Integrity Validation ===")
	fmt.Println()

	survey, err := xlsx.NewLoader(cfg, logger).Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load workbook: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateStationCodes(survey),
		validateSampleEvents(survey),
		validateTransformDomains(survey),
		validateDiversity(survey),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d observations, %d stations, %d workbook rows dropped\n",
		len(survey.Observations), len(survey.Stations), survey.DroppedRows)

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Station Codes ──
// Station codes must be a dense 1..k bijection over the distinct labels,
// sorted by label, and every observation must carry its station's code.

func validateStationCodes(s *domain.Survey) *phase {
	p := &phase{name: "Phase 1: Station Codes (dense 1..k)"}

	labels := make([]string, len(s.Stations))
	byLabel := make(map[string]domain.Station, len(s.Stations))
	for i, st := range s.Stations {
		labels[i] = st.Label
		if st.Code != i+1 {
			p.errorf("station %q: code %d at position %d, want %d", st.Label, st.Code, i, i+1)
		}
		if i > 0 && s.Stations[i-1].Label >= st.Label {
			p.errorf("station list not sorted by label: %q before %q", s.Stations[i-1].Label, st.Label)
		}
		byLabel[st.Label] = st
	}

	// Re-run the code assignment and compare.
	codes := domain.AssignStationCodes(labels)
	if len(codes) != len(s.Stations) {
		p.errorf("code map has %d entries for %d stations (duplicate labels?)", len(codes), len(s.Stations))
	}
	for _, st := range s.Stations {
		if codes[st.Label] != st.Code {
			p.errorf("station %q: assigned code %d, recomputed %d", st.Label, st.Code, codes[st.Label])
		}
	}

	for i := range s.Observations {
		o := &s.Observations[i]
		st, ok := byLabel[o.Station.Label]
		if !ok {
			p.errorf("observation %d: station %q not in the station list", i, o.Station.Label)
			continue
		}
		if o.Station.Code != st.Code {
			p.errorf("observation %d: station %q carries code %d, station list says %d",
				i, o.Station.Label, o.Station.Code, st.Code)
		}
	}
	return p
}

// ── Phase 2: Sample-Event Ordinals ──
// The sample-event ordinal must equal season index + 3*(year - baseline),
// never run backwards in date order, and pair 1:1 with the event label.

func validateSampleEvents(s *domain.Survey) *phase {
	p := &phase{name: "Phase 2: Sample-Event Ordinals"}

	byOrdinal := map[int]string{}
	byLabel := map[string]int{}
	for i := range s.Observations {
		o := &s.Observations[i]
		want := o.Season.Index() + 3*(o.Year-s.BaselineYear)
		if o.SampleEvent != want {
			p.errorf("observation %d (%s): sample_event %d, want %d",
				i, o.Date.Format("2006-01-02"), o.SampleEvent, want)
		}
		wantLabel := fmt.Sprintf("%d-%s", o.Year, o.Season)
		if o.EventLabel != wantLabel {
			p.errorf("observation %d: event label %q, want %q", i, o.EventLabel, wantLabel)
		}

		if l, seen := byOrdinal[o.SampleEvent]; seen && l != o.EventLabel {
			p.errorf("ordinal %d maps to both %q and %q", o.SampleEvent, l, o.EventLabel)
		}
		byOrdinal[o.SampleEvent] = o.EventLabel
		if n, seen := byLabel[o.EventLabel]; seen && n != o.SampleEvent {
			p.errorf("event label %q maps to both %d and %d", o.EventLabel, n, o.SampleEvent)
		}
		byLabel[o.EventLabel] = o.SampleEvent
	}

	// Observations are date-sorted, so ordinals must be non-decreasing.
	for i := 1; i < len(s.Observations); i++ {
		prev, cur := s.Observations[i-1].SampleEvent, s.Observations[i].SampleEvent
		if cur < prev {
			p.errorf("observation %d: ordinal %d after %d; events run backwards in date order", i, cur, prev)
		}
	}
	return p
}

// ── Phase 3: Transform Domains ──
// Every column the model suite log- or log1p-transforms, and every Gamma
// response, is checked against its domain. Missing values are skipped:
// those rows drop at fit time rather than violating a domain.

// columnRule is the strictest requirement the model suite places on one
// column.
type columnRule struct {
	tr    stats.Transform
	gamma bool // column is a Gamma-family response in some plan
}

func validateTransformDomains(s *domain.Survey) *phase {
	p := &phase{name: "Phase 3: Transform Domains"}

	rules := suiteRules()
	cols := make([]string, 0, len(rules))
	for col := range rules {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		r := rules[col]
		bad, firstRow, firstVal := 0, -1, 0.0
		for i := range s.Observations {
			v, ok := columnValue(&s.Observations[i], col)
			if !ok {
				p.errorf("%s: no such column on observations", col)
				break
			}
			if math.IsNaN(v) {
				continue
			}
			violated := (r.tr == stats.TransformLog && v <= 0) ||
				(r.tr == stats.TransformLog1p && v < 0) ||
				(r.gamma && v <= 0)
			if violated {
				bad++
				if firstRow < 0 {
					firstRow, firstVal = i, v
				}
			}
		}
		if bad > 0 {
			p.errorf("%s: %d value(s) outside the %s domain, first at observation %d: %g",
				col, bad, describeRule(r), firstRow, firstVal)
		}
	}
	return p
}

// suiteRules collects per-column requirements from every model plan the
// analyze command fits, so this tool stays in lockstep with the suite.
func suiteRules() map[string]*columnRule {
	rules := map[string]*columnRule{}
	get := func(col string) *columnRule {
		r, ok := rules[col]
		if !ok {
			r = &columnRule{tr: stats.TransformIdentity}
			rules[col] = r
		}
		return r
	}
	addTransform := func(col string, tr stats.Transform) {
		if r := get(col); stricter(tr, r.tr) {
			r.tr = tr
		}
	}

	plans := append(pipeline.DefaultSuite(), pipeline.TaxaPlans()...)
	for _, plan := range plans {
		addTransform(plan.Spec.Response, plan.Spec.ResponseTransform)
		if plan.Spec.Family == stats.FamilyGamma {
			get(plan.Spec.Response).gamma = true
		}
		for _, t := range plan.Spec.Linear {
			addTransform(t.Name, t.Transform)
		}
		for _, t := range plan.Spec.Smooths {
			addTransform(t.Name, t.Transform)
		}
	}

	for col, r := range rules {
		if r.tr == stats.TransformIdentity && !r.gamma {
			delete(rules, col)
		}
	}
	return rules
}

// stricter orders transforms by domain: log (x > 0) over log1p (x >= 0 for
// count-like survey columns) over identity.
func stricter(a, b stats.Transform) bool {
	rank := func(t stats.Transform) int {
		switch t {
		case stats.TransformLog:
			return 2
		case stats.TransformLog1p:
			return 1
		}
		return 0
	}
	return rank(a) > rank(b)
}

func describeRule(r *columnRule) string {
	switch {
	case r.tr == stats.TransformLog:
		return "log (x > 0)"
	case r.tr == stats.TransformLog1p:
		return "log1p (x >= 0)"
	case r.gamma:
		return "gamma response (y > 0)"
	}
	return "identity"
}

func columnValue(o *domain.Observation, col string) (float64, bool) {
	switch col {
	case domain.ColTempC:
		return o.TempC, true
	case domain.ColSalinity:
		return o.SalinityPSU, true
	case domain.ColTurbidity:
		return o.TurbidityNTU, true
	case domain.ColChlorophyll:
		return o.ChlorophyllUgL, true
	case domain.ColDOSat:
		return o.DOSatPct, true
	case domain.ColHerring:
		return o.HerringCatch, true
	case domain.ColZoopDensity:
		return o.ZoopDensity, true
	case domain.ColShannon:
		return o.ShannonH, true
	case domain.ColDayOfYear:
		return float64(o.DayOfYear), true
	}
	return o.TaxonDensity(col)
}

// ── Phase 4: Diversity Consistency ──
// The recorded Shannon index must match the index recomputed from the six
// taxa columns, and the recorded total density must match their sum.

func validateDiversity(s *domain.Survey) *phase {
	p := &phase{name: "Phase 4: Diversity Consistency"}

	for i := range s.Observations {
		o := &s.Observations[i]
		when := fmt.Sprintf("%s at %s", o.Date.Format("2006-01-02"), o.Station.Label)

		want := domain.ShannonIndex(o.TaxaDensities())
		switch {
		case math.IsNaN(want) && math.IsNaN(o.ShannonH):
			// Both undefined is consistent.
		case math.IsNaN(want) != math.IsNaN(o.ShannonH):
			p.errorf("observation %d (%s): shannon_h recorded %g, recomputed %g", i, when, o.ShannonH, want)
		case math.Abs(want-o.ShannonH) > 1e-6:
			p.errorf("observation %d (%s): shannon_h %.6f, recomputed from taxa %.6f", i, when, o.ShannonH, want)
		}

		sum, complete := 0.0, true
		for _, d := range o.TaxaDensities() {
			if math.IsNaN(d) {
				complete = false
				break
			}
			sum += d
		}
		if complete && !math.IsNaN(o.ZoopDensity) && math.Abs(sum-o.ZoopDensity) > 1e-6 {
			p.errorf("observation %d (%s): zoop_density %.4f, taxa sum to %.4f", i, when, o.ZoopDensity, sum)
		}
	}
	return p
}
