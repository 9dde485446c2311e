// Command genmock writes a synthetic survey workbook with the same sheet
// layout as the field spreadsheet: seasonal structure, an along-estuary
// salinity gradient, scattered missing readings, and one planted
// low-salinity outlier. Use it to exercise the analyze and validate
// commands without the real data.
//
// Usage:
//
//	go run ./cmd/genmock -out survey_mock.xlsx -seed 42 -years 4
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/couchcryptid/estuary-stats/internal/adapter/xlsx"
	"github.com/couchcryptid/estuary-stats/internal/domain"
	"github.com/couchcryptid/estuary-stats/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "survey_mock.xlsx", "output workbook path")
	samplesSheet := flag.String("samples-sheet", "Samples", "sheet name for sample rows")
	stationsSheet := flag.String("stations-sheet", "Stations", "sheet name for station records")
	seed := flag.Uint64("seed", 42, "generator seed; same seed, same workbook")
	startYear := flag.Int("start-year", 2019, "first sampling year")
	years := flag.Int("years", 4, "number of sampling years")
	flag.Parse()

	obs, stations := mockdata.Generate(mockdata.Params{
		Seed:      *seed,
		StartYear: *startYear,
		Years:     *years,
	})

	if err := xlsx.WriteWorkbook(*out, *samplesSheet, *stationsSheet, obs, stations); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	log.Printf("wrote %s: %d observations, %d stations", *out, len(obs), len(stations))

	printStats(obs)
	return nil
}

func printStats(obs []domain.Observation) {
	perStation := map[string]int{}
	missingSalinity := 0
	missingFix := 0
	herringZero := 0
	minSal, maxSal := math.Inf(1), math.Inf(-1)
	minZoop, maxZoop := math.Inf(1), math.Inf(-1)

	for i := range obs {
		o := &obs[i]
		perStation[o.Station.Label]++
		if math.IsNaN(o.SalinityPSU) {
			missingSalinity++
		} else {
			minSal = math.Min(minSal, o.SalinityPSU)
			maxSal = math.Max(maxSal, o.SalinityPSU)
		}
		if math.IsNaN(o.Lat) {
			missingFix++
		}
		if o.HerringCatch == 0 {
			herringZero++
		}
		minZoop = math.Min(minZoop, o.ZoopDensity)
		maxZoop = math.Max(maxZoop, o.ZoopDensity)
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(obs))
	for _, st := range mockdata.Stations() {
		fmt.Printf("  %s: %d\n", st.Label, perStation[st.Label])
	}
	fmt.Printf("Missing salinity: %d, missing GPS fix: %d\n", missingSalinity, missingFix)
	fmt.Printf("Zero herring counts: %d\n", herringZero)
	fmt.Printf("Salinity range: %.2f to %.2f PSU (planted freshet at the low end)\n", minSal, maxSal)
	fmt.Printf("Zooplankton density range: %.1f to %.1f ind/m3\n", minZoop, maxZoop)
}
