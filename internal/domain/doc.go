// Package domain models the Penobscot Estuary monitoring program's survey
// data.
//
// # Sampling Program
//
// The program samples four fixed stations along the estuary's salinity
// gradient, March through November. One workbook row is one sampling event,
// a (date, station) pair, carrying surface water chemistry (temperature,
// salinity, turbidity, chlorophyll, dissolved-oxygen saturation), the day's
// river-herring count at the weir, and zooplankton net-tow results: total
// density, Shannon diversity, and per-taxon densities for six copepod taxa
// (Acartia, Centropages, Eurytemora, Oithona, Pseudocalanus, Temora).
// (Date, Station) pairs are unique; [NewSurvey] rejects duplicates.
//
// # Station Codes
//
// Field sheets label stations with free-form codes ("PE-03", "PE-06", ...).
// [AssignStationCodes] remaps the distinct labels, sorted, to dense codes
// 1..k. The mapping is a strictly increasing bijection, so code order always
// matches label order and models see a compact factor. The program has k=4
// stations; nothing below depends on that count.
//
// # Seasons and Sample Events
//
// Season is derived from the calendar month:
//
//	March-May          Spring (index 1)
//	June-August        Summer (index 2)
//	September-November Fall   (index 3)
//	December-February  outside the program; a derivation error
//
// Seasons are ordered Spring < Summer < Fall, and model specifications pin
// [SeasonLevels] so Spring is always the reference level. The sample-event
// ordinal combines year and season,
//
//	sample_event = season index + 3*(year - baseline)
//
// counting 1, 2, 3 through the baseline year and 4, 5, 6 the next. It is
// strictly increasing in (year, season) order. The matching "YYYY-Season"
// label is the grouping key for event-level random intercepts.
//
// # Skewed Predictors
//
// Turbidity and chlorophyll are strongly right-skewed and are modeled on
// the log scale; herring catch is count-like with real zeros and uses
// log1p. [TransformFor] is the single designation point, so fits, marginal
// grids, and the validate command all agree on the scale. Transform domain
// violations (log of a non-positive value) are explicit errors wherever a
// transform is applied, never a silent -Inf.
//
// # Missing Data
//
// Missing numeric cells are NaN throughout. Rows with missing values are
// dropped per fit by the stats package, not globally, so one bad sensor
// reading does not shrink every model's sample. The month name is kept for
// labeling only; season supersedes it in every model.
package domain
