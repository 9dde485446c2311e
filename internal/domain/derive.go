package domain

import (
	"fmt"
	"time"
)

// Season is the within-year sampling stratum. The program samples March
// through November; the three seasons are ordered Spring < Summer < Fall.
type Season int

const (
	Spring Season = iota + 1
	Summer
	Fall
)

// seasonsPerYear is the stride of the sample-event ordinal.
const seasonsPerYear = 3

func (s Season) String() string {
	switch s {
	case Spring:
		return "Spring"
	case Summer:
		return "Summer"
	case Fall:
		return "Fall"
	}
	return ""
}

// Index returns the within-year position, Spring=1 through Fall=3.
func (s Season) Index() int { return int(s) }

// SeasonLevels lists the season factor levels in their natural order. Model
// specifications pin this order so Spring is always the reference level.
func SeasonLevels() []string {
	return []string{Spring.String(), Summer.String(), Fall.String()}
}

// SeasonOf maps a calendar month to its sampling season. December through
// February are outside the sampling program and return an error.
func SeasonOf(m time.Month) (Season, error) {
	switch m {
	case time.March, time.April, time.May:
		return Spring, nil
	case time.June, time.July, time.August:
		return Summer, nil
	case time.September, time.October, time.November:
		return Fall, nil
	}
	return 0, fmt.Errorf("month %s is outside the March-November sampling season", m)
}

// DeriveFeatures computes the derived grouping keys for every observation:
// year, season, day-of-year, month name, the sample-event ordinal
//
//	sample_event = season index + 3*(year - baseline)
//
// and the "YYYY-Season" event label. Ordinals count 1, 2, 3 through the
// baseline year and continue 4, 5, 6 the next, so they are strictly
// increasing in (year, season) order, and labels are unique per (year,
// season) pair. Observations are not modified; derived copies are returned
// along with the resolved baseline year.
//
// A baselineYear of 0 selects the earliest observed year. An observation
// dated December through February is a derivation error naming the row.
func DeriveFeatures(obs []Observation, baselineYear int) ([]Observation, int, error) {
	if len(obs) == 0 {
		return nil, 0, ErrNoObservations
	}

	baseline := baselineYear
	if baseline == 0 {
		baseline = obs[0].Date.Year()
		for _, o := range obs[1:] {
			if y := o.Date.Year(); y < baseline {
				baseline = y
			}
		}
	}

	out := make([]Observation, len(obs))
	for i, o := range obs {
		season, err := SeasonOf(o.Date.Month())
		if err != nil {
			return nil, 0, fmt.Errorf("observation %d (%s, station %s): %w",
				i, o.Date.Format("2006-01-02"), o.Station.Label, err)
		}
		o.Year = o.Date.Year()
		o.Season = season
		o.DayOfYear = o.Date.YearDay()
		o.MonthName = o.Date.Month().String()
		o.SampleEvent = season.Index() + seasonsPerYear*(o.Year-baseline)
		o.EventLabel = fmt.Sprintf("%d-%s", o.Year, season)
		out[i] = o
	}
	return out, baseline, nil
}
