package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/estuary-stats/internal/adapter/render"
)

const reportFilename = "survey_report.md"

// maxShiftRows caps the influence table at the coefficients that moved most.
const maxShiftRows = 8

// buildReport assembles the run report: the survey header, one section
// per planned model, the taxon table, and the ordination footer.
func (p *Pipeline) buildReport(res *Result) string {
	var b strings.Builder
	s := res.Survey

	b.WriteString("# Penobscot estuary survey models\n\n")
	fmt.Fprintf(&b, "Generated %s. %d observations at %d stations",
		s.ProducedAt.UTC().Format(time.RFC3339), len(s.Observations), len(s.Stations))
	if years := s.Years(); len(years) > 0 {
		fmt.Fprintf(&b, ", %d to %d", years[0], years[len(years)-1])
	}
	b.WriteString(".\n")
	if s.DroppedRows > 0 {
		fmt.Fprintf(&b, "%d workbook rows dropped for missing or unreadable dates.\n", s.DroppedRows)
	}

	// Coordinates are the mean tow fix per station, falling back to the
	// nominal sheet position where the logger never got a lock.
	b.WriteString("\n| code | station | name | lat | lon |\n|---|---|---|---|---|\n")
	for _, st := range s.MeanLocations() {
		fmt.Fprintf(&b, "| %d | %s | %s | %.4f | %.4f |\n", st.Code, st.Label, st.Name, st.Lat, st.Lon)
	}

	for _, mr := range res.Models {
		writeModelSection(&b, mr)
	}

	writeTaxaTable(&b, res.TaxaModels)

	if o := res.Ordination; o != nil {
		b.WriteString("\n## Zooplankton composition\n\n")
		fmt.Fprintf(&b, "First two principal axes carry %.1f%% and %.1f%% of the variance across %d taxa",
			o.Explained[0]*100, o.Explained[1]*100, len(o.Columns))
		if o.Dropped > 0 {
			fmt.Fprintf(&b, "; %d incomplete rows dropped", o.Dropped)
		}
		b.WriteString(".\n")
	}
	return b.String()
}

func writeModelSection(b *strings.Builder, mr *ModelResult) {
	fmt.Fprintf(b, "\n## %s\n\n", mr.Name)
	if mr.Err != nil {
		fmt.Fprintf(b, "FAILED: %v\n", mr.Err)
		return
	}

	b.WriteString("```\n")
	b.WriteString(render.FormatSummary(mr.Summary))
	b.WriteString("```\n")

	for _, note := range mr.Notes {
		fmt.Fprintf(b, "\nNote: %s\n", note)
	}

	for _, g := range mr.Marginals {
		b.WriteString("\n")
		b.WriteString(render.FormatMarginal(g))
	}

	if d := mr.Diag; d != nil {
		fmt.Fprintf(b, "\n%d high leverage rows, %d high influence rows.\n",
			len(d.HighLeverage), len(d.HighInfluence))
	}
	if len(mr.Shifts) > 0 {
		fmt.Fprintf(b, "\nRefit without rows %v:\n", mr.Excluded)
		b.WriteString(render.FormatInfluence(mr.Shifts, maxShiftRows))
	}
}

func writeTaxaTable(b *strings.Builder, taxa []*ModelResult) {
	if len(taxa) == 0 {
		return
	}
	b.WriteString("\n## Taxon models\n\n")
	b.WriteString("| model | formula | edf | deviance explained | flags |\n|---|---|---|---|---|\n")
	for _, mr := range taxa {
		if mr.Err != nil {
			fmt.Fprintf(b, "| %s | FAILED: %v | | | |\n", mr.Name, mr.Err)
			continue
		}
		var flags []string
		if !mr.Summary.Converged {
			flags = append(flags, "not converged")
		}
		if mr.Summary.RankDeficient {
			flags = append(flags, "rank deficient")
		}
		fmt.Fprintf(b, "| %s | %s | %.2f | %.1f%% | %s |\n",
			mr.Name, mr.Summary.Formula, mr.Summary.EDF,
			mr.Summary.DevianceExplained*100, strings.Join(flags, ", "))
	}
}
