package render

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/estuary-stats/internal/stats"
)

// WriteReport writes a text artifact verbatim under the output directory
// and returns its path.
func (r *Renderer) WriteReport(filename, content string) (string, error) {
	if err := r.ensureDir(); err != nil {
		return "", err
	}
	path := r.path(filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	r.logger.Debug("report written", "file", path, "bytes", len(content))
	return path, nil
}

// FormatSummary renders one model summary as an aligned text block.
func FormatSummary(s *stats.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model:   %s\n", s.Formula)
	fmt.Fprintf(&b, "Family:  %s(link=%s)   n=%d", s.Family, s.Link, s.N)
	if s.DroppedRows > 0 {
		fmt.Fprintf(&b, "   (%d incomplete rows dropped)", s.DroppedRows)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Deviance explained: %.1f%%   GCV: %.4g   EDF: %.2f   dispersion: %.4g\n",
		s.DevianceExplained*100, s.GCV, s.EDF, s.Dispersion)

	if !s.Converged {
		b.WriteString("WARNING: fit did not converge, estimates are provisional\n")
	}
	if s.RankDeficient {
		b.WriteString("WARNING: model matrix is rank deficient, some terms are confounded\n")
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "Note: %s\n", w)
	}

	if len(s.Coefficients) > 0 {
		b.WriteString("\nParametric coefficients:\n")
		fmt.Fprintf(&b, "  %-28s %12s %10s %8s %9s\n", "term", "estimate", "std err", "t", "p")
		for _, c := range s.Coefficients {
			fmt.Fprintf(&b, "  %-28s %12.4f %10.4f %8.2f %9s\n",
				c.Name, c.Estimate, c.StdErr, c.TValue, formatP(c.PValue))
		}
	}
	if len(s.Terms) > 0 {
		b.WriteString("\nApproximate significance of terms:\n")
		fmt.Fprintf(&b, "  %-28s %-8s %6s %8s %9s\n", "term", "kind", "edf", "F", "p")
		for _, t := range s.Terms {
			fmt.Fprintf(&b, "  %-28s %-8s %6.2f %8.2f %9s\n",
				t.Term, t.Kind, t.EDF, t.F, formatP(t.PValue))
		}
	}
	return b.String()
}

// FormatMarginal renders the header of a marginal grid: the focal term,
// the band level, and the values the other predictors were held at.
func FormatMarginal(g *stats.MarginalGrid) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Marginal effect of %s on %s (%.0f%% band, %d grid points)\n",
		g.Term, g.Response, g.Level*100, len(g.Points))

	names := make([]string, 0, len(g.HeldNumeric))
	for name := range g.HeldNumeric {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  held %s = %.4g\n", name, g.HeldNumeric[name])
	}
	names = names[:0]
	for name := range g.HeldFactor {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  held %s = %s\n", name, g.HeldFactor[name])
	}

	if len(g.Points) > 0 {
		lo, hi := g.Points[0], g.Points[len(g.Points)-1]
		fmt.Fprintf(&b, "  %s from %.4g to %.4g, predicted %.4g to %.4g\n",
			g.Term, lo.Value, hi.Value, lo.Predicted, hi.Predicted)
	}
	return b.String()
}

// FormatInfluence renders the largest coefficient shifts from an
// influence refit, at most limit rows.
func FormatInfluence(shifts []stats.CoefShift, limit int) string {
	if len(shifts) == 0 {
		return "No shared coefficients to compare.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  %-28s %12s %12s %11s %9s\n", "coefficient", "before", "after", "rel change", "shift/se")
	for i, s := range shifts {
		if limit > 0 && i >= limit {
			break
		}
		se := "NA"
		if !math.IsNaN(s.SEShift) {
			se = fmt.Sprintf("%.2f", s.SEShift)
		}
		fmt.Fprintf(&b, "  %-28s %12.4f %12.4f %10.1f%% %9s\n",
			s.Name, s.Before, s.After, s.RelChange*100, se)
	}
	return b.String()
}

func formatP(p float64) string {
	switch {
	case math.IsNaN(p):
		return "NA"
	case p < 1e-4:
		return "<1e-4"
	default:
		return fmt.Sprintf("%.4f", p)
	}
}
