package domain

import "math"

// ShannonIndex computes Shannon diversity H' = -sum(p_i * ln(p_i)) over the
// given per-taxon densities, where p_i is each taxon's share of the total.
// Zero densities contribute nothing. The index is NaN when any density is
// NaN or negative, or when the total is zero: an incomplete or empty count
// has no defined diversity.
func ShannonIndex(densities []float64) float64 {
	var total float64
	for _, d := range densities {
		if math.IsNaN(d) || d < 0 {
			return math.NaN()
		}
		total += d
	}
	if total <= 0 {
		return math.NaN()
	}

	var h float64
	for _, d := range densities {
		if d == 0 {
			continue
		}
		p := d / total
		h -= p * math.Log(p)
	}
	return h
}
