package stats

import (
	"fmt"
	"math"
)

// Link relates the linear predictor eta to the mean response mu.
type Link int

const (
	// LinkIdentity: mu = eta.
	LinkIdentity Link = iota
	// LinkLog: mu = exp(eta). Guarantees strictly positive mean predictions.
	LinkLog
	// LinkInverse: mu = 1/eta, the Gamma canonical link.
	LinkInverse
)

// Eta maps a mean to the link scale.
func (l Link) Eta(mu float64) float64 {
	switch l {
	case LinkLog:
		return math.Log(mu)
	case LinkInverse:
		return 1 / mu
	default:
		return mu
	}
}

// Mu maps a linear predictor back to the mean.
func (l Link) Mu(eta float64) float64 {
	switch l {
	case LinkLog:
		return math.Exp(eta)
	case LinkInverse:
		return 1 / eta
	default:
		return eta
	}
}

// DEtaDMu is the derivative of the link at mu, used for IRLS working
// weights and responses.
func (l Link) DEtaDMu(mu float64) float64 {
	switch l {
	case LinkLog:
		return 1 / mu
	case LinkInverse:
		return -1 / (mu * mu)
	default:
		return 1
	}
}

func (l Link) String() string {
	switch l {
	case LinkIdentity:
		return "identity"
	case LinkLog:
		return "log"
	case LinkInverse:
		return "inverse"
	default:
		return fmt.Sprintf("link(%d)", int(l))
	}
}

// Family is the error distribution of the response. The choice follows two
// data properties: whether the response is strictly positive, and whether
// error magnitude scales with the mean. Gaussian on a log-transformed
// response and Gamma with a log link are the two working answers for
// density-like survey responses, and both are kept available so fits can be
// compared side by side.
type Family int

const (
	// FamilyGaussian: constant variance, V(mu) = 1.
	FamilyGaussian Family = iota
	// FamilyGamma: variance proportional to mu², for strictly positive
	// responses whose spread grows with the mean.
	FamilyGamma
)

// Variance is the variance function V(mu).
func (f Family) Variance(mu float64) float64 {
	if f == FamilyGamma {
		return mu * mu
	}
	return 1
}

// DefaultLink returns the conventional link for the family: identity for
// Gaussian, log for Gamma (the canonical inverse link is supported but the
// log link is what keeps density and diversity predictions positive).
func (f Family) DefaultLink() Link {
	if f == FamilyGamma {
		return LinkLog
	}
	return LinkIdentity
}

// ValidateLink reports whether the family/link pair is supported.
func (f Family) ValidateLink(l Link) error {
	switch f {
	case FamilyGaussian:
		if l == LinkIdentity || l == LinkLog {
			return nil
		}
	case FamilyGamma:
		if l == LinkIdentity || l == LinkLog || l == LinkInverse {
			return nil
		}
	}
	return fmt.Errorf("family %s does not support %s link", f, l)
}

// CheckResponse validates a single response value for the family.
// Gamma requires strictly positive responses.
func (f Family) CheckResponse(y float64) error {
	if f == FamilyGamma && y <= 0 {
		return fmt.Errorf("gamma family requires positive response, got %g", y)
	}
	return nil
}

// devianceUnit computes one observation's contribution to the deviance.
func (f Family) devianceUnit(y, mu float64) float64 {
	if f == FamilyGamma {
		return 2 * ((y-mu)/mu - math.Log(y/mu))
	}
	d := y - mu
	return d * d
}

// Deviance sums unit deviances over paired responses and fitted means.
func (f Family) Deviance(y, mu []float64) float64 {
	var dev float64
	for i := range y {
		dev += f.devianceUnit(y[i], mu[i])
	}
	return dev
}

// DevianceResidual is the signed square root of the unit deviance.
func (f Family) DevianceResidual(y, mu float64) float64 {
	d := f.devianceUnit(y, mu)
	if d < 0 {
		d = 0
	}
	r := math.Sqrt(d)
	if y < mu {
		return -r
	}
	return r
}

// initialMu seeds IRLS with a mean that is valid for the family and link.
// Shrinking toward the sample mean keeps log and inverse links away from
// singular starting points.
func (f Family) initialMu(y, ybar float64) float64 {
	mu := (y + ybar) / 2
	if f == FamilyGamma && mu <= 0 {
		mu = ybar
	}
	return mu
}

func (f Family) String() string {
	switch f {
	case FamilyGaussian:
		return "gaussian"
	case FamilyGamma:
		return "gamma"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}
