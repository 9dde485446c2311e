package stats

import (
	"fmt"
	"math"
)

// Transform is a monotone scale change applied to a predictor or response
// before fitting. Forward application is domain-checked: survey instruments
// report occasional zeros and negative noise, and silently producing -Inf or
// NaN here would poison every downstream matrix operation and plot.
type Transform int

const (
	// TransformIdentity leaves values unchanged.
	TransformIdentity Transform = iota
	// TransformLog is the natural logarithm, defined for x > 0.
	TransformLog
	// TransformLog1p is log(1+x), defined for x > -1. Used for count-like
	// predictors (fish catch) that are legitimately zero.
	TransformLog1p
)

// DomainError reports a value outside a transform's domain.
type DomainError struct {
	Transform Transform
	Value     float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s undefined at %g", e.Transform, e.Value)
}

// Forward applies the transform, returning a DomainError for values outside
// the transform's domain. NaN inputs pass through as NaN so that missing
// values stay missing rather than turning into spurious domain errors.
func (t Transform) Forward(x float64) (float64, error) {
	if math.IsNaN(x) {
		return math.NaN(), nil
	}
	switch t {
	case TransformIdentity:
		return x, nil
	case TransformLog:
		if x <= 0 {
			return 0, &DomainError{Transform: t, Value: x}
		}
		return math.Log(x), nil
	case TransformLog1p:
		if x <= -1 {
			return 0, &DomainError{Transform: t, Value: x}
		}
		return math.Log1p(x), nil
	}
	return 0, fmt.Errorf("unknown transform %d", int(t))
}

// Inverse maps a transformed value back to the original scale.
func (t Transform) Inverse(z float64) float64 {
	switch t {
	case TransformLog:
		return math.Exp(z)
	case TransformLog1p:
		return math.Expm1(z)
	default:
		return z
	}
}

// Describe wraps a column name in the transform's notation, e.g.
// "log(turbidity)". Used for coefficient and term labels.
func (t Transform) Describe(name string) string {
	switch t {
	case TransformLog:
		return "log(" + name + ")"
	case TransformLog1p:
		return "log1p(" + name + ")"
	default:
		return name
	}
}

func (t Transform) String() string {
	switch t {
	case TransformIdentity:
		return "identity"
	case TransformLog:
		return "log"
	case TransformLog1p:
		return "log1p"
	default:
		return fmt.Sprintf("transform(%d)", int(t))
	}
}
