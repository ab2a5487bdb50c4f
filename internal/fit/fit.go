// Package fit fits parametric models to histograms by chi-square
// minimization. Parameters can be held fixed or kept inside bounds.
package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/HamletTheHamster/spefit/internal/hist"
)

// ErrNoData is returned when the fit range holds too few bins to constrain
// the free parameters.
var ErrNoData = errors.New("fit: not enough bins in range")

// Func evaluates a model at x.
type Func func(x float64, params []float64) float64

// Kind says how a parameter takes part in a fit.
type Kind int

const (
	KindFree Kind = iota
	KindFixed
	KindBounded
)

func (k Kind) String() string {
	switch k {
	case KindFree:
		return "free"
	case KindFixed:
		return "fixed"
	case KindBounded:
		return "bounded"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Constraint restricts one parameter. The zero value is a free parameter.
type Constraint struct {
	Kind  Kind
	Value float64
	Min   float64
	Max   float64
}

func Free() Constraint {
	return Constraint{Kind: KindFree}
}

func Fixed(v float64) Constraint {
	return Constraint{Kind: KindFixed, Value: v}
}

func Bounded(min, max float64) Constraint {
	return Constraint{Kind: KindBounded, Min: min, Max: max}
}

func (c Constraint) String() string {
	switch c.Kind {
	case KindFixed:
		return fmt.Sprintf("fixed(%g)", c.Value)
	case KindBounded:
		return fmt.Sprintf("[%g, %g]", c.Min, c.Max)
	}
	return "free"
}

// fixed reports whether the parameter is excluded from minimization. Empty
// bounds pin the parameter to Min.
func (c Constraint) fixed() bool {
	return c.Kind == KindFixed || (c.Kind == KindBounded && !(c.Max > c.Min))
}

func (c Constraint) fixedValue() float64 {
	if c.Kind == KindBounded {
		return c.Min
	}
	return c.Value
}

// Bounded parameters are mapped onto an unbounded internal coordinate with
// x = min + (max-min)(sin u + 1)/2.

// boundEdge keeps starting points off the bounds, where d(sin u)/du = 0 would
// freeze the parameter.
const boundEdge = 0.05

func (c Constraint) toInternal(x float64) float64 {
	if c.Kind != KindBounded {
		return x
	}
	s := 2*(x-c.Min)/(c.Max-c.Min) - 1
	s = math.Max(-1, math.Min(1, s))
	u := math.Asin(s)
	return math.Max(-math.Pi/2+boundEdge, math.Min(math.Pi/2-boundEdge, u))
}

func (c Constraint) toExternal(u float64) float64 {
	if c.Kind != KindBounded {
		return u
	}
	return c.Min + (c.Max-c.Min)*(math.Sin(u)+1)/2
}

// Outcome holds the result of one fit.
type Outcome struct {
	Params []float64
	// Errors are the 1-σ parameter uncertainties from the covariance
	// matrix. Fixed parameters have zero error.
	Errors []float64
	// Valid is false when the minimizer failed or the covariance matrix is
	// not positive definite.
	Valid bool
	Chi2  float64
	NDF   int
}

// Optimizer fits model to the bins of data whose centers lie in [lo, hi].
// constraints has one entry per parameter.
type Optimizer interface {
	Fit(
		model Func,
		initial []float64,
		constraints []Constraint,
		data hist.Histogram,
		lo, hi float64,
	) (Outcome, error)
}
