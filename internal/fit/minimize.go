package fit

import (
	"fmt"

	"github.com/HamletTheHamster/spefit/internal/hist"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Minimizer is an Optimizer that minimizes the chi-square directly with one
// of the general-purpose methods of gonum/optimize. It is slower than LM but
// does not need the residuals to be smooth.
type Minimizer struct {
	// Method is "nelder-mead" or "bfgs".
	Method     string
	Iterations int
}

func (m Minimizer) method() (optimize.Method, error) {
	switch m.Method {
	case "nelder-mead", "":
		return &optimize.NelderMead{}, nil
	case "bfgs":
		return &optimize.BFGS{}, nil
	}
	return nil, fmt.Errorf("fit: unknown minimization method %q", m.Method)
}

func (m Minimizer) Fit(
	model Func,
	initial []float64,
	constraints []Constraint,
	data hist.Histogram,
	lo, hi float64,
) (
	Outcome, error,
) {

	method, err := m.method()
	if err != nil {
		return Outcome{}, err
	}
	pr, err := newProblem(model, initial, constraints, data, lo, hi)
	if err != nil {
		return Outcome{}, err
	}
	if len(pr.free) == 0 {
		return pr.outcome(nil, true), nil
	}

	r := make([]float64, len(pr.pts))
	chi2 := func(u []float64) float64 {
		pr.set(u)
		pr.residuals(r)
		return floats.Dot(r, r)
	}
	p := optimize.Problem{
		Func: chi2,
		Grad: func(grad, u []float64) {
			fd.Gradient(grad, chi2, u, &fd.Settings{Formula: fd.Central})
		},
	}

	u0 := pr.start()
	res, err := optimize.Minimize(p, u0, &optimize.Settings{MajorIterations: m.Iterations}, method)
	if res == nil {
		return pr.outcome(u0, false), nil
	}
	return pr.outcome(res.X, err == nil && !res.Status.Early()), nil
}
