package fit

import (
	"fmt"
	"math"

	"github.com/HamletTheHamster/spefit/internal/hist"
	"gonum.org/v1/gonum/floats"
)

type point struct {
	x, y, sigma float64
}

// points collects the bins in [lo, hi]. Bin errors are sqrt(N), with empty
// bins weighted as if they held one count so that the model is penalized for
// predicting charge where none was seen.
func points(h hist.Histogram, lo, hi float64) []point {
	var pts []point
	for i := 1; i <= h.NumBins(); i++ {
		x, y := h.Bin(i)
		if x < lo || x > hi {
			continue
		}
		pts = append(pts, point{x: x, y: y, sigma: math.Sqrt(math.Max(y, 1))})
	}
	return pts
}

// problem is a fit reduced to its free parameters. Solvers work on the
// internal coordinates of the free parameters; fixed ones never move.
type problem struct {
	model       Func
	constraints []Constraint
	pts         []point
	// params is the working parameter vector, rewritten by set.
	params []float64
	free   []int
}

func newProblem(
	model Func,
	initial []float64,
	constraints []Constraint,
	data hist.Histogram,
	lo, hi float64,
) (
	*problem, error,
) {

	if len(constraints) != len(initial) {
		return nil, fmt.Errorf("fit: %d constraints for %d parameters", len(constraints), len(initial))
	}

	pr := &problem{
		model:       model,
		constraints: constraints,
		pts:         points(data, lo, hi),
		params:      make([]float64, len(initial)),
	}
	for i, c := range constraints {
		if c.fixed() {
			pr.params[i] = c.fixedValue()
			continue
		}
		pr.params[i] = initial[i]
		if c.Kind == KindBounded {
			pr.params[i] = math.Max(c.Min, math.Min(c.Max, initial[i]))
		}
		pr.free = append(pr.free, i)
	}

	if len(pr.pts) == 0 || len(pr.pts) < len(pr.free) {
		return nil, fmt.Errorf("%w: %d bins in [%g, %g] for %d free parameters", ErrNoData, len(pr.pts), lo, hi, len(pr.free))
	}
	return pr, nil
}

// start returns the internal coordinates of the starting point.
func (pr *problem) start() []float64 {
	u := make([]float64, len(pr.free))
	for k, i := range pr.free {
		u[k] = pr.constraints[i].toInternal(pr.params[i])
	}
	return u
}

// set moves the free parameters to the internal coordinates u.
func (pr *problem) set(u []float64) {
	for k, i := range pr.free {
		pr.params[i] = pr.constraints[i].toExternal(u[k])
	}
}

// residuals fills dst with the weighted residuals at the working parameters.
func (pr *problem) residuals(dst []float64) {
	for j, p := range pr.pts {
		dst[j] = (p.y - pr.model(p.x, pr.params)) / p.sigma
	}
}

// outcome evaluates the fit at u. converged is the solver's own verdict.
func (pr *problem) outcome(u []float64, converged bool) Outcome {
	if len(pr.free) > 0 {
		pr.set(u)
	}

	out := Outcome{
		Params: append([]float64(nil), pr.params...),
		Errors: make([]float64, len(pr.params)),
		Valid:  converged,
		NDF:    len(pr.pts) - len(pr.free),
	}

	r := make([]float64, len(pr.pts))
	pr.residuals(r)
	out.Chi2 = floats.Dot(r, r)

	if floats.HasNaN(out.Params) || math.IsNaN(out.Chi2) || math.IsInf(out.Chi2, 0) {
		out.Valid = false
		return out
	}
	if len(pr.free) == 0 {
		return out
	}
	if !covarianceErrors(out.Errors, out.Params, pr.free, pr.pts, pr.model) {
		out.Valid = false
		return out
	}
	for _, i := range pr.free {
		if !pr.determined(i, out.Errors[i], out.Chi2) {
			out.Valid = false
		}
	}
	return out
}

// determined reports whether the data pin parameter i down. A finite error
// no wider than the parameter's bounds is enough. Failing that, shifting the
// parameter by a tenth of its range must still change chi2 by at least one,
// as it does for a parameter resting on a bound where the model is flat to
// first order.
func (pr *problem) determined(i int, err, chi2 float64) bool {
	c := pr.constraints[i]
	if !math.IsNaN(err) && !math.IsInf(err, 0) && (c.Kind != KindBounded || err <= c.Max-c.Min) {
		return true
	}

	x := pr.params[i]
	step := 0.1 * math.Max(math.Abs(x), 1)
	if c.Kind == KindBounded {
		step = 0.1 * (c.Max - c.Min)
		if x > (c.Min+c.Max)/2 {
			step = -step
		}
	}

	r := make([]float64, len(pr.pts))
	pr.params[i] = x + step
	pr.residuals(r)
	pr.params[i] = x
	return math.Abs(floats.Dot(r, r)-chi2) >= 1
}

// atEdge is the fraction of its range within which a parameter counts as
// sitting on a bound.
const atEdge = 1e-3

// pinEdges returns the constraints with every free bounded parameter that
// sits on a bound fixed there. ok is false if there is none.
func (pr *problem) pinEdges() (pinned []Constraint, ok bool) {
	pinned = append([]Constraint(nil), pr.constraints...)
	for _, i := range pr.free {
		c := pr.constraints[i]
		if c.Kind != KindBounded {
			continue
		}
		tol := atEdge * (c.Max - c.Min)
		switch {
		case pr.params[i]-c.Min <= tol:
			pinned[i], ok = Fixed(c.Min), true
		case c.Max-pr.params[i] <= tol:
			pinned[i], ok = Fixed(c.Max), true
		}
	}
	return pinned, ok
}
