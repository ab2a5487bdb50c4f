package fit

import (
	"fmt"
	"math"

	"github.com/HamletTheHamster/spefit/internal/hist"
	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// LM is an Optimizer built on the Levenberg-Marquardt solver.
type LM struct {
	Iterations   int     `yaml:"iterations"`
	ObjectiveTol float64 `yaml:"objective_tol"`
	Tau          float64 `yaml:"tau"`
	Eps1         float64 `yaml:"eps1"`
	Eps2         float64 `yaml:"eps2"`
}

// DefaultLM returns the solver settings used throughout the lab scripts.
func DefaultLM() LM {
	return LM{
		Iterations:   1000,
		ObjectiveTol: 1e-16,
		Tau:          1e-6,
		Eps1:         1e-8,
		Eps2:         1e-8,
	}
}

func (o LM) Fit(
	model Func,
	initial []float64,
	constraints []Constraint,
	data hist.Histogram,
	lo, hi float64,
) (
	Outcome, error,
) {

	pr, err := newProblem(model, initial, constraints, data, lo, hi)
	if err != nil {
		return Outcome{}, err
	}
	if len(pr.free) == 0 {
		return pr.outcome(nil, true), nil
	}

	f := func(dst, u []float64) {
		pr.set(u)
		pr.residuals(dst)
	}
	u0 := pr.start()

	// f is not safe for concurrent use, so no lm.NumJac here.
	jacobian := func(dst *mat.Dense, u []float64) {
		fd.Jacobian(dst, f, u, &fd.JacobianSettings{Formula: fd.Central})
	}

	// Solve for fit
	toBeSolved := lm.LMProblem{
		Dim:        len(pr.free),
		Size:       len(pr.pts),
		Func:       f,
		Jac:        jacobian,
		InitParams: u0,
		Tau:        o.Tau,
		Eps1:       o.Eps1,
		Eps2:       o.Eps2,
	}

	results, err := solve(toBeSolved, &lm.Settings{Iterations: o.Iterations, ObjectiveTol: o.ObjectiveTol})
	if results == nil {
		// A parameter stuck on a bound leaves a column of the Jacobian
		// empty and the step singular. Hold such parameters on their bound
		// and start over from where the solver stopped.
		if pinned, ok := pr.pinEdges(); ok {
			return o.Fit(model, pr.params, pinned, data, lo, hi)
		}
	}
	u, converged := u0, false
	if results != nil && len(results.X) == len(pr.free) {
		u = results.X
		converged = err == nil && !results.Status.Early()
	}
	return pr.outcome(u, converged), nil
}

var solve = solveLM

// solveLM runs lm.LM, turning its panic on a singular step into an error.
func solveLM(
	problem lm.LMProblem,
	settings *lm.Settings,
) (
	res *lm.Result, err error,
) {

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("fit: levenberg-marquardt: %v", r)
		}
	}()
	return lm.LM(problem, settings)
}

// noInfluence is the fraction of the largest diagonal element of JᵀJ below
// which a parameter counts as not affecting the residuals.
const noInfluence = 1e-24

// covarianceErrors fills errs with sqrt(diag((JᵀJ)⁻¹)) where J is the
// Jacobian of the weighted residuals with respect to the free parameters at
// best. JᵀJ is inverted in correlation form so that parameters of very
// different magnitude do not spoil the factorization. Parameters with no
// influence on the residuals get a NaN error. It reports false if JᵀJ is not
// positive definite.
func covarianceErrors(
	errs, best []float64,
	free []int,
	pts []point,
	model Func,
) bool {

	params := append([]float64(nil), best...)
	g := func(dst, theta []float64) {
		for k, i := range free {
			params[i] = theta[k]
		}
		for j, p := range pts {
			dst[j] = (p.y - model(p.x, params)) / p.sigma
		}
	}

	theta := make([]float64, len(free))
	for k, i := range free {
		theta[k] = best[i]
	}

	jac := mat.NewDense(len(pts), len(free), nil)
	fd.Jacobian(jac, g, theta, &fd.JacobianSettings{Formula: fd.Central})

	var jtj mat.SymDense
	jtj.SymOuterK(1, jac.T())

	maxDiag := 0.0
	for k := range free {
		maxDiag = math.Max(maxDiag, jtj.At(k, k))
	}
	var active []int
	for k, i := range free {
		if jtj.At(k, k) > noInfluence*maxDiag {
			active = append(active, k)
		} else {
			errs[i] = math.NaN()
		}
	}
	if len(active) == 0 {
		return false
	}

	scale := make([]float64, len(active))
	for a, k := range active {
		scale[a] = math.Sqrt(jtj.At(k, k))
	}
	corr := mat.NewSymDense(len(active), nil)
	for a, k := range active {
		for b := a; b < len(active); b++ {
			corr.SetSym(a, b, jtj.At(k, active[b])/(scale[a]*scale[b]))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(corr); !ok {
		return false
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return false
	}

	for a, k := range active {
		v := cov.At(a, a)
		if !(v >= 0) || math.IsInf(v, 0) {
			return false
		}
		errs[free[k]] = math.Sqrt(v) / scale[a]
	}
	return true
}
