package fit

import (
	"fmt"
	"math"

	"github.com/HamletTheHamster/spefit/internal/hist"
)

// Gaus is the gaussian exp(-((x-mean)/sigma)²/2), with unit height. A
// non-positive sigma gives zero.
func Gaus(x, mean, sigma float64) float64 {
	if !(sigma > 0) {
		return 0
	}
	z := (x - mean) / sigma
	return math.Exp(-0.5 * z * z)
}

// GausFunc is the three-parameter gaussian [constant, mean, sigma].
func GausFunc(x float64, p []float64) float64 {
	return p[0] * Gaus(x, p[1], math.Abs(p[2]))
}

// GausResult is a fitted gaussian.
type GausResult struct {
	Constant float64
	Mean     float64
	Sigma    float64
	Errors   [3]float64
	Valid    bool
}

// FitGaus fits a gaussian to h over [lo, hi]. When seed is nil the starting
// point comes from the window's peak and moments; otherwise seed holds
// [constant, mean, sigma].
func FitGaus(
	opt Optimizer,
	h hist.Histogram,
	lo, hi float64,
	seed []float64,
) (
	GausResult, error,
) {

	w := hist.RangeStats(h, lo, hi)
	if w.Sum == 0 {
		return GausResult{}, fmt.Errorf("%w: gaussian over [%g, %g] is empty", ErrNoData, lo, hi)
	}

	init := []float64{w.Peak, w.Mean, w.StdDev}
	if init[2] == 0 {
		init[2] = (hi - lo) / 4
	}
	if seed != nil {
		copy(init, seed)
	}

	cs := []Constraint{Free(), Free(), Free()}
	out, err := opt.Fit(GausFunc, init, cs, h, lo, hi)
	if err != nil {
		return GausResult{}, err
	}

	return GausResult{
		Constant: out.Params[0],
		Mean:     out.Params[1],
		Sigma:    math.Abs(out.Params[2]),
		Errors:   [3]float64{out.Errors[0], out.Errors[1], out.Errors[2]},
		Valid:    out.Valid,
	}, nil
}
