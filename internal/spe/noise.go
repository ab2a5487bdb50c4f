package spe

import (
	"errors"
	"fmt"
	"math"

	"github.com/HamletTheHamster/spefit/internal/fit"
	"github.com/HamletTheHamster/spefit/internal/hist"
	"gonum.org/v1/gonum/stat"
)

// ErrNoiseFloorOutOfRange is returned when the zero-peak search window
// leaves the histogram axis.
var ErrNoiseFloorOutOfRange = errors.New("spe: filtered data could not find first peak")

// NoiseFloor describes the zero-photoelectron peak.
type NoiseFloor struct {
	Offset      float64
	NoiseSpread float64
	// RawSpread and Scale are the width and height of the zero peak in the
	// raw histogram.
	RawSpread float64
	Scale     float64
	Rounds    int
	Converged bool
}

// AnalyzeFilterData estimates the noise floor. The filtered histogram f,
// charge integrated over pure noise, gives the offset and the noise spread.
// The zero peak of the raw histogram h is then fitted repeatedly in a window
// around the offset, re-centering on every round.
func AnalyzeFilterData(
	h, f hist.Histogram,
	opt fit.Optimizer,
	d Defaults,
) (
	NoiseFloor, error,
) {

	if err := hist.CheckEntries(f); err != nil {
		return NoiseFloor{}, fmt.Errorf("filtered: %w", err)
	}
	if err := hist.CheckEntries(h); err != nil {
		return NoiseFloor{}, fmt.Errorf("raw: %w", err)
	}

	fm, fs := f.Mean(), f.StdDev()
	ff, err := fit.FitGaus(opt, f, fm-d.FilterWindow*fs, fm+d.FilterWindow*fs, nil)
	if err != nil {
		return NoiseFloor{}, fmt.Errorf("filtered: %w", err)
	}

	// The mean of the filtered charges sits near zero whatever the baseline.
	offset := ff.Mean
	noiseSpread := ff.Sigma

	// The noise spread is much smaller than the zero peak width; scaling it
	// up is enough to capture the zero peak.
	win := math.Max(d.MinWindow, d.WindowScale*noiseSpread)
	xmin, xmax := h.AxisRange()

	var seed []float64
	var raw fit.GausResult
	var means []float64
	diff := math.Inf(1)

	fitRaw := func() error {
		if offset-win < xmin || offset+win > xmax {
			return fmt.Errorf("%w: window [%g, %g] outside axis [%g, %g]", ErrNoiseFloorOutOfRange, offset-win, offset+win, xmin, xmax)
		}
		if seed == nil {
			w := hist.RangeStats(h, offset-win, offset+win)
			seed = []float64{w.Peak, offset, math.Max(noiseSpread, w.StdDev)}
		}
		g, err := fit.FitGaus(opt, h, offset-win, offset+win, seed)
		if err != nil {
			return fmt.Errorf("raw: %w", err)
		}
		raw = g
		seed = []float64{g.Constant, g.Mean, g.Sigma}
		return nil
	}

	for diff > d.OffsetTol && len(means) < d.MaxRounds {
		if err := fitRaw(); err != nil {
			return NoiseFloor{}, err
		}
		diff = math.Abs(raw.Mean - offset)
		offset = raw.Mean
		means = append(means, offset)
	}

	converged := diff <= d.OffsetTol
	if !converged {
		offset = stat.Mean(means, nil)
		if err := fitRaw(); err != nil {
			return NoiseFloor{}, err
		}
		offset = raw.Mean
	}

	return NoiseFloor{
		Offset:      offset,
		NoiseSpread: noiseSpread,
		RawSpread:   raw.Sigma,
		Scale:       raw.Constant,
		Rounds:      len(means),
		Converged:   converged,
	}, nil
}
