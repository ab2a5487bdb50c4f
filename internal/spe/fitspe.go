// Package spe fits single-photoelectron charge spectra of photomultiplier
// tubes.
//
// The spectrum is modelled as a sum of gaussians, one per number of detected
// photoelectrons, weighted by an occupancy model (Poisson or Vinogradov).
// Fitting happens in two stages. The first keeps the amplitude and the
// offset fixed so that the peaks separate; the second releases most
// parameters within bounds around the first stage's result.
package spe

import (
	"errors"
	"io"
	"log/slog"
	"math"

	"github.com/HamletTheHamster/spefit/internal/fit"
	"github.com/HamletTheHamster/spefit/internal/hist"
)

// ErrFitNonConvergent is recorded when the final fit is not valid.
var ErrFitNonConvergent = errors.New("spe: fit did not converge")

// Request is one channel to fit.
type Request struct {
	Raw hist.Histogram
	// Filtered is the charge histogram of the high-pass filtered signal.
	// It may be nil.
	Filtered hist.Histogram
	Model    Model
}

// Result of an SPE fit.
type Result struct {
	SPECharge      float64
	SPEChargeError float64
	// FitValid is false when the final fit did not converge. The
	// parameters still hold the best estimate available.
	FitValid bool

	Params Params
	Errors Params
	// Stage1 holds the parameters after the constrained first fit.
	Stage1     Params
	Seed       Seed
	NoiseFloor *NoiseFloor
	Model      Model
	NumPeaks   int
	RangeLow   float64
	RangeHigh  float64
	Chi2       float64
	NDF        int
	// Fallbacks lists the conditions absorbed on the way: missing noise
	// floor, degenerate seeds, non-convergence.
	Fallbacks []error
}

// Fitter runs SPE fits. It holds configuration only and may be shared.
type Fitter struct {
	Optimizer fit.Optimizer
	Defaults  Defaults
	Logger    *slog.Logger
}

// NewFitter returns a Fitter. A nil logger discards log output.
func NewFitter(opt fit.Optimizer, d Defaults, logger *slog.Logger) *Fitter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fitter{
		Optimizer: opt,
		Defaults:  d,
		Logger:    logger,
	}
}

// FitSPE fits the raw histogram of req. It only fails when req carries no raw
// histogram; every other problem is reported in the result.
func (f *Fitter) FitSPE(req Request) (Result, error) {

	if req.Raw == nil {
		return Result{}, errors.New("spe: request without raw histogram")
	}
	h := req.Raw
	d := f.Defaults
	log := f.Logger.With("model", req.Model.String())

	res := Result{Model: req.Model}

	if req.Filtered != nil {
		log.Debug("using filtered data")
		nf, err := AnalyzeFilterData(h, req.Filtered, f.Optimizer, d)
		if err != nil {
			log.Warn("no noise floor from filtered data, using defaults", "err", err)
			res.Fallbacks = append(res.Fallbacks, err)
		} else {
			log.Debug("noise floor",
				"offset", nf.Offset,
				"noise_spread", nf.NoiseSpread,
				"raw_spread", nf.RawSpread,
				"scale", nf.Scale,
				"rounds", nf.Rounds,
				"converged", nf.Converged,
			)
			res.NoiseFloor = &nf
		}
	}

	seed := SeedParams(h, res.NoiseFloor, req.Model, d)
	res.Seed = seed
	res.NumPeaks = seed.NumPeaks
	res.Params = seed.Params
	res.Stage1 = seed.Params
	res.SPECharge = seed.Params.SPECharge
	res.Fallbacks = append(res.Fallbacks, seed.Fallbacks...)
	log.Debug("seed",
		"params", seed.Params,
		"zero_peak_end", seed.ZeroPeakEnd,
		"prob_zero", seed.ProbZero,
		"num_peaks", seed.NumPeaks,
	)

	if err := hist.CheckEntries(h); err != nil {
		log.Warn("empty histogram, returning defaults")
		return res, nil
	}

	offset := seed.Params.Offset
	res.RangeLow = offset - d.RangeLow*seed.RawSpread
	res.RangeHigh = offset + d.RangeHigh*h.StdDev()
	model := req.Model.Func(seed.NumPeaks)

	// Stage 1: amplitude and offset are held so that the optimizer cannot
	// trade peak separation against overall scale.
	stage1 := make([]fit.Constraint, numParams)
	stage1[iScale] = fit.Fixed(seed.Params.Scale)
	stage1[iOffset] = fit.Fixed(offset)
	stage1[iLambda] = fit.Bounded(0, float64(seed.NumPeaks)+d.LambdaMargin)
	stage1[iSPECharge] = fit.Bounded(seed.ZeroPeakEnd-offset, seed.Params.SPECharge+d.ChargeMargin)
	stage1[iNoiseSpread] = fit.Fixed(seed.RawSpread)
	stage1[iSPEChargeSpread] = fit.Fixed(d.SPEChargeSpread)
	stage1[iSecondaryProb] = fit.Fixed(0)

	out1, err := f.Optimizer.Fit(model, seed.Params.Vector(), stage1, h, res.RangeLow, res.RangeHigh)
	if err != nil {
		log.Warn("first fit failed", "err", err)
		res.Fallbacks = append(res.Fallbacks, err, ErrFitNonConvergent)
		return res, nil
	}
	p1 := paramsFromVector(out1.Params)
	res.Stage1 = p1
	log.Debug("first fit", "params", p1, "valid", out1.Valid, "chi2", out1.Chi2, "ndf", out1.NDF)

	// Stage 2: bounds are rebuilt around the first fit's result; the offset
	// stays where it was.
	stage2 := make([]fit.Constraint, numParams)
	stage2[iScale] = fit.Free()
	stage2[iOffset] = fit.Fixed(p1.Offset)
	stage2[iLambda] = fit.Bounded(math.Max(0, p1.Lambda-1), p1.Lambda+1)
	stage2[iSPECharge] = fit.Bounded(math.Max(seed.ZeroPeakEnd-offset, p1.SPECharge-d.ChargeMargin), p1.SPECharge+d.ChargeMargin)
	stage2[iNoiseSpread] = fit.Bounded(0, p1.NoiseSpread+d.SpreadMargin)
	stage2[iSPEChargeSpread] = fit.Bounded(0, p1.SPEChargeSpread+d.SpreadMargin)
	stage2[iSecondaryProb] = fit.Bounded(0, d.MaxSecondaryProb)
	if req.Model == Poisson {
		// no secondary emission in the Poisson model
		stage2[iSecondaryProb] = fit.Fixed(0)
	}

	out2, err := f.Optimizer.Fit(model, out1.Params, stage2, h, res.RangeLow, res.RangeHigh)
	if err != nil {
		log.Warn("second fit failed", "err", err)
		res.Params = p1
		res.SPECharge = p1.SPECharge
		res.Errors = paramsFromVector(out1.Errors)
		res.SPEChargeError = res.Errors.SPECharge
		res.Fallbacks = append(res.Fallbacks, err, ErrFitNonConvergent)
		return res, nil
	}

	res.Params = paramsFromVector(out2.Params)
	res.Errors = paramsFromVector(out2.Errors)
	res.SPECharge = res.Params.SPECharge
	res.SPEChargeError = res.Errors.SPECharge
	res.FitValid = out2.Valid
	res.Chi2 = out2.Chi2
	res.NDF = out2.NDF

	if !out2.Valid {
		log.Warn("fit error", "params", res.Params, "chi2", out2.Chi2, "ndf", out2.NDF)
		res.Fallbacks = append(res.Fallbacks, ErrFitNonConvergent)
	} else {
		log.Debug("second fit", "params", res.Params, "chi2", out2.Chi2, "ndf", out2.NDF)
	}

	return res, nil
}
