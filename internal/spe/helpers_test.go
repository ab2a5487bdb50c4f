package spe

import (
	"math"

	"github.com/HamletTheHamster/spefit/internal/hist"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// fillPeaks fills h with about n unit entries drawn from a mixture of
// gaussians. Every bin receives its expected count at its center, so the
// histogram is the same on every call.
func fillPeaks(h *hist.H1D, n float64, means, sigmas, weights []float64) {
	total := floats.Sum(weights)
	min, max := h.AxisRange()
	width := (max - min) / float64(h.NumBins())
	for i := 0; i < h.NumBins(); i++ {
		lo := min + float64(i)*width
		p := 0.0
		for k := range means {
			g := distuv.Normal{Mu: means[k], Sigma: sigmas[k]}
			p += weights[k] / total * (g.CDF(lo+width) - g.CDF(lo))
		}
		h.FillN(lo+width/2, int(math.Round(n*p)))
	}
}

// speSpectrum builds the raw and filtered histograms of a channel with
// nPeaks photoelectron peaks of width sigma spaced by charge, Poisson
// weighted with mean lambda.
func speSpectrum(lambda, charge, sigma float64, nPeaks int) (raw, filtered *hist.H1D) {
	// bin edges fall at ±0.002 around multiples of 0.004
	return speSpectrumBinned(1250, -1.002, 3.998, lambda, charge, sigma, nPeaks)
}

// speSpectrumBinned is speSpectrum on a given axis.
func speSpectrumBinned(bins int, min, max, lambda, charge, sigma float64, nPeaks int) (raw, filtered *hist.H1D) {
	raw = hist.New(bins, min, max)
	filtered = hist.New(bins, min, max)

	var means, sigmas, weights []float64
	for i := 0; i < nPeaks; i++ {
		means = append(means, float64(i)*charge)
		sigmas = append(sigmas, sigma)
		weights = append(weights, PoissonProb(i, lambda))
	}
	fillPeaks(raw, 2e5, means, sigmas, weights)
	fillPeaks(filtered, 1e5, []float64{0}, []float64{sigma}, []float64{1})
	return raw, filtered
}
