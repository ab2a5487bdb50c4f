package spe

import (
	"errors"
	"fmt"
	"math"

	"github.com/HamletTheHamster/spefit/internal/hist"
)

// ErrDegenerateProbability is recorded when the fraction of events in the
// zero peak is not strictly between 0 and 1.
var ErrDegenerateProbability = errors.New("spe: zero-peak probability outside (0, 1)")

// Seed is the starting point of the spectrum fit.
type Seed struct {
	Params Params
	// RawSpread is the width of the zero peak in the raw histogram.
	RawSpread   float64
	ZeroPeakEnd float64
	ProbZero    float64
	NumPeaks    int
	// Fallbacks lists the conditions that were replaced by defaults.
	Fallbacks []error
}

// SeedParams derives initial parameters from the moments of h and the noise
// floor nf, which may be nil. It never fails: whatever cannot be estimated is
// taken from d and recorded in Seed.Fallbacks.
func SeedParams(
	h hist.Histogram,
	nf *NoiseFloor,
	m Model,
	d Defaults,
) Seed {

	s := Seed{
		Params: Params{
			Offset:          d.Offset,
			Lambda:          d.Lambda,
			SPECharge:       d.SPECharge,
			NoiseSpread:     d.NoiseSpread,
			SPEChargeSpread: d.SPEChargeSpread,
		},
		RawSpread: d.ZeroPeakSpread,
	}

	if err := hist.CheckEntries(h); err != nil {
		s.ZeroPeakEnd = s.Params.Offset + d.ZeroPeakWidth*s.RawSpread
		s.NumPeaks = NumPeaks(s.Params.Lambda, d)
		s.Fallbacks = append(s.Fallbacks, err)
		return s
	}
	entries := float64(h.Entries())

	if nf != nil {
		s.Params.Offset = nf.Offset
		s.Params.NoiseSpread = nf.NoiseSpread
		s.Params.Scale = nf.Scale
		s.RawSpread = nf.RawSpread
	} else {
		s.Params.Scale = entries * d.ScaleFraction
	}
	offset := s.Params.Offset

	// The n=0 term of either occupancy model is exp(-λ), so the fraction of
	// events in the zero peak gives λ.
	s.ZeroPeakEnd = offset + d.ZeroPeakWidth*s.RawSpread
	s.ProbZero = h.Integral(0, h.BinIndex(s.ZeroPeakEnd)) / entries
	if s.ProbZero <= 0 || s.ProbZero >= 1 {
		s.Fallbacks = append(s.Fallbacks, fmt.Errorf("%w: %g", ErrDegenerateProbability, s.ProbZero))
		s.Params.Lambda = d.Lambda
	} else {
		s.Params.Lambda = -math.Log(s.ProbZero)
	}
	lambda := s.Params.Lambda

	// The zero peak height is the model scale times the n=0 weight.
	s.Params.Scale /= m.Prob(0, lambda, 0)

	s.NumPeaks = NumPeaks(lambda, d)

	// Mean of a gaussian mixture:
	//  mean(h) = Σ P(i) (offset + i·speCharge)
	var sumP, sumIP float64
	for i := 0; i < s.NumPeaks; i++ {
		p := m.Prob(i, lambda, 0)
		sumP += p
		sumIP += float64(i) * p
	}
	charge := d.SPECharge
	if sumIP > 0 {
		charge = (h.Mean() - offset*sumP) / sumIP
	}
	charge = math.Min(d.MaxSPECharge, charge)
	charge = math.Max(s.ZeroPeakEnd-offset, charge)
	s.Params.SPECharge = charge

	return s
}
