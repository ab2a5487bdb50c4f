package spe

import (
	"errors"
	"math"
	"testing"

	"github.com/HamletTheHamster/spefit/internal/hist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFloor = &NoiseFloor{
	Offset:      0,
	NoiseSpread: 0.01,
	RawSpread:   0.05,
	Scale:       100,
}

func twoPeaks(zero, rest int, restAt float64) *hist.H1D {
	h := hist.New(400, -1.005, 2.995)
	h.FillN(0, zero)
	h.FillN(restAt, rest)
	return h
}

func TestSeedLambdaFromZeroPeak(t *testing.T) {
	h := twoPeaks(600, 400, 1)
	s := SeedParams(h, testFloor, Poisson, Default())

	require.Empty(t, s.Fallbacks)
	assert.InDelta(t, 0.1, s.ZeroPeakEnd, 1e-12)
	assert.InDelta(t, 0.6, s.ProbZero, 1e-12)
	assert.InDelta(t, -math.Log(0.6), s.Params.Lambda, 1e-12)
	assert.InDelta(t, 100/0.6, s.Params.Scale, 1e-9)
	assert.Equal(t, 4, s.NumPeaks)
	assert.Equal(t, 0.05, s.RawSpread)
	assert.Equal(t, 0.01, s.Params.NoiseSpread)
}

func TestSeedLambdaDecreasesWithZeroPeakEntries(t *testing.T) {
	last := math.Inf(1)
	for _, zero := range []int{200, 500, 1000, 2000, 4000} {
		s := SeedParams(twoPeaks(zero, 1000, 1), testFloor, Poisson, Default())
		assert.Less(t, s.Params.Lambda, last, "zero=%d", zero)
		last = s.Params.Lambda
	}
}

func TestSeedSPECharge(t *testing.T) {
	h := twoPeaks(600, 400, 1)
	s := SeedParams(h, testFloor, Poisson, Default())

	l := s.Params.Lambda
	var sumIP float64
	for i := 0; i < s.NumPeaks; i++ {
		sumIP += float64(i) * PoissonProb(i, l)
	}
	assert.InDelta(t, h.Mean()/sumIP, s.Params.SPECharge, 1e-9)
}

func TestSeedSPEChargeClamped(t *testing.T) {
	h := hist.New(1000, -1.005, 8.995)
	h.FillN(0, 500)
	h.FillN(6, 500)
	s := SeedParams(h, testFloor, Poisson, Default())
	assert.Equal(t, 4.0, s.Params.SPECharge)
}

func TestSeedEmptyHistogram(t *testing.T) {
	d := Default()
	s := SeedParams(hist.New(100, -1, 3), testFloor, Vinogradov, d)

	require.Len(t, s.Fallbacks, 1)
	assert.True(t, errors.Is(s.Fallbacks[0], hist.ErrEmpty))
	assert.Equal(t, 0.0, s.Params.Offset)
	assert.Equal(t, 0.01, s.Params.NoiseSpread)
	assert.Equal(t, 0.4, s.RawSpread)
	assert.Equal(t, 0.0, s.Params.Scale)
	assert.Equal(t, 0.5, s.Params.Lambda)
	assert.Equal(t, 0.8, s.Params.SPECharge)
	assert.Equal(t, 4, s.NumPeaks)
}

func TestSeedDegenerateProbability(t *testing.T) {
	// everything inside the zero peak
	h := twoPeaks(1000, 0, 1)
	s := SeedParams(h, testFloor, Poisson, Default())

	require.Len(t, s.Fallbacks, 1)
	assert.True(t, errors.Is(s.Fallbacks[0], ErrDegenerateProbability))
	assert.Equal(t, 0.5, s.Params.Lambda)
}

func TestSeedWithoutNoiseFloor(t *testing.T) {
	h := twoPeaks(600, 400, 1.5)
	s := SeedParams(h, nil, Poisson, Default())

	// default zero peak spread of 0.4 ends the zero peak at 0.8
	assert.InDelta(t, 0.8, s.ZeroPeakEnd, 1e-12)
	assert.InDelta(t, 0.6, s.ProbZero, 1e-12)
	assert.InDelta(t, 1000*0.075/0.6, s.Params.Scale, 1e-9)
	assert.Equal(t, 0.4, s.RawSpread)
}
