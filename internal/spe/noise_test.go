package spe

import (
	"errors"
	"testing"

	"github.com/HamletTheHamster/spefit/internal/fit"
	"github.com/HamletTheHamster/spefit/internal/hist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeFilterData(t *testing.T) {
	const offset, noise, zeroWidth = 0.1, 0.02, 0.05

	h := hist.New(800, -1, 3)
	fillPeaks(h, 1e5,
		[]float64{offset, offset + 1.4},
		[]float64{zeroWidth, 0.2},
		[]float64{0.7, 0.3},
	)
	f := hist.New(800, -1, 3)
	fillPeaks(f, 1e5, []float64{offset}, []float64{noise}, []float64{1})

	nf, err := AnalyzeFilterData(h, f, fit.DefaultLM(), Default())
	require.NoError(t, err)
	assert.True(t, nf.Converged)
	assert.LessOrEqual(t, nf.Rounds, 5)
	assert.InDelta(t, offset, nf.Offset, 0.001)
	assert.InEpsilon(t, noise, nf.NoiseSpread, 0.05)
	assert.InEpsilon(t, zeroWidth, nf.RawSpread, 0.05)
	assert.Greater(t, nf.Scale, 0.0)
}

func TestAnalyzeFilterDataRecenters(t *testing.T) {
	// The filtered channel sits off the zero peak; the raw fits have to walk
	// over to it.
	h := hist.New(800, -1, 3)
	fillPeaks(h, 1e5, []float64{0.2}, []float64{0.05}, []float64{1})
	f := hist.New(800, -1, 3)
	fillPeaks(f, 1e5, []float64{0.1}, []float64{0.02}, []float64{1})

	nf, err := AnalyzeFilterData(h, f, fit.DefaultLM(), Default())
	require.NoError(t, err)
	assert.InDelta(t, 0.2, nf.Offset, 0.001)
	assert.Greater(t, nf.Rounds, 1)
}

func TestAnalyzeFilterDataOutOfRange(t *testing.T) {
	// window of ±0.3 around 0.1 leaves an axis starting at 0
	h := hist.New(600, 0, 3)
	fillPeaks(h, 1e5, []float64{0.1}, []float64{0.05}, []float64{1})
	f := hist.New(600, 0, 3)
	fillPeaks(f, 1e5, []float64{0.1}, []float64{0.02}, []float64{1})

	_, err := AnalyzeFilterData(h, f, fit.DefaultLM(), Default())
	assert.True(t, errors.Is(err, ErrNoiseFloorOutOfRange), "%v", err)
}

func TestAnalyzeFilterDataEmpty(t *testing.T) {
	h := hist.New(100, -1, 3)
	f := hist.New(100, -1, 3)
	_, err := AnalyzeFilterData(h, f, fit.DefaultLM(), Default())
	assert.True(t, errors.Is(err, hist.ErrEmpty))
}
