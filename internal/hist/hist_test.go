package hist

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinIndex(t *testing.T) {
	h := New(10, 0, 1)
	tests := []struct {
		x    float64
		want int
	}{
		{-0.5, 0},
		{0, 1},
		{0.05, 1},
		{0.1, 2},
		{0.95, 10},
		{0.999999, 10},
		{1, 11},
		{3, 11},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, h.BinIndex(test.x), "x=%v", test.x)
	}
}

func TestIntegralIncludesOutflows(t *testing.T) {
	h := New(4, 0, 4)
	h.Fill(-1)
	h.Fill(0.5)
	h.Fill(1.5)
	h.Fill(1.5)
	h.Fill(3.5)
	h.Fill(7)

	assert.Equal(t, uint64(6), h.Entries())
	assert.Equal(t, 1.0, h.Integral(0, 0))
	assert.Equal(t, 2.0, h.Integral(0, 1))
	assert.Equal(t, 4.0, h.Integral(0, h.BinIndex(1.5)))
	assert.Equal(t, 2.0, h.Integral(2, 2))
	assert.Equal(t, 6.0, h.Integral(0, h.NumBins()+1))
	assert.Equal(t, 6.0, h.Integral(-3, 100))
}

func TestBinCenters(t *testing.T) {
	h := New(4, -1, 1)
	h.FillW(0.1, 3)
	x, y := h.Bin(3)
	assert.InDelta(t, 0.25, x, 1e-12)
	assert.Equal(t, 3.0, y)
	min, max := h.AxisRange()
	assert.Equal(t, -1.0, min)
	assert.Equal(t, 1.0, max)
}

func TestCheckEntries(t *testing.T) {
	h := New(4, 0, 1)
	assert.True(t, errors.Is(CheckEntries(h), ErrEmpty))
	assert.Equal(t, 0.0, h.Mean())
	assert.Equal(t, 0.0, h.StdDev())
	h.Fill(0.5)
	assert.NoError(t, CheckEntries(h))
	assert.True(t, errors.Is(CheckEntries(nil), ErrEmpty))
}

func TestMoments(t *testing.T) {
	h := New(100, 0, 10)
	for _, x := range []float64{2.05, 4.05, 4.05, 4.05, 5.05, 5.05, 7.05, 9.05} {
		h.Fill(x)
	}
	assert.InDelta(t, 5.05, h.Mean(), 1e-9)
	assert.InDelta(t, 2.0, h.StdDev(), 1e-9)
}

func TestMomentsSkipOutflows(t *testing.T) {
	h := New(10, 0, 10)
	h.FillN(2.5, 2)
	h.FillN(4.5, 2)
	h.FillW(-50, 3)
	h.FillW(80, 1)

	assert.Equal(t, uint64(6), h.Entries())
	assert.InDelta(t, 3.5, h.Mean(), 1e-12)
	assert.InDelta(t, 1.0, h.StdDev(), 1e-12)
	assert.Equal(t, 3.0, h.Integral(0, 0))
	assert.Equal(t, 1.0, h.Integral(h.NumBins()+1, h.NumBins()+1))
}

func TestRangeStats(t *testing.T) {
	h := New(10, 0, 10)
	h.FillW(2.5, 1)
	h.FillW(3.5, 2)
	h.FillW(4.5, 1)
	h.FillW(8.5, 10)

	w := RangeStats(h, 2, 5)
	assert.Equal(t, 3, w.Bins)
	assert.Equal(t, 4.0, w.Sum)
	assert.Equal(t, 2.0, w.Peak)
	assert.InDelta(t, 3.5, w.Mean, 1e-12)
	assert.InDelta(t, 0.7071, w.StdDev, 1e-4)

	empty := RangeStats(h, 5, 8)
	assert.Equal(t, 0.0, empty.Sum)
	assert.Equal(t, 0.0, empty.Mean)
}

func TestReadCharges(t *testing.T) {
	in := "charge,filtered\n0.1,0.01\n0.9, -0.02\n1.7,\n\n"
	raw, filtered, err := ReadCharges(strings.NewReader(in), 40, -1, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), raw.Entries())
	require.NotNil(t, filtered)
	assert.Equal(t, uint64(2), filtered.Entries())
}

func TestReadChargesRawOnly(t *testing.T) {
	in := "charge\n0.1\n0.2\n"
	raw, filtered, err := ReadCharges(strings.NewReader(in), 40, -1, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), raw.Entries())
	assert.Nil(t, filtered)
}

func TestReadChargesBadRow(t *testing.T) {
	in := "charge\n0.1\nabc\n"
	_, _, err := ReadCharges(strings.NewReader(in), 40, -1, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
}
