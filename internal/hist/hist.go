// Package hist provides the charge histograms the SPE fit reads from.
//
// Bin indices follow the usual convention for histograms with outflow bins:
// 0 is the underflow, 1..NumBins are the regular bins and NumBins+1 is the
// overflow. Integral(0, BinIndex(x)) therefore counts every entry below x.
package hist

import (
	"errors"
	"math"

	"go-hep.org/x/hep/hbook"
)

// ErrEmpty is returned when a histogram holds no entries.
var ErrEmpty = errors.New("hist: histogram has no entries")

// Histogram is the read-only view of a binned charge distribution.
type Histogram interface {
	Mean() float64
	StdDev() float64
	Entries() uint64
	// BinIndex returns the bin x would be filled into.
	BinIndex(x float64) int
	// Integral sums the contents of bins lo..hi inclusive.
	Integral(lo, hi int) float64
	AxisRange() (min, max float64)
	NumBins() int
	// Bin returns the center and content of regular bin i (1..NumBins).
	Bin(i int) (center, content float64)
}

// CheckEntries returns ErrEmpty if h has no entries.
func CheckEntries(h Histogram) error {
	if h == nil || h.Entries() == 0 {
		return ErrEmpty
	}
	return nil
}

// H1D is a Histogram backed by an hbook.H1D.
type H1D struct {
	h *hbook.H1D
}

// New creates an empty histogram with bins uniform bins over [min, max).
func New(bins int, min, max float64) *H1D {
	return &H1D{h: hbook.NewH1D(bins, min, max)}
}

// Fill adds one entry at x.
func (h *H1D) Fill(x float64) {
	h.FillW(x, 1)
}

// FillW adds an entry at x with weight w.
func (h *H1D) FillW(x, w float64) {
	h.h.Fill(x, w)
}

// FillN adds n unit-weight entries at x.
func (h *H1D) FillN(x float64, n int) {
	for i := 0; i < n; i++ {
		h.FillW(x, 1)
	}
}

// Raw exposes the underlying hbook histogram, for plotting.
func (h *H1D) Raw() *hbook.H1D {
	return h.h
}

// Mean is the mean of the regular bins, taken at their centers. Entries in
// the outflow bins do not count.
func (h *H1D) Mean() float64 {
	min, max := h.AxisRange()
	return RangeStats(h, min, max).Mean
}

// StdDev is the standard deviation of the regular bins, taken at their
// centers.
func (h *H1D) StdDev() float64 {
	min, max := h.AxisRange()
	return RangeStats(h, min, max).StdDev
}

func (h *H1D) Entries() uint64 {
	return uint64(h.h.Entries())
}

func (h *H1D) AxisRange() (float64, float64) {
	return h.h.XMin(), h.h.XMax()
}

func (h *H1D) NumBins() int {
	return h.h.Len()
}

func (h *H1D) BinIndex(x float64) int {
	min, max := h.AxisRange()
	n := h.NumBins()
	switch {
	case math.IsNaN(x):
		return n + 1
	case x < min:
		return 0
	case x >= max:
		return n + 1
	}
	i := 1 + int(math.Floor((x-min)/(max-min)*float64(n)))
	if i > n {
		i = n
	}
	return i
}

func (h *H1D) Integral(lo, hi int) float64 {
	n := h.NumBins()
	if lo < 0 {
		lo = 0
	}
	if hi > n+1 {
		hi = n + 1
	}
	sum := 0.0
	for i := lo; i <= hi; i++ {
		switch i {
		case 0:
			sum += h.h.Binning.Outflows[0].SumW()
		case n + 1:
			sum += h.h.Binning.Outflows[1].SumW()
		default:
			sum += h.h.Binning.Bins[i-1].SumW()
		}
	}
	return sum
}

func (h *H1D) Bin(i int) (float64, float64) {
	b := h.h.Binning.Bins[i-1]
	return b.XMid(), b.SumW()
}

// Window summarizes the bins whose centers fall inside [lo, hi].
type Window struct {
	Sum    float64
	Mean   float64
	StdDev float64
	// Peak is the largest bin content in the window.
	Peak float64
	Bins int
}

// RangeStats computes content-weighted moments of h over [lo, hi].
func RangeStats(h Histogram, lo, hi float64) Window {
	var w Window
	var sx, sxx float64
	for i := 1; i <= h.NumBins(); i++ {
		x, y := h.Bin(i)
		if x < lo || x > hi {
			continue
		}
		w.Bins++
		w.Sum += y
		sx += x * y
		sxx += x * x * y
		if y > w.Peak {
			w.Peak = y
		}
	}
	if w.Sum > 0 {
		w.Mean = sx / w.Sum
		if v := sxx/w.Sum - w.Mean*w.Mean; v > 0 {
			w.StdDev = math.Sqrt(v)
		}
	}
	return w
}
