package report

import (
	"errors"

	"github.com/HamletTheHamster/spefit/internal/hist"
	"github.com/HamletTheHamster/spefit/internal/spe"
)

// ErrNoGnuplot is returned by Preview in builds without the gnuplot tag.
var ErrNoGnuplot = errors.New("report: built without gnuplot preview, rebuild with -tags gnuplot")

// previewData returns the bin contents and the fitted spectrum at the bin
// centers as [x, y] groups. fitted is nil when there is no fit to show.
func previewData(
	h *hist.H1D,
	res spe.Result,
) (
	data, fitted [][]float64,
) {

	var spectrum func(float64) float64
	if res.NumPeaks > 0 {
		f, v := res.Model.Func(res.NumPeaks), res.Params.Vector()
		spectrum = func(x float64) float64 { return f(x, v) }
	}

	var xs, ys, fs []float64
	for i := 1; i <= h.NumBins(); i++ {
		x, y := h.Bin(i)
		xs = append(xs, x)
		ys = append(ys, y)
		if spectrum != nil && x >= res.RangeLow && x <= res.RangeHigh {
			fs = append(fs, spectrum(x))
		}
	}
	data = [][]float64{xs, ys}
	if len(fs) == 0 {
		return data, nil
	}

	fx := make([]float64, 0, len(fs))
	for _, x := range xs {
		if x >= res.RangeLow && x <= res.RangeHigh {
			fx = append(fx, x)
		}
	}
	return data, [][]float64{fx, fs}
}
