//go:build !gnuplot

package report

import (
	"github.com/HamletTheHamster/spefit/internal/hist"
	"github.com/HamletTheHamster/spefit/internal/spe"
)

// Preview needs gnuplot support compiled in; see preview_gnuplot.go.
func Preview(
	name string,
	h *hist.H1D,
	res spe.Result,
) error {
	return ErrNoGnuplot
}
