//go:build gnuplot

package report

import (
	"fmt"

	"github.com/Arafatk/glot"
	"github.com/HamletTheHamster/spefit/internal/hist"
	"github.com/HamletTheHamster/spefit/internal/spe"
)

// Preview opens a gnuplot window with the histogram and the fitted
// spectrum. glot looks gnuplot up when the package is loaded, so this file
// is only built with the gnuplot tag.
func Preview(
	name string,
	h *hist.H1D,
	res spe.Result,
) (
	err error,
) {

	plot, err := glot.NewPlot(2, true, false)
	if err != nil {
		return fmt.Errorf("gnuplot: %w", err)
	}
	defer func() {
		if cerr := plot.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("gnuplot: %w", cerr)
		}
	}()

	plot.SetTitle(name)
	plot.SetXLabel("Charge (pC)")
	plot.SetYLabel("Entries")

	data, fitted := previewData(h, res)
	if err := plot.AddPointGroup("data", "impulses", data); err != nil {
		return err
	}
	if fitted != nil {
		if err := plot.AddPointGroup(res.Model.String()+" fit", "lines", fitted); err != nil {
			return err
		}
	}
	return nil
}
