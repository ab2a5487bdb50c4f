// Package report turns SPE fit results into plots, log files and result
// tables.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/HamletTheHamster/spefit/internal/hist"
	"github.com/HamletTheHamster/spefit/internal/spe"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

type PlotOptions struct {
	Title string
	// Slide uses the larger fonts meant for presentations.
	Slide bool
	// Peaks adds one curve per photoelectron multiplicity.
	Peaks bool
}

// PlotFit draws the charge histogram h with the fitted spectrum of res on
// top.
func PlotFit(
	h *hist.H1D,
	res spe.Result,
	opts PlotOptions,
) (
	*plot.Plot, error,
) {

	xmin, xmax := h.AxisRange()
	ymax := 0.0
	for i := 1; i <= h.NumBins(); i++ {
		_, y := h.Bin(i)
		ymax = math.Max(ymax, y)
	}
	if ymax == 0 {
		ymax = 1
	}
	ymax *= 1.1

	p, t, r := prepPlot(
		opts.Title, "Charge (pC)", "Entries",
		[]float64{xmin, xmax}, []float64{0, ymax},
		opts.Slide,
	)

	data := hplot.NewH1D(h.Raw())
	data.LineStyle.Color = palette(0, true)
	data.LineStyle.Width = vg.Points(2)
	data.FillColor = palette(0, false)
	p.Add(data, t, r)
	p.Legend.Add("data", data)

	if res.NumPeaks == 0 {
		return p, nil
	}

	lo, hi := res.RangeLow, res.RangeHigh
	if !(hi > lo) {
		lo, hi = xmin, xmax
	}
	params, model := res.Params, res.Model

	if opts.Peaks {
		for i := 0; i < res.NumPeaks; i++ {
			peak := plotter.NewFunction(func(x float64) float64 {
				return model.Peak(x, params, i)
			})
			peak.XMin, peak.XMax = lo, hi
			peak.Samples = 500
			peak.Color = palette(i+2, true)
			peak.Width = vg.Points(3)
			peak.Dashes = []vg.Length{vg.Points(10), vg.Points(6)}
			p.Add(peak)
			p.Legend.Add(fmt.Sprintf("%d p.e.", i), peak)
		}
	}

	spectrum, v := model.Func(res.NumPeaks), params.Vector()
	total := plotter.NewFunction(func(x float64) float64 {
		return spectrum(x, v)
	})
	total.XMin, total.XMax = lo, hi
	total.Samples = 1000
	total.Color = palette(1, true)
	total.Width = vg.Points(4)
	p.Add(total)
	label := fmt.Sprintf("%v fit, q = %.4g ± %.2g", model, res.SPECharge, res.SPEChargeError)
	if !res.FitValid {
		label += " (invalid)"
	}
	p.Legend.Add(label, total)

	return p, nil
}

func prepPlot(
	title, xlabel, ylabel string,
	xrange, yrange []float64,
	slide bool,
) (
	*plot.Plot,
	*plotter.Line, *plotter.Line,
) {

	p := plot.New()
	p.BackgroundColor = color.RGBA{A: 0}
	p.Title.Text = title
	p.Title.TextStyle.Font.Typeface = "liberation"
	p.Title.TextStyle.Font.Variant = "Sans"

	p.X.Label.Text = xlabel
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.LineStyle.Width = vg.Points(1.5)
	p.X.Min = xrange[0]
	p.X.Max = xrange[1]
	p.X.Tick.LineStyle.Width = vg.Points(1.5)
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Marker = plot.ConstantTicks(ticks(xrange[0], xrange[1], 5))
	p.X.Padding = vg.Points(-8)

	p.Y.Label.Text = ylabel
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.LineStyle.Width = vg.Points(1.5)
	p.Y.Min = yrange[0]
	p.Y.Max = yrange[1]
	p.Y.Tick.LineStyle.Width = vg.Points(1.5)
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Marker = plot.ConstantTicks(ticks(yrange[0], yrange[1], 4))
	p.Y.Padding = vg.Points(-6)

	p.Legend.TextStyle.Font.Variant = "Sans"
	p.Legend.Top = true
	p.Legend.XOffs = vg.Points(-25)
	p.Legend.YOffs = vg.Points(25)
	p.Legend.Padding = vg.Points(10)
	p.Legend.ThumbnailWidth = vg.Points(50)

	if slide {
		p.Title.TextStyle.Font.Size = 80
		p.Title.Padding = vg.Points(80)

		p.X.Label.TextStyle.Font.Size = 56
		p.X.Label.Padding = vg.Points(40)
		p.X.Tick.Label.Font.Size = 56

		p.Y.Label.TextStyle.Font.Size = 56
		p.Y.Label.Padding = vg.Points(40)
		p.Y.Tick.Label.Font.Size = 56

		p.Legend.TextStyle.Font.Size = 56
	} else {
		p.Title.TextStyle.Font.Size = 50
		p.Title.Padding = vg.Points(50)

		p.X.Label.TextStyle.Font.Size = 36
		p.X.Label.Padding = vg.Points(20)
		p.X.Tick.Label.Font.Size = 36

		p.Y.Label.TextStyle.Font.Size = 36
		p.Y.Label.Padding = vg.Points(20)
		p.Y.Tick.Label.Font.Size = 36

		p.Legend.TextStyle.Font.Size = 28
	}

	// Enclose plot
	top := plotter.XYs{{X: xrange[0], Y: yrange[1]}, {X: xrange[1], Y: yrange[1]}}
	right := plotter.XYs{{X: xrange[1], Y: yrange[0]}, {X: xrange[1], Y: yrange[1]}}

	// NewLine only fails on non-finite points.
	tAxis, _ := plotter.NewLine(top)
	rAxis, _ := plotter.NewLine(right)
	tAxis.Width = vg.Points(1.5)
	rAxis.Width = vg.Points(1.5)

	return p, tAxis, rAxis
}

// ticks returns about n labelled ticks on round values between lo and hi.
func ticks(lo, hi float64, n int) []plot.Tick {
	if !(hi > lo) || n < 1 {
		return nil
	}
	raw := (hi - lo) / float64(n)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := mag
	for _, m := range []float64{1, 2, 5, 10} {
		step = m * mag
		if step >= raw {
			break
		}
	}

	decimals := max(0, -int(math.Floor(math.Log10(step))))
	var ts []plot.Tick
	for k := math.Ceil(lo / step); k*step <= hi+step*1e-9; k++ {
		v := k * step
		if v == 0 {
			v = 0 // no "-0" label
		}
		ts = append(ts, plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', decimals, 64)})
	}
	return ts
}

func palette(
	brush int,
	dark bool,
) color.RGBA {

	if dark {
		darkColor := []color.RGBA{
			{R: 27, G: 170, B: 139, A: 255},
			{R: 201, G: 104, B: 146, A: 255},
			{R: 99, G: 124, B: 198, A: 255},
			{R: 91, G: 22, B: 22, A: 255},
			{R: 188, G: 117, B: 255, A: 255},
			{R: 234, G: 156, B: 172, A: 255},
			{R: 1, G: 56, B: 84, A: 255},
			{R: 46, G: 140, B: 60, A: 255},
			{R: 140, G: 46, B: 49, A: 255},
			{R: 122, G: 41, B: 104, A: 255},
			{R: 41, G: 122, B: 100, A: 255},
			{R: 122, G: 90, B: 41, A: 255},
			{R: 183, G: 139, B: 89, A: 255},
			{R: 22, G: 44, B: 91, A: 255},
			{R: 59, G: 17, B: 66, A: 255},
			{R: 18, G: 102, B: 99, A: 255},
			{R: 255, G: 102, B: 102, A: 255},
		}
		return darkColor[brush%len(darkColor)]
	}

	col := []color.RGBA{
		{R: 31, G: 211, B: 172, A: 255},
		{R: 255, G: 122, B: 180, A: 255},
		{R: 122, G: 156, B: 255, A: 255},
		{R: 91, G: 22, B: 22, A: 255},
		{R: 188, G: 117, B: 255, A: 255},
		{R: 234, G: 156, B: 172, A: 255},
		{R: 1, G: 56, B: 84, A: 255},
		{R: 46, G: 140, B: 60, A: 255},
		{R: 140, G: 46, B: 49, A: 255},
		{R: 122, G: 41, B: 104, A: 255},
		{R: 41, G: 122, B: 100, A: 255},
		{R: 122, G: 90, B: 41, A: 255},
		{R: 255, G: 193, B: 122, A: 255},
		{R: 22, G: 44, B: 91, A: 255},
		{R: 59, G: 17, B: 66, A: 255},
		{R: 27, G: 150, B: 146, A: 255},
		{R: 255, G: 102, B: 102, A: 255},
	}
	return col[brush%len(col)]
}

// SavePlot writes p to dir/name.<format> for every format, creating dir if
// needed.
func SavePlot(
	p *plot.Plot,
	name, dir string,
	formats []string,
) error {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	var errs []error
	for _, format := range formats {
		path := filepath.Join(dir, name+"."+format)
		if err := p.Save(15*vg.Inch, 15*vg.Inch, path); err != nil {
			errs = append(errs, fmt.Errorf("saving %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
