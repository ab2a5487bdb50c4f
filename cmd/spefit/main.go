// spefit fits the single-photoelectron charge of photomultiplier channels.
//
// Usage:
//
//	spefit [flags] <charges.csv>...
//
// Every input file is one channel: a header row followed by one event per
// row, charge[,filtered_charge]. Plots, log.txt and results.csv are written
// to plots/<date>/<time>: <note>.
//
// The -gnuplot preview is only available in binaries built with
// -tags gnuplot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/HamletTheHamster/spefit/internal/batch"
	"github.com/HamletTheHamster/spefit/internal/config"
	"github.com/HamletTheHamster/spefit/internal/hist"
	"github.com/HamletTheHamster/spefit/internal/report"
	"github.com/HamletTheHamster/spefit/internal/spe"
)

func main() {

	cfg, files, verbose := flags()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, files, logger); err != nil {
		logger.Error("spefit failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func flags() (
	config.Config, []string, bool,
) {

	var configPath, model, method, out, note string
	var bins, workers int
	var xmin, xmax float64
	var slide, gnuplot, verbose bool

	flag.StringVar(&configPath, "config", "", "YAML configuration file")
	flag.StringVar(&model, "model", "", "occupancy model: poisson or vinogradov")
	flag.StringVar(&method, "method", "", "minimizer: lm, nelder-mead or bfgs")
	flag.IntVar(&bins, "bins", 0, "number of histogram bins")
	flag.Float64Var(&xmin, "min", 0, "lower edge of the charge axis (pC)")
	flag.Float64Var(&xmax, "max", 0, "upper edge of the charge axis (pC)")
	flag.StringVar(&out, "out", "", "root directory for plots and logs")
	flag.StringVar(&note, "note", "", "note to append folder name")
	flag.BoolVar(&slide, "slide", false, "format figures for slide presentation")
	flag.IntVar(&workers, "j", 0, "number of channels fitted in parallel")
	flag.BoolVar(&gnuplot, "gnuplot", false, "open a gnuplot preview of every fit (needs a build with -tags gnuplot)")
	flag.BoolVar(&verbose, "v", false, "log every fit stage")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	// Flags given on the command line win over the file.
	var errs []error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			m, err := spe.ParseModel(model)
			if err != nil {
				errs = append(errs, err)
			}
			cfg.Model = m
		case "method":
			cfg.Method = method
		case "bins":
			cfg.Binning.Bins = bins
		case "min":
			cfg.Binning.Min = xmin
		case "max":
			cfg.Binning.Max = xmax
		case "out":
			cfg.Output.Dir = out
		case "note":
			cfg.Output.Note = note
		case "slide":
			cfg.Output.Slide = slide
		case "j":
			cfg.Workers = workers
		case "gnuplot":
			cfg.Output.Gnuplot = gnuplot
		}
	})
	errs = append(errs, cfg.Validate())
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: spefit [flags] <charges.csv>...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	return cfg, flag.Args(), verbose
}

// channel is a fitted input file.
type channel struct {
	raw *hist.H1D
	res spe.Result
}

func run(
	ctx context.Context,
	cfg config.Config,
	files []string,
	logger *slog.Logger,
) error {

	logpath := report.LogPath(cfg.Output.Dir, cfg.Output.Note, time.Now())
	logger.Info("fitting channels", "files", len(files), "model", cfg.Model.String(), "out", logpath)

	results := batch.Run(ctx, files, cfg.Workers, func(ctx context.Context, path string) (channel, error) {
		return fitFile(cfg, path, logger.With("channel", channelName(path)))
	})

	logFile := report.LogHeader(cfg.Model, cfg.Output.Note, cfg.Output.Slide)
	rows := make([]report.Row, len(files))
	var inputErrs []error

	for i, r := range results {
		name := channelName(files[i])
		rows[i] = report.Row{Channel: name, Result: r.Value.res, Err: r.Err}
		logFile = report.LogChannel(logFile, rows[i])
		if r.Err != nil {
			logger.Error("channel skipped", "channel", name, "err", r.Err)
			inputErrs = append(inputErrs, fmt.Errorf("%s: %w", files[i], r.Err))
			continue
		}

		p, err := report.PlotFit(r.Value.raw, r.Value.res, report.PlotOptions{
			Title: name,
			Slide: cfg.Output.Slide,
			Peaks: true,
		})
		if err != nil {
			return err
		}
		if err := report.SavePlot(p, name, logpath, cfg.Output.Formats); err != nil {
			return err
		}

		if cfg.Output.Gnuplot {
			if err := report.Preview(name, r.Value.raw, r.Value.res); err != nil {
				logger.Warn("no preview", "channel", name, "err", err)
			}
		}
	}

	if err := report.WriteLog(logpath, logFile); err != nil {
		return err
	}
	csvFile, err := os.Create(filepath.Join(logpath, "results.csv"))
	if err != nil {
		return err
	}
	if err := report.WriteResults(csvFile, rows); err != nil {
		csvFile.Close()
		return err
	}
	if err := csvFile.Close(); err != nil {
		return err
	}

	if err := report.Summary(os.Stdout, rows); err != nil {
		return err
	}
	return errors.Join(inputErrs...)
}

func fitFile(
	cfg config.Config,
	path string,
	logger *slog.Logger,
) (
	channel, error,
) {

	f, err := os.Open(path)
	if err != nil {
		return channel{}, err
	}
	defer f.Close()

	raw, filtered, err := hist.ReadCharges(f, cfg.Binning.Bins, cfg.Binning.Min, cfg.Binning.Max)
	if err != nil {
		return channel{}, err
	}

	req := spe.Request{Raw: raw, Model: cfg.Model}
	if filtered != nil {
		req.Filtered = filtered
	}

	fitter := spe.NewFitter(cfg.NewOptimizer(), cfg.SPE, logger)
	res, err := fitter.FitSPE(req)
	if err != nil {
		return channel{}, err
	}
	logger.Info("fitted", "spe_charge", res.SPECharge, "error", res.SPEChargeError, "valid", res.FitValid)

	return channel{raw: raw, res: res}, nil
}

func channelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
