// Package config holds the settings of an spefit run.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/HamletTheHamster/spefit/internal/fit"
	"github.com/HamletTheHamster/spefit/internal/spe"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Binning Binning      `yaml:"binning"`
	Model   spe.Model    `yaml:"model"`
	SPE     spe.Defaults `yaml:"spe"`
	// Method selects the minimizer: "lm", "nelder-mead" or "bfgs".
	Method    string `yaml:"method"`
	Optimizer fit.LM `yaml:"optimizer"`
	Output    Output `yaml:"output"`
	// How many channels are fitted in parallel.
	Workers int `yaml:"workers"`
}

// Binning of the charge histograms.
type Binning struct {
	Bins int     `yaml:"bins"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

type Output struct {
	// Root directory of the dated plot folders.
	Dir  string `yaml:"dir"`
	Note string `yaml:"note"`
	// Slide switches to the larger fonts used for presentations.
	Slide   bool     `yaml:"slide"`
	Formats []string `yaml:"formats"`
	// Gnuplot opens a quick-look window per channel.
	Gnuplot bool `yaml:"gnuplot"`
}

func Default() Config {
	return Config{
		Binning: Binning{
			Bins: 500,
			Min:  -1,
			Max:  4,
		},
		Model:     spe.Poisson,
		SPE:       spe.Default(),
		Method:    "lm",
		Optimizer: fit.DefaultLM(),
		Output: Output{
			Dir:     "plots",
			Formats: []string{"png"},
		},
		Workers: 1,
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

var validFormats = map[string]bool{
	"png": true,
	"svg": true,
	"pdf": true,
}

func (c Config) Validate() error {
	var errs []error
	if c.Binning.Bins < 1 {
		errs = append(errs, fmt.Errorf("binning: bins must be positive, got %d", c.Binning.Bins))
	}
	if !(c.Binning.Max > c.Binning.Min) {
		errs = append(errs, fmt.Errorf("binning: max %g must exceed min %g", c.Binning.Max, c.Binning.Min))
	}
	if c.Model != spe.Poisson && c.Model != spe.Vinogradov {
		errs = append(errs, fmt.Errorf("model: unknown %v", c.Model))
	}
	if err := c.SPE.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Method {
	case "lm", "nelder-mead", "bfgs":
	default:
		errs = append(errs, fmt.Errorf("method: unknown %q", c.Method))
	}
	if c.Optimizer.Iterations < 1 {
		errs = append(errs, fmt.Errorf("optimizer: iterations must be positive, got %d", c.Optimizer.Iterations))
	}
	for _, f := range c.Output.Formats {
		if !validFormats[f] {
			errs = append(errs, fmt.Errorf("output: unknown format %q", f))
		}
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	return errors.Join(errs...)
}

// NewOptimizer returns the minimizer selected by Method. The general-purpose
// methods share the iteration limit of the optimizer section.
func (c Config) NewOptimizer() fit.Optimizer {
	if c.Method == "lm" {
		return c.Optimizer
	}
	return fit.Minimizer{Method: c.Method, Iterations: c.Optimizer.Iterations}
}
