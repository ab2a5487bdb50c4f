package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/HamletTheHamster/spefit/internal/fit"
	"github.com/HamletTheHamster/spefit/internal/spe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spefit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
binning:
  bins: 1000
model: vinogradov
spe:
  max_spe_charge: 3
optimizer:
  iterations: 200
output:
  note: run 7
  formats: [png, pdf]
workers: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Binning.Bins)
	assert.Equal(t, -1.0, cfg.Binning.Min)
	assert.Equal(t, spe.Vinogradov, cfg.Model)
	assert.Equal(t, 3.0, cfg.SPE.MaxSPECharge)
	assert.Equal(t, 0.8, cfg.SPE.SPECharge)
	assert.Equal(t, 200, cfg.Optimizer.Iterations)
	assert.Equal(t, 1e-16, cfg.Optimizer.ObjectiveTol)
	assert.Equal(t, "run 7", cfg.Output.Note)
	assert.Equal(t, "plots", cfg.Output.Dir)
	assert.Equal(t, []string{"png", "pdf"}, cfg.Output.Formats)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bad model", "model: gauss\n", "unknown occupancy model"},
		{"bad binning", "binning: {min: 2, max: 1}\n", "must exceed"},
		{"bad format", "output: {formats: [jpg]}\n", `unknown format "jpg"`},
		{"bad workers", "workers: 0\n", "workers"},
		{"bad method", "method: simplex\n", `method: unknown "simplex"`},
		{"bad peaks", "spe: {min_peaks: 5, max_peaks: 3}\n", "spe defaults"},
		{"not yaml", "binning: [\n", "failed to parse"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.text))
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewOptimizer(t *testing.T) {
	cfg := Default()
	assert.Equal(t, fit.DefaultLM(), cfg.NewOptimizer())

	cfg.Method = "bfgs"
	cfg.Optimizer.Iterations = 300
	assert.Equal(t, fit.Minimizer{Method: "bfgs", Iterations: 300}, cfg.NewOptimizer())
}
