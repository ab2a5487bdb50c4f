package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HamletTheHamster/spefit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCharges writes a channel with a zero peak at 0 and photoelectron
// peaks every 0.8 pC.
func writeCharges(t *testing.T, dir, name string, filtered bool) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))

	var b strings.Builder
	b.WriteString("charge,filtered\n")
	for i := 0; i < 5000; i++ {
		n := 0
		for rng.Float64() < 0.4 && n < 5 {
			n++
		}
		q := float64(n)*0.8 + rng.NormFloat64()*0.05
		if filtered {
			fmt.Fprintf(&b, "%g,%g\n", q, rng.NormFloat64()*0.01)
		} else {
			fmt.Fprintf(&b, "%g\n", q)
		}
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRun(t *testing.T) {
	in := t.TempDir()
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Note = "test"
	cfg.Output.Formats = []string{"svg"}
	cfg.Workers = 2

	files := []string{
		writeCharges(t, in, "ch0.csv", true),
		writeCharges(t, in, "ch1.csv", false),
		filepath.Join(in, "missing.csv"),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := run(context.Background(), cfg, files, logger)
	require.Error(t, err, "missing input is reported")
	assert.ErrorIs(t, err, os.ErrNotExist)

	runs, err := filepath.Glob(filepath.Join(cfg.Output.Dir, "*", "*: test"))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	out := runs[0]

	for _, name := range []string{"ch0.svg", "ch1.svg", "log.txt", "results.csv"} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.NoFileExists(t, filepath.Join(out, "missing.svg"))

	f, err := os.Open(filepath.Join(out, "results.csv"))
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, "ch0", recs[1][0])
	assert.Equal(t, "ch1", recs[2][0])
	assert.Equal(t, "missing", recs[3][0])
	assert.NotEmpty(t, recs[3][13])
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "ch7", channelName("/data/run1/ch7.csv"))
	assert.Equal(t, "ch7", channelName("ch7"))
}
