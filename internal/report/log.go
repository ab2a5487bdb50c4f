package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/HamletTheHamster/spefit/internal/spe"
)

// LogPath is the output directory of a run: <root>/<date>/<time>: <note>.
func LogPath(
	root, note string,
	now time.Time,
) string {
	dir := now.Format("15:04:05")
	if note != "" {
		dir += ": " + note
	}
	return filepath.Join(root, now.Format("2006-Jan-02"), dir)
}

// Row is the outcome for one channel. Err is set when the channel could not
// be fitted at all.
type Row struct {
	Channel string
	Result  spe.Result
	Err     error
}

// LogHeader starts a run log.
func LogHeader(
	model spe.Model,
	note string,
	slide bool,
) []string {

	logFile := []string{fmt.Sprintf("Occupancy model: %v\n", model)}
	if note != "" {
		logFile = append(logFile, "Runtime note: "+note+"\n")
	}
	if slide {
		logFile = append(logFile, "Figures formatted for slide presentation\n")
	}
	return logFile
}

// LogChannel appends the summary of one channel to logFile.
func LogChannel(
	logFile []string,
	row Row,
) []string {

	logFile = append(logFile, fmt.Sprintf("\nChannel %s\n", row.Channel))
	if row.Err != nil {
		return append(logFile, fmt.Sprintf("\tError: %v\n", row.Err))
	}

	res := row.Result
	logFile = append(logFile, fmt.Sprintf("\tSPE charge: %.5g ± %.2g pC\n", res.SPECharge, res.SPEChargeError))
	logFile = append(logFile, fmt.Sprintf("\tFit valid: %v\n", res.FitValid))
	if nf := res.NoiseFloor; nf != nil {
		logFile = append(logFile, fmt.Sprintf("\tNoise floor: offset %.4g, noise %.3g, zero peak width %.3g (%d rounds)\n",
			nf.Offset, nf.NoiseSpread, nf.RawSpread, nf.Rounds))
	}
	logFile = append(logFile, fmt.Sprintf("\tPeaks: %d, range [%.3g, %.3g]\n", res.NumPeaks, res.RangeLow, res.RangeHigh))
	logFile = append(logFile, fmt.Sprintf("\tChi2/NDF: %.4g/%d\n", res.Chi2, res.NDF))
	logFile = append(logFile, "\tFit Parameters:\n")
	logFile = append(logFile, fmt.Sprintf("\t\tScale:           %v ± %v\n", res.Params.Scale, res.Errors.Scale))
	logFile = append(logFile, fmt.Sprintf("\t\tOffset:          %v ± %v\n", res.Params.Offset, res.Errors.Offset))
	logFile = append(logFile, fmt.Sprintf("\t\tLambda:          %v ± %v\n", res.Params.Lambda, res.Errors.Lambda))
	logFile = append(logFile, fmt.Sprintf("\t\tSPE charge:      %v ± %v\n", res.Params.SPECharge, res.Errors.SPECharge))
	logFile = append(logFile, fmt.Sprintf("\t\tNoise spread:    %v ± %v\n", res.Params.NoiseSpread, res.Errors.NoiseSpread))
	logFile = append(logFile, fmt.Sprintf("\t\tSPE spread:      %v ± %v\n", res.Params.SPEChargeSpread, res.Errors.SPEChargeSpread))
	logFile = append(logFile, fmt.Sprintf("\t\tSecondary prob.: %v ± %v\n", res.Params.SecondaryProb, res.Errors.SecondaryProb))
	for _, err := range res.Fallbacks {
		logFile = append(logFile, fmt.Sprintf("\tFallback: %v\n", err))
	}
	return logFile
}

// WriteLog writes the lines of logFile to dir/log.txt.
func WriteLog(
	dir string,
	logFile []string,
) error {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	txt, err := os.Create(filepath.Join(dir, "log.txt"))
	if err != nil {
		return err
	}
	defer txt.Close()

	w := bufio.NewWriter(txt)
	for _, line := range logFile {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return txt.Close()
}

var resultHeader = []string{
	"channel", "model", "spe_charge", "spe_charge_error", "fit_valid",
	"scale", "offset", "lambda", "noise_spread", "spe_charge_spread", "secondary_prob",
	"chi2", "ndf", "error",
}

// WriteResults writes one CSV record per row.
func WriteResults(
	w io.Writer,
	rows []Row,
) error {

	cw := csv.NewWriter(w)
	if err := cw.Write(resultHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(record(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(row Row) []string {
	if row.Err != nil {
		rec := make([]string, len(resultHeader))
		rec[0] = row.Channel
		rec[len(rec)-1] = row.Err.Error()
		return rec
	}

	res := row.Result
	var msg string
	if !res.FitValid {
		msg = spe.ErrFitNonConvergent.Error()
	}
	return []string{
		row.Channel,
		res.Model.String(),
		formatFloat(res.SPECharge),
		formatFloat(res.SPEChargeError),
		strconv.FormatBool(res.FitValid),
		formatFloat(res.Params.Scale),
		formatFloat(res.Params.Offset),
		formatFloat(res.Params.Lambda),
		formatFloat(res.Params.NoiseSpread),
		formatFloat(res.Params.SPEChargeSpread),
		formatFloat(res.Params.SecondaryProb),
		formatFloat(res.Chi2),
		strconv.Itoa(res.NDF),
		msg,
	}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Summary prints one line per channel.
func Summary(
	w io.Writer,
	rows []Row,
) error {

	for _, row := range rows {
		var err error
		switch {
		case row.Err != nil:
			_, err = fmt.Fprintf(w, "%-24s error: %v\n", row.Channel, row.Err)
		case !row.Result.FitValid:
			_, err = fmt.Fprintf(w, "%-24s q = %.5g pC (fit invalid)\n", row.Channel, row.Result.SPECharge)
		default:
			_, err = fmt.Fprintf(w, "%-24s q = %.5g ± %.2g pC\n", row.Channel, row.Result.SPECharge, row.Result.SPEChargeError)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
