package hist

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadCharges fills histograms from a per-event charge table. The first row
// is a header and is skipped. Each following row holds the integrated charge
// of one event and, optionally, the charge of the same event after the
// high-pass filter. filtered is nil when no row carries a second column.
func ReadCharges(
	rs io.ReadSeeker,
	bins int,
	min, max float64,
) (
	raw, filtered *H1D,
	err error,
) {

	rows, err := readCSV(rs)
	if err != nil {
		return nil, nil, err
	}

	raw = New(bins, min, max)
	for i, row := range rows {
		// +2: header row, 1-based numbering
		line := i + 2

		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		q, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: charge: %w", line, err)
		}
		raw.Fill(q)

		if len(row) < 2 || strings.TrimSpace(row[1]) == "" {
			continue
		}
		fq, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: filtered charge: %w", line, err)
		}
		if filtered == nil {
			filtered = New(bins, min, max)
		}
		filtered.Fill(fq)
	}

	return raw, filtered, nil
}

func readCSV(
	rs io.ReadSeeker,
) (
	[][]string, error,
) {
	// Skip first row (line)
	row1, err := bufio.NewReader(rs).ReadSlice('\n')
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	_, err = rs.Seek(int64(len(row1)), io.SeekStart)
	if err != nil {
		return nil, err
	}

	// Read remaining rows
	r := csv.NewReader(rs)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return rows, nil
}
