//go:build !gnuplot

package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviewWithoutGnuplot(t *testing.T) {
	err := Preview("ch0", testHist(), testResult())
	assert.True(t, errors.Is(err, ErrNoGnuplot))
}
