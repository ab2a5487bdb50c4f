package spe

import (
	"errors"
	"fmt"
)

// Defaults holds the fallback values and tuning constants of the SPE fit.
type Defaults struct {
	// Fallbacks used when the histograms cannot provide an estimate.
	Offset          float64 `yaml:"offset"`
	Lambda          float64 `yaml:"lambda"`
	SPECharge       float64 `yaml:"spe_charge"`
	NoiseSpread     float64 `yaml:"noise_spread"`
	SPEChargeSpread float64 `yaml:"spe_charge_spread"`
	ZeroPeakSpread  float64 `yaml:"zero_peak_spread"`
	// ScaleFraction times the number of entries is the fallback height of
	// the zero peak.
	ScaleFraction float64 `yaml:"scale_fraction"`

	// Truncation of the occupancy sum.
	MinPeaks     int     `yaml:"min_peaks"`
	MaxPeaks     int     `yaml:"max_peaks"`
	PeakQuantile float64 `yaml:"peak_quantile"`

	// Noise floor search.
	FilterWindow float64 `yaml:"filter_window"`
	WindowScale  float64 `yaml:"window_scale"`
	MinWindow    float64 `yaml:"min_window"`
	MaxRounds    int     `yaml:"max_rounds"`
	OffsetTol    float64 `yaml:"offset_tol"`

	// Seeding and fit bounds.
	ZeroPeakWidth    float64 `yaml:"zero_peak_width"`
	MaxSPECharge     float64 `yaml:"max_spe_charge"`
	RangeLow         float64 `yaml:"range_low"`
	RangeHigh        float64 `yaml:"range_high"`
	LambdaMargin     float64 `yaml:"lambda_margin"`
	ChargeMargin     float64 `yaml:"charge_margin"`
	SpreadMargin     float64 `yaml:"spread_margin"`
	MaxSecondaryProb float64 `yaml:"max_secondary_prob"`
}

// Default returns the constants the SPE fit was tuned with.
func Default() Defaults {
	return Defaults{
		Offset:          0,
		Lambda:          0.5,
		SPECharge:       0.8,
		NoiseSpread:     0.01,
		SPEChargeSpread: 0,
		ZeroPeakSpread:  0.4,
		ScaleFraction:   0.075,

		MinPeaks:     4,
		MaxPeaks:     20,
		PeakQuantile: 0.95,

		FilterWindow: 2,
		WindowScale:  15,
		MinWindow:    0.3,
		MaxRounds:    5,
		OffsetTol:    0.001,

		ZeroPeakWidth:    2,
		MaxSPECharge:     4,
		RangeLow:         1.5,
		RangeHigh:        5,
		LambdaMargin:     5,
		ChargeMargin:     1,
		SpreadMargin:     0.1,
		MaxSecondaryProb: 0.25,
	}
}

// Validate checks that the constants describe a usable fit.
func (d Defaults) Validate() error {
	var errs []error
	if d.MinPeaks < 1 || d.MaxPeaks < d.MinPeaks {
		errs = append(errs, fmt.Errorf("peaks: need 1 <= min_peaks (%d) <= max_peaks (%d)", d.MinPeaks, d.MaxPeaks))
	}
	if d.PeakQuantile <= 0 || d.PeakQuantile >= 1 {
		errs = append(errs, fmt.Errorf("peak_quantile %g outside (0, 1)", d.PeakQuantile))
	}
	if d.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("max_rounds %d < 1", d.MaxRounds))
	}
	if d.Lambda <= 0 {
		errs = append(errs, fmt.Errorf("lambda %g <= 0", d.Lambda))
	}
	if d.ZeroPeakSpread <= 0 || d.NoiseSpread <= 0 {
		errs = append(errs, errors.New("zero_peak_spread and noise_spread must be positive"))
	}
	if d.MaxSecondaryProb < 0 || d.MaxSecondaryProb >= 1 {
		errs = append(errs, fmt.Errorf("max_secondary_prob %g outside [0, 1)", d.MaxSecondaryProb))
	}
	if len(errs) > 0 {
		return fmt.Errorf("spe defaults: %w", errors.Join(errs...))
	}
	return nil
}
