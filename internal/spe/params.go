package spe

import (
	"fmt"
	"log/slog"
)

// Params are the parameters of the composite charge spectrum.
type Params struct {
	// Scale is the overall amplitude.
	Scale float64
	// Offset is the location of the zero-photoelectron peak.
	Offset float64
	// Lambda is the mean number of primary photoelectrons in the
	// integration window.
	Lambda float64
	// SPECharge is the mean charge of a single photoelectron.
	SPECharge float64
	// NoiseSpread is the std. dev. of the electronic noise.
	NoiseSpread float64
	// SPEChargeSpread is the std. dev. of the single-photoelectron charge.
	SPEChargeSpread float64
	// SecondaryProb is the probability that a primary photoelectron
	// triggers a secondary one.
	SecondaryProb float64
}

// Positions of the parameters in the fit vector.
const (
	iScale = iota
	iOffset
	iLambda
	iSPECharge
	iNoiseSpread
	iSPEChargeSpread
	iSecondaryProb
	numParams
)

var paramNames = [numParams]string{
	"scale",
	"offset",
	"lambda",
	"spe_charge",
	"noise_spread",
	"spe_charge_spread",
	"secondary_prob",
}

// Vector returns p in fit-vector order.
func (p Params) Vector() []float64 {
	v := make([]float64, numParams)
	v[iScale] = p.Scale
	v[iOffset] = p.Offset
	v[iLambda] = p.Lambda
	v[iSPECharge] = p.SPECharge
	v[iNoiseSpread] = p.NoiseSpread
	v[iSPEChargeSpread] = p.SPEChargeSpread
	v[iSecondaryProb] = p.SecondaryProb
	return v
}

func paramsFromVector(v []float64) Params {
	return Params{
		Scale:           v[iScale],
		Offset:          v[iOffset],
		Lambda:          v[iLambda],
		SPECharge:       v[iSPECharge],
		NoiseSpread:     v[iNoiseSpread],
		SPEChargeSpread: v[iSPEChargeSpread],
		SecondaryProb:   v[iSecondaryProb],
	}
}

func (p Params) String() string {
	v := p.Vector()
	s := ""
	for i, name := range paramNames {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%.6g", name, v[i])
	}
	return s
}

// LogValue lets the parameters be logged as a group.
func (p Params) LogValue() slog.Value {
	v := p.Vector()
	attrs := make([]slog.Attr, numParams)
	for i, name := range paramNames {
		attrs[i] = slog.Float64(name, v[i])
	}
	return slog.GroupValue(attrs...)
}
