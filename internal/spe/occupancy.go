package spe

import (
	"fmt"
	"math"
	"strings"

	"github.com/HamletTheHamster/spefit/internal/fit"
	"gonum.org/v1/gonum/stat/combin"
	"gonum.org/v1/gonum/stat/distuv"
)

// Model selects the distribution of the number of photoelectrons detected
// in an integration window.
type Model int

const (
	// Poisson ignores secondary emission.
	Poisson Model = iota
	// Vinogradov lets each primary photoelectron trigger a correlated
	// secondary one (arXiv:2106.13168).
	Vinogradov
)

func (m Model) String() string {
	switch m {
	case Poisson:
		return "poisson"
	case Vinogradov:
		return "vinogradov"
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// ParseModel parses "poisson" or "vinogradov".
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "poisson":
		return Poisson, nil
	case "vinogradov":
		return Vinogradov, nil
	}
	return 0, fmt.Errorf("spe: unknown occupancy model %q", s)
}

func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Model) UnmarshalText(text []byte) error {
	v, err := ParseModel(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Prob returns the probability of detecting n photoelectrons given a mean
// primary occupancy lambda and a secondary-emission probability p. The
// Poisson model ignores p.
func (m Model) Prob(n int, lambda, p float64) float64 {
	if m == Vinogradov {
		return VinogradovProb(n, lambda, p)
	}
	return PoissonProb(n, lambda)
}

// PoissonProb is exp(-λ) λⁿ / n!.
func PoissonProb(n int, lambda float64) float64 {
	if n < 0 {
		return 0
	}
	if lambda <= 0 {
		if n == 0 {
			return 1
		}
		return 0
	}
	return distuv.Poisson{Lambda: lambda}.Prob(float64(n))
}

// VinogradovProb is exp(-λ)/n! Σ_{i=0..n} B(i,n) (λ(1-p))^i p^(n-i).
func VinogradovProb(n int, lambda, p float64) float64 {
	if n < 0 {
		return 0
	}
	a := lambda * (1 - p)
	sum := 0.0
	for i := 0; i <= n; i++ {
		sum += lah(i, n) * math.Pow(a, float64(i)) * math.Pow(p, float64(n-i))
	}
	lg, _ := math.Lgamma(float64(n) + 1)
	return math.Exp(-lambda-lg) * sum
}

// lah returns B(i, n) = n!(n-1)! / (i!(i-1)!(n-i)!), the unsigned Lah
// number, with B(0, 0) = 1 and B(0, n>0) = 0.
func lah(i, n int) float64 {
	switch {
	case i == 0 && n == 0:
		return 1
	case i == 0 || i > n:
		return 0
	}
	// C(n-1, i-1) n!/i!
	ln, _ := math.Lgamma(float64(n) + 1)
	li, _ := math.Lgamma(float64(i) + 1)
	return combin.GeneralizedBinomial(float64(n-1), float64(i-1)) * math.Exp(ln-li)
}

// poissonQuantile returns the smallest k with P(X <= k) >= q for X ~
// Poisson(lambda).
func poissonQuantile(q, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	d := distuv.Poisson{Lambda: lambda}
	k := 0
	for d.CDF(float64(k)) < q && k < 1000 {
		k++
	}
	return k
}

// NumPeaks returns how many photoelectron peaks the spectrum needs so that
// the truncated occupancy tail is negligible.
func NumPeaks(lambda float64, d Defaults) int {
	n := poissonQuantile(d.PeakQuantile, lambda)
	return max(d.MinPeaks, min(d.MaxPeaks, n))
}

// Spectrum evaluates the composite charge spectrum at x: a sum over
// photoelectron multiplicities i < numPeaks of gaussians centered at
// Offset + i·SPECharge, with variance NoiseSpread² + i·SPEChargeSpread²,
// each weighted by the occupancy probability of i.
func (m Model) Spectrum(x float64, p Params, numPeaks int) float64 {
	return m.Func(numPeaks)(x, p.Vector())
}

// Peak is the term of Spectrum for exactly i photoelectrons.
func (m Model) Peak(x float64, p Params, i int) float64 {
	sigma := math.Sqrt(p.NoiseSpread*p.NoiseSpread + float64(i)*p.SPEChargeSpread*p.SPEChargeSpread)
	return p.Scale * m.Prob(i, p.Lambda, p.SecondaryProb) * fit.Gaus(x-p.Offset, float64(i)*p.SPECharge, sigma)
}

// Func returns the spectrum as a fit function over the parameter vector.
// The returned function caches the occupancy weights between calls and
// must not be shared between concurrent fits.
func (m Model) Func(numPeaks int) fit.Func {
	w := make([]float64, numPeaks)
	lastLambda, lastProb := math.NaN(), math.NaN()

	return func(x float64, v []float64) float64 {
		lambda, ps := v[iLambda], v[iSecondaryProb]
		if lambda != lastLambda || ps != lastProb {
			for i := range w {
				w[i] = m.Prob(i, lambda, ps)
			}
			lastLambda, lastProb = lambda, ps
		}

		noise2 := v[iNoiseSpread] * v[iNoiseSpread]
		spread2 := v[iSPEChargeSpread] * v[iSPEChargeSpread]
		dx := x - v[iOffset]

		model := 0.0
		for i, wi := range w {
			sigma := math.Sqrt(noise2 + float64(i)*spread2)
			model += wi * fit.Gaus(dx, float64(i)*v[iSPECharge], sigma)
		}
		return v[iScale] * model
	}
}
