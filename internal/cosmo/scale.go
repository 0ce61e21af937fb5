package cosmo

import "math"

// ScaleFactorFunc supplies a(tau) to the tensor field.
type ScaleFactorFunc func(tau float64) float64

// FallbackScaleFactor is the exponential a(tau) = exp(H0*tau/c) used when
// no background solution is available.
func FallbackScaleFactor(p Params) ScaleFactorFunc {
	rate := p.H0 / SpeedOfLight
	return func(tau float64) float64 {
		return math.Exp(rate * tau)
	}
}

// ConstantScaleFactor pins a(tau) to a fixed value.
func ConstantScaleFactor(a float64) ScaleFactorFunc {
	return func(float64) float64 { return a }
}
