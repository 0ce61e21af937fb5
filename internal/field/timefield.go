package field

import (
	"math"

	"github.com/san-kum/chronodyn/internal/cosmo"
)

const (
	// correctionAmplitude scales the coupling-dependent correction to the
	// linear time growth.
	correctionAmplitude = 0.1

	firstDerivStep  = 1e-8
	secondDerivStep = 1e-6
)

// TimeField is T(tau, x) = T0*tau*(1 + k*S*exp(-tau/T0)*m(|x|)) with the
// bounded spatial modulation m(r) = 1 + 0.1*sin(r/100).
type TimeField struct {
	coupling  float64
	timeScale float64
}

func NewTimeField(p cosmo.Params) TimeField {
	return TimeField{coupling: p.Coupling, timeScale: p.TimeScale}
}

func modulation(x [3]float64) float64 {
	r := math.Sqrt(x[0]*x[0] + x[1]*x[1] + x[2]*x[2])
	return 1 + 0.1*math.Sin(r/100)
}

// Evaluate is positive for tau > 0 whenever |k*S| < 1/1.1.
func (f TimeField) Evaluate(tau float64, x [3]float64) float64 {
	decay := math.Exp(-tau / f.timeScale)
	return f.timeScale * tau * (1 + correctionAmplitude*f.coupling*decay*modulation(x))
}

func (f TimeField) DerivativeTau(tau float64, x [3]float64) float64 {
	h := firstDerivStep
	return (f.Evaluate(tau+h, x) - f.Evaluate(tau-h, x)) / (2 * h)
}

// DerivativeX differentiates along spatial axis 0..2.
func (f TimeField) DerivativeX(tau float64, x [3]float64, axis int) float64 {
	h := firstDerivStep
	xp, xm := x, x
	xp[axis] += h
	xm[axis] -= h
	return (f.Evaluate(tau, xp) - f.Evaluate(tau, xm)) / (2 * h)
}

// SecondDerivativeX uses a five-point stencil on the diagonal and the
// four-corner stencil for mixed axes.
func (f TimeField) SecondDerivativeX(tau float64, x [3]float64, i, j int) float64 {
	h := secondDerivStep
	at := func(di, dj float64) float64 {
		p := x
		p[i] += di
		p[j] += dj
		return f.Evaluate(tau, p)
	}

	if i == j {
		shift := func(d float64) float64 {
			p := x
			p[i] += d
			return f.Evaluate(tau, p)
		}
		return (-shift(2*h) + 16*shift(h) - 30*shift(0) + 16*shift(-h) - shift(-2*h)) / (12 * h * h)
	}

	return (at(h, h) - at(h, -h) - at(-h, h) + at(-h, -h)) / (4 * h * h)
}
