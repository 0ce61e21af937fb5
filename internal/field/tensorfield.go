package field

import (
	"log/slog"
	"math"

	"github.com/san-kum/chronodyn/internal/cosmo"
)

const divergenceStep = 1e-6

type Option func(*TensorField)

// WithScaleFactor replaces the exponential fallback a(tau).
func WithScaleFactor(a cosmo.ScaleFactorFunc) Option {
	return func(tf *TensorField) {
		if a != nil {
			tf.scale = a
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(tf *TensorField) {
		if l != nil {
			tf.log = l
		}
	}
}

// TensorField builds C(tau, x) from the time field and a scale factor.
type TensorField struct {
	params cosmo.Params
	time   TimeField
	scale  cosmo.ScaleFactorFunc
	log    *slog.Logger
}

func NewTensorField(p cosmo.Params, opts ...Option) *TensorField {
	tf := &TensorField{
		params: p,
		time:   NewTimeField(p),
		scale:  cosmo.FallbackScaleFactor(p),
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

func (tf *TensorField) Params() cosmo.Params { return tf.params }

func (tf *TensorField) TimeField() TimeField { return tf.time }

func (tf *TensorField) ScaleFactor(tau float64) float64 { return tf.scale(tau) }

// Compute writes each off-diagonal pair from a single evaluation, so the
// result is exactly symmetric. An uncoupled field is identically zero, also
// at tau = 0 where T vanishes.
func (tf *TensorField) Compute(tau float64, x [3]float64) Tensor {
	var c Tensor
	s := tf.params.Coupling
	if s == 0 {
		return c
	}
	t := tf.time.Evaluate(tau, x)
	a := tf.scale(tau)
	a2 := a * a

	dt := tf.time.DerivativeTau(tau, x) / t
	c[0][0] = s * dt * dt / a2

	for i := 0; i < 3; i++ {
		c0i := s * tf.time.DerivativeX(tau, x, i) / t / a2
		c[0][i+1] = c0i
		c[i+1][0] = c0i
	}

	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			cij := s * tf.time.SecondDerivativeX(tau, x, i, j) / t
			c[i+1][j+1] = cij
			c[j+1][i+1] = cij
		}
	}
	return c
}

func (tf *TensorField) At(p Point) Tensor { return tf.Compute(p.Tau, p.X) }

func (tf *TensorField) Trace(tau float64, x [3]float64) float64 {
	return tf.Compute(tau, x).Trace()
}

// Divergence returns d_mu C^{mu nu} for each nu, by central differences of
// Compute. It is a diagnostic and inherits the noise of the nested stencils.
func (tf *TensorField) Divergence(tau float64, x [3]float64) [4]float64 {
	h := divergenceStep
	var div [4]float64

	cp := tf.Compute(tau+h, x)
	cm := tf.Compute(tau-h, x)
	for nu := 0; nu < 4; nu++ {
		div[nu] += (cp[0][nu] - cm[0][nu]) / (2 * h)
	}

	for i := 0; i < 3; i++ {
		xp, xm := x, x
		xp[i] += h
		xm[i] -= h
		cp := tf.Compute(tau, xp)
		cm := tf.Compute(tau, xm)
		for nu := 0; nu < 4; nu++ {
			div[nu] += (cp[i+1][nu] - cm[i+1][nu]) / (2 * h)
		}
	}
	return div
}

// EffectiveSource is the tensor's contribution to the stress-energy side,
// -C/(8 pi).
func (tf *TensorField) EffectiveSource(tau float64, x [3]float64) Tensor {
	return tf.Compute(tau, x).Scale(-1 / (8 * math.Pi))
}

// ValidateConservation reports whether every divergence component is below
// tol, along with the largest one. A violation is logged, not returned.
func (tf *TensorField) ValidateConservation(tau float64, x [3]float64, tol float64) (bool, float64) {
	div := tf.Divergence(tau, x)
	worst := 0.0
	for _, d := range div {
		if math.IsNaN(d) {
			worst = math.Inf(1)
			break
		}
		worst = math.Max(worst, math.Abs(d))
	}
	ok := worst < tol
	if !ok {
		tf.log.Warn("tensor conservation violated",
			slog.Float64("tau", tau),
			slog.Float64("max_divergence", worst),
			slog.Float64("tolerance", tol))
	}
	return ok, worst
}
