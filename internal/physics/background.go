package physics

import (
	"math"

	"github.com/san-kum/chronodyn/internal/cosmo"
	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/field"
	"github.com/san-kum/chronodyn/internal/sim"
)

const (
	// CollapseThreshold is the scale factor below which a background run
	// is treated as a collapse and stopped.
	CollapseThreshold = 1e-10

	// DefaultInitialTime matches the early-universe start of the
	// observational pipeline.
	DefaultInitialTime = 1e-5
)

// Background is the modified Friedmann system over state [a, a'] in
// conformal time:
//
//	a'' = -4 pi a (Om/a^3 + 2 OL a + 2 Or/a^4) + a C00(tau, 0)
//
// The tensor is recomputed on every call.
type Background struct {
	params cosmo.Params
	tensor *field.TensorField
}

func NewBackground(p cosmo.Params, opts ...field.Option) *Background {
	return &Background{params: p, tensor: field.NewTensorField(p, opts...)}
}

func (b *Background) StateDim() int { return 2 }

func (b *Background) Params() cosmo.Params { return b.params }

func (b *Background) Tensor() *field.TensorField { return b.tensor }

func (b *Background) Derive(x dynamo.State, tau float64) dynamo.State {
	a, ap := x[0], x[1]
	p := b.params

	matter := p.OmegaM / (a * a * a)
	lambda := 2 * p.OmegaLambda * a
	radiation := 2 * p.OmegaR / (a * a * a * a)

	c00 := b.tensor.Compute(tau, [3]float64{})[0][0]
	app := -4*math.Pi*a*(matter+lambda+radiation) + a*c00

	return dynamo.State{ap, app}
}

// HConformal is the conformal Hubble rate a'/a.
func (b *Background) HConformal(a, aPrime float64) float64 {
	return aPrime / a
}

func (b *Background) FriedmannH2(a float64) float64 {
	return b.params.FriedmannH2(a)
}

// InitialState places the system on the Friedmann branch at a0.
func (b *Background) InitialState(a0 float64) dynamo.State {
	h2 := b.FriedmannH2(a0)
	return dynamo.State{a0, a0 * math.Sqrt(math.Max(h2, 0))}
}

// CollapseEvent stops a run when the scale factor falls through
// CollapseThreshold.
func CollapseEvent() dynamo.Event {
	return dynamo.Event{
		Name: "scale_factor_collapse",
		Func: func(_ float64, x dynamo.State) float64 {
			return x[0] - CollapseThreshold
		},
		Terminal:  true,
		Direction: dynamo.Falling,
	}
}

// Evolve integrates from InitialState(a0) at span[0] with the collapse
// event armed. When samples > 1 the result is reported on an even grid of
// that many points.
func (b *Background) Evolve(span [2]float64, a0 float64, cfg sim.Config, samples int, events ...dynamo.Event) (*sim.Trajectory, error) {
	if samples > 1 && len(cfg.SampleTimes) == 0 {
		cfg.SampleTimes = Linspace(span[0], span[1], samples)
	}
	all := append([]dynamo.Event{CollapseEvent()}, events...)
	return sim.Integrate(b, span, b.InitialState(a0), cfg, all...)
}

// Columns splits a background trajectory into tau, a, a' and a'/a.
func (b *Background) Columns(tr *sim.Trajectory) (tau, a, aPrime, hConf []float64) {
	n := tr.Len()
	tau = append([]float64(nil), tr.Times...)
	a = make([]float64, n)
	aPrime = make([]float64, n)
	hConf = make([]float64, n)
	for i, s := range tr.States {
		a[i], aPrime[i] = s[0], s[1]
		hConf[i] = b.HConformal(s[0], s[1])
	}
	return tau, a, aPrime, hConf
}

// Linspace returns n evenly spaced points from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
