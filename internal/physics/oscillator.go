package physics

import "github.com/san-kum/chronodyn/internal/dynamo"

const (
	DefaultMass      = 1.0
	DefaultStiffness = 1.0
)

// Oscillator is a damped mass on a spring. State: [x, v].
// With zero damping and unit mass and stiffness the period is 2 pi.
type Oscillator struct {
	Mass      float64
	Stiffness float64
	Damping   float64
}

func NewOscillator() *Oscillator {
	return &Oscillator{Mass: DefaultMass, Stiffness: DefaultStiffness}
}

func (o *Oscillator) StateDim() int { return 2 }

func (o *Oscillator) Derive(x dynamo.State, _ float64) dynamo.State {
	pos, vel := x[0], x[1]
	force := -o.Stiffness*pos - o.Damping*vel
	return dynamo.State{vel, force / o.Mass}
}

func (o *Oscillator) Jacobian(_ dynamo.State, _ float64) [][]float64 {
	return [][]float64{
		{0, 1},
		{-o.Stiffness / o.Mass, -o.Damping / o.Mass},
	}
}

func (o *Oscillator) Energy(x dynamo.State) float64 {
	return 0.5*o.Mass*x[1]*x[1] + 0.5*o.Stiffness*x[0]*x[0]
}

func (o *Oscillator) DefaultState() dynamo.State {
	return dynamo.State{1, 0}
}

func (o *Oscillator) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":      o.Mass,
		"stiffness": o.Stiffness,
		"damping":   o.Damping,
	}
}

func (o *Oscillator) SetParam(name string, value float64) {
	switch name {
	case "mass":
		o.Mass = value
	case "stiffness":
		o.Stiffness = value
	case "damping":
		o.Damping = value
	}
}
