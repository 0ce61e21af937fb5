package physics

import "github.com/san-kum/chronodyn/internal/dynamo"

// VanDerPol implements the Van der Pol oscillator.
// State: [x, y] where y = dx/dt
// Equations:
//
//	dx/dt = y
//	dy/dt = μ(1 - x²)y - x
//
// Large μ makes the system stiff.
type VanDerPol struct {
	mu float64
}

func NewVanDerPol() *VanDerPol {
	return &VanDerPol{mu: 1.0}
}

func NewStiffVanDerPol(mu float64) *VanDerPol {
	return &VanDerPol{mu: mu}
}

func (v *VanDerPol) StateDim() int { return 2 }

func (v *VanDerPol) Derive(state dynamo.State, _ float64) dynamo.State {
	x, y := state[0], state[1]
	return dynamo.State{y, v.mu*(1-x*x)*y - x}
}

func (v *VanDerPol) Jacobian(state dynamo.State, _ float64) [][]float64 {
	x, y := state[0], state[1]
	return [][]float64{
		{0, 1},
		{-2*v.mu*x*y - 1, v.mu * (1 - x*x)},
	}
}

func (v *VanDerPol) DefaultState() dynamo.State {
	return dynamo.State{2.0, 0.0}
}

func (v *VanDerPol) GetParams() map[string]float64 {
	return map[string]float64{"mu": v.mu}
}

func (v *VanDerPol) SetParam(name string, value float64) {
	if name == "mu" {
		v.mu = value
	}
}
