package physics

import (
	"math"

	"github.com/san-kum/chronodyn/internal/dynamo"
)

// Decay relaxes toward cos(t) at rate Lambda:
//
//	dy/dt = -Lambda (y - cos t)
//
// The exact solution is known, which makes it the reference problem for
// convergence tests. Large Lambda is stiff.
type Decay struct {
	Lambda float64
}

func NewDecay(lambda float64) *Decay {
	return &Decay{Lambda: lambda}
}

func (d *Decay) StateDim() int { return 1 }

func (d *Decay) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{-d.Lambda * (x[0] - math.Cos(t))}
}

func (d *Decay) Jacobian(_ dynamo.State, _ float64) [][]float64 {
	return [][]float64{{-d.Lambda}}
}

func (d *Decay) DefaultState() dynamo.State {
	return dynamo.State{0}
}

// Exact is the solution from y(0) = y0.
func (d *Decay) Exact(y0, t float64) float64 {
	l := d.Lambda
	k := l / (1 + l*l)
	steady := k * (l*math.Cos(t) + math.Sin(t))
	return steady + (y0-k*l)*math.Exp(-l*t)
}

func (d *Decay) GetParams() map[string]float64 {
	return map[string]float64{"lambda": d.Lambda}
}

func (d *Decay) SetParam(name string, value float64) {
	if name == "lambda" {
		d.Lambda = value
	}
}
