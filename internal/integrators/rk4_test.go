package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/chronodyn/internal/dynamo"
)

type simpleDynamics struct{}

func (s *simpleDynamics) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (s *simpleDynamics) StateDim() int { return 2 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &simpleDynamics{}
	integ := NewRK4()

	x0 := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	x := x0
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}

	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestRK4_DoesNotMutateInput(t *testing.T) {
	integ := NewRK4()
	x := dynamo.State{1.0, 0.0}
	_ = integ.Step(&simpleDynamics{}, x, 0, 0.1)
	if x[0] != 1.0 || x[1] != 0.0 {
		t.Errorf("Step mutated its input: %v", x)
	}
}

// Halving the step should cut the global error by about 2^order.
func TestFixedStepOrders(t *testing.T) {
	decay := dynamo.SystemFunc(1, func(x dynamo.State, t float64) dynamo.State {
		return dynamo.State{-x[0]}
	})

	solve := func(s dynamo.Stepper, dt float64) float64 {
		x := dynamo.State{1}
		n := int(math.Round(1 / dt))
		for i := 0; i < n; i++ {
			x = s.Step(decay, x, float64(i)*dt, dt)
		}
		return math.Abs(x[0] - math.Exp(-1))
	}

	tests := []struct {
		name    string
		stepper func() dynamo.Stepper
	}{
		{"euler", func() dynamo.Stepper { return NewEuler() }},
		{"rk4", func() dynamo.Stepper { return NewRK4() }},
		{"rosenbrock23", func() dynamo.Stepper { return NewRosenbrock23() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.stepper()
			e1 := solve(s, 0.02)
			e2 := solve(tt.stepper(), 0.01)
			p := math.Log2(e1 / e2)
			want := float64(s.Order())
			if math.Abs(p-want) > 0.2*want {
				t.Errorf("observed order %.3f, want %v", p, want)
			}
		})
	}
}

func TestVerlet_EnergyBounded(t *testing.T) {
	integ := NewVerlet()
	dyn := &harmonicOscillator{}
	x := dynamo.State{1.0, 0.0}

	for i := 0; i < 10000; i++ {
		x = integ.Step(dyn, x, float64(i)*0.01, 0.01)
	}

	if drift := math.Abs(dyn.Energy(x) - 0.5); drift > 1e-3 {
		t.Errorf("verlet energy drift too high: %e", drift)
	}
}
