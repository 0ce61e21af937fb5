package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/chronodyn/internal/dynamo"
)

type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int { return 2 }

func (h *harmonicOscillator) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (h *harmonicOscillator) Energy(x dynamo.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

func TestRK45_Step(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.0}

	x := x0.Clone()
	dt := 0.01

	for i := 0; i < 1000; i++ {
		x = integrator.Step(dyn, x, float64(i)*dt, dt)
	}

	if !x.IsValid() {
		t.Error("RK45 produced invalid state")
	}
}

func TestRK45_EnergyConservation(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.0}

	initialEnergy := dyn.Energy(x0)
	x := x0.Clone()
	dt := 0.01

	for i := 0; i < 10000; i++ {
		x = integrator.Step(dyn, x, float64(i)*dt, dt)
	}

	finalEnergy := dyn.Energy(x)
	drift := math.Abs(finalEnergy-initialEnergy) / initialEnergy

	if drift > 1e-6 {
		t.Errorf("RK45 energy drift too high: %e", drift)
	}
}

func TestRK45_Attempt(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.0}

	trial := integrator.Attempt(dyn, x0, dyn.Derive(x0, 0), 0, 0.1)

	if !trial.X.IsValid() {
		t.Error("Attempt produced invalid state")
	}
	if math.Abs(trial.X[0]-math.Cos(0.1)) > 1e-8 {
		t.Errorf("Attempt x0 = %.12f, want %.12f", trial.X[0], math.Cos(0.1))
	}

	// first same as last: DX is the derivative at the new point
	want := dyn.Derive(trial.X, 0.1)
	for i := range want {
		if math.Abs(trial.DX[i]-want[i]) > 1e-15 {
			t.Errorf("DX[%d] = %v, want %v", i, trial.DX[i], want[i])
		}
	}

	if trial.Err.Norm() == 0 || trial.Err.Norm() > 1e-6 {
		t.Errorf("unexpected error estimate magnitude: %e", trial.Err.Norm())
	}
}

func TestRK45_Propose(t *testing.T) {
	integrator := NewRK45()

	if got := integrator.Propose(0.1, 0); got != 1.0 {
		t.Errorf("zero error should grow by max scale, got %v", got)
	}
	if got := integrator.Propose(0.1, 1e6); math.Abs(got-0.02) > 1e-12 {
		t.Errorf("huge error should shrink by min scale, got %v", got)
	}
	if got := integrator.Propose(0.1, math.Inf(1)); math.Abs(got-0.02) > 1e-12 {
		t.Errorf("infinite error should shrink by min scale, got %v", got)
	}
	if got := integrator.Propose(0.1, 0.5); got <= 0.1 {
		t.Errorf("accepted error below 1 should not shrink the step, got %v", got)
	}
}

func TestRK45_VsRK4_Accuracy(t *testing.T) {
	rk4 := NewRK4()
	rk45 := NewRK45()
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.0}

	x4 := x0.Clone()
	x45 := x0.Clone()
	dt := 0.1

	for i := 0; i < 100; i++ {
		x4 = rk4.Step(dyn, x4, float64(i)*dt, dt)
		x45 = rk45.Step(dyn, x45, float64(i)*dt, dt)
	}

	t.Logf("RK4 final: [%.6f, %.6f]", x4[0], x4[1])
	t.Logf("RK45 final: [%.6f, %.6f]", x45[0], x45[1])

	e4 := dyn.Energy(x4)
	e45 := dyn.Energy(x45)

	if math.Abs(e45-0.5) > math.Abs(e4-0.5) {
		t.Errorf("RK45 energy error %e exceeds RK4 %e", math.Abs(e45-0.5), math.Abs(e4-0.5))
	}
}
