package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/integrators"
)

type oscillator struct{}

func (o *oscillator) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (o *oscillator) StateDim() int { return 2 }

type decay struct{}

func (d *decay) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{-x[0]}
}

func (d *decay) StateDim() int { return 1 }

func collapse() dynamo.System {
	return dynamo.SystemFunc(2, func(x dynamo.State, t float64) dynamo.State {
		return dynamo.State{-1, 0}
	})
}

func scaleFactorEvent() dynamo.Event {
	return dynamo.Event{
		Name:      "scale_factor_zero",
		Func:      func(t float64, x dynamo.State) float64 { return x[0] - 1e-10 },
		Terminal:  true,
		Direction: dynamo.Falling,
	}
}

func TestIntegrate_OscillatorPeriodicity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RTol = 1e-10

	y0 := dynamo.State{1, 0}
	traj, err := Integrate(&oscillator{}, [2]float64{0, 2 * math.Pi}, y0, cfg)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}

	if !traj.Success || traj.Status != StatusSpanEnd {
		t.Errorf("expected successful span-end run, got success=%v status=%s", traj.Success, traj.Status)
	}

	tf, yf := traj.Final()
	if tf != 2*math.Pi {
		t.Errorf("final time = %v, want exactly 2*pi", tf)
	}
	if math.Abs(yf[0]-1) > 1e-6 || math.Abs(yf[1]) > 1e-6 {
		t.Errorf("state after one period = %v, want [1 0]", yf)
	}
	if y0[0] != 1 || y0[1] != 0 {
		t.Error("integrator mutated the caller's initial state")
	}

	for i := 1; i < len(traj.Times); i++ {
		if dt := traj.Times[i] - traj.Times[i-1]; dt > cfg.MaxStep+1e-12 {
			t.Fatalf("step %d of %v exceeds max step", i, dt)
		}
	}

	if traj.Stats.Evaluations == 0 || traj.Stats.Accepted == 0 {
		t.Errorf("stats not recorded: %+v", traj.Stats)
	}
}

func TestIntegrate_TerminalEvent(t *testing.T) {
	cfg := DefaultConfig()
	traj, err := Integrate(collapse(), [2]float64{0, 2}, dynamo.State{1, -1}, cfg, scaleFactorEvent())
	if err != nil {
		t.Fatalf("event termination must not be an error: %v", err)
	}

	if traj.Status != StatusEvent || !traj.Success {
		t.Fatalf("expected event status, got %s (%s)", traj.Status, traj.Message)
	}
	if len(traj.Events) != 1 {
		t.Fatalf("expected one event hit, got %d", len(traj.Events))
	}

	tf, yf := traj.Final()
	want := 1 - 1e-10
	if math.Abs(tf-want) > 1e-9 {
		t.Errorf("terminated at %v, want %v", tf, want)
	}
	if math.Abs(traj.Events[0].Time-tf) > 1e-15 {
		t.Errorf("last sample %v does not match event time %v", tf, traj.Events[0].Time)
	}
	if math.Abs(yf[0]-1e-10) > 1e-9 {
		t.Errorf("scale factor at event = %v", yf[0])
	}
	if traj.Events[0].Direction != dynamo.Falling {
		t.Errorf("direction = %s", traj.Events[0].Direction)
	}
}

func TestIntegrate_EventDirectionFilter(t *testing.T) {
	rising := scaleFactorEvent()
	rising.Direction = dynamo.Rising

	traj, err := Integrate(collapse(), [2]float64{0, 2}, dynamo.State{1, -1}, DefaultConfig(), rising)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	if traj.Status != StatusSpanEnd || len(traj.Events) != 0 {
		t.Errorf("rising event should not fire on a falling crossing, got %d hits", len(traj.Events))
	}
}

func TestIntegrate_NonTerminalEvents(t *testing.T) {
	zero := dynamo.Event{
		Name: "x_zero",
		Func: func(t float64, x dynamo.State) float64 { return x[0] },
	}
	traj, err := Integrate(&oscillator{}, [2]float64{0, 2 * math.Pi}, dynamo.State{1, 0}, DefaultConfig(), zero)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}

	if len(traj.Events) != 2 {
		t.Fatalf("expected 2 zero crossings, got %d", len(traj.Events))
	}
	want := []float64{math.Pi / 2, 3 * math.Pi / 2}
	for i, hit := range traj.Events {
		if math.Abs(hit.Time-want[i]) > 1e-8 {
			t.Errorf("hit %d at %v, want %v", i, hit.Time, want[i])
		}
	}
	if traj.Events[0].Direction != dynamo.Falling || traj.Events[1].Direction != dynamo.Rising {
		t.Errorf("unexpected directions %s, %s", traj.Events[0].Direction, traj.Events[1].Direction)
	}
	if tf, _ := traj.Final(); tf != 2*math.Pi {
		t.Errorf("non-terminal events must not stop the run, ended at %v", tf)
	}
}

func TestIntegrate_DenseOutput(t *testing.T) {
	traj, err := Integrate(&oscillator{}, [2]float64{0, 3}, dynamo.State{1, 0}, DefaultConfig())
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}

	for _, tq := range []float64{0, 0.12345, 1.2345, 2.999, 3} {
		y, err := traj.At(tq)
		if err != nil {
			t.Fatalf("At(%v): %v", tq, err)
		}
		if math.Abs(y[0]-math.Cos(tq)) > 1e-8 {
			t.Errorf("At(%v) = %v, want %v", tq, y[0], math.Cos(tq))
		}
	}

	if _, err := traj.At(3.5); !errors.Is(err, dynamo.ErrOutOfRange) {
		t.Errorf("At outside span should fail with ErrOutOfRange, got %v", err)
	}
}

func TestIntegrate_SampleTimes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleTimes = []float64{0, 0.25, 0.5, 1}

	traj, err := Integrate(&decay{}, [2]float64{0, 1}, dynamo.State{1}, cfg)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	if len(traj.Times) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(traj.Times))
	}
	for i, ts := range cfg.SampleTimes {
		if traj.Times[i] != ts {
			t.Errorf("sample %d at %v, want %v", i, traj.Times[i], ts)
		}
		if math.Abs(traj.States[i][0]-math.Exp(-ts)) > 1e-9 {
			t.Errorf("y(%v) = %v", ts, traj.States[i][0])
		}
	}
}

func TestIntegrate_SampleTimesEndOnEvent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleTimes = []float64{0, 0.5, 1.5, 2}

	traj, err := Integrate(collapse(), [2]float64{0, 2}, dynamo.State{1, -1}, cfg, scaleFactorEvent())
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	if traj.Status != StatusEvent {
		t.Fatalf("status = %s, want event", traj.Status)
	}
	want := []float64{0, 0.5, traj.Events[0].Time}
	if len(traj.Times) != len(want) {
		t.Fatalf("times = %v, want %v", traj.Times, want)
	}
	for i := range want {
		if traj.Times[i] != want[i] {
			t.Errorf("sample %d at %v, want %v", i, traj.Times[i], want[i])
		}
	}
	_, y := traj.Final()
	if math.Abs(y[0]-1e-10) > 1e-12 {
		t.Errorf("final a = %v, want 1e-10", y[0])
	}
}

func TestIntegrate_WithoutDenseOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DenseOutput = false
	cfg.SampleTimes = []float64{0, 0.5, 1}

	traj, err := Integrate(&decay{}, [2]float64{0, 1}, dynamo.State{1}, cfg)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	// samples are still taken from the interpolant during the run
	if len(traj.Times) != 3 || math.Abs(traj.States[1][0]-math.Exp(-0.5)) > 1e-9 {
		t.Errorf("samples = %v %v", traj.Times, traj.States)
	}
	if _, err := traj.At(0.25); !errors.Is(err, dynamo.ErrNoDenseOutput) {
		t.Errorf("At without dense output should fail with ErrNoDenseOutput, got %v", err)
	}
	if _, err := traj.Sample([]float64{0.25}); !errors.Is(err, dynamo.ErrNoDenseOutput) {
		t.Errorf("Sample without dense output should fail with ErrNoDenseOutput, got %v", err)
	}
	if span := traj.Span(); span != [2]float64{0, 1} {
		t.Errorf("span = %v, want [0 1]", span)
	}
}

func TestIntegrate_Backward(t *testing.T) {
	traj, err := Integrate(&decay{}, [2]float64{1, 0}, dynamo.State{math.Exp(-1)}, DefaultConfig())
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	tf, yf := traj.Final()
	if tf != 0 || math.Abs(yf[0]-1) > 1e-9 {
		t.Errorf("backward run ended at t=%v y=%v", tf, yf)
	}
}

func TestIntegrate_FixedStepMethods(t *testing.T) {
	tests := []struct {
		method integrators.Method
		tol    float64
	}{
		{integrators.MethodRK4, 1e-6},
		{integrators.MethodEuler, 0.02},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Method = tt.method
			cfg.Step = 0.1

			traj, err := Integrate(&decay{}, [2]float64{0, 1}, dynamo.State{1}, cfg)
			if err != nil {
				t.Fatalf("integrate failed: %v", err)
			}
			if len(traj.Times) != 11 {
				t.Errorf("expected 11 samples, got %d", len(traj.Times))
			}
			tf, yf := traj.Final()
			if tf != 1 {
				t.Errorf("final time %v", tf)
			}
			if math.Abs(yf[0]-math.Exp(-1)) > tt.tol {
				t.Errorf("y(1) = %v, want %v", yf[0], math.Exp(-1))
			}
		})
	}
}

func TestIntegrate_StiffRosenbrock(t *testing.T) {
	stiff := dynamo.SystemFunc(1, func(x dynamo.State, t float64) dynamo.State {
		return dynamo.State{-1000 * (x[0] - math.Cos(t))}
	})

	cfg := DefaultConfig()
	cfg.Method = integrators.MethodRosenbrock23
	cfg.RTol = 1e-6
	cfg.ATol = 1e-9
	cfg.MaxStep = 0

	traj, err := Integrate(stiff, [2]float64{0, 1}, dynamo.State{0}, cfg)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}

	_, yf := traj.Final()
	want := (1e6*math.Cos(1) + 1e3*math.Sin(1)) / (1e6 + 1)
	if math.Abs(yf[0]-want) > 1e-4 {
		t.Errorf("y(1) = %v, want %v", yf[0], want)
	}
	if traj.Stats.JacobianEvaluations == 0 || traj.Stats.Decompositions == 0 {
		t.Errorf("implicit stats missing: %+v", traj.Stats)
	}
}

func TestIntegrate_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		sys  dynamo.System
		span [2]float64
		y0   dynamo.State
		cfg  func(*Config)
	}{
		{"degenerate span", &decay{}, [2]float64{1, 1}, dynamo.State{1}, nil},
		{"nan span", &decay{}, [2]float64{0, math.NaN()}, dynamo.State{1}, nil},
		{"nan state", &decay{}, [2]float64{0, 1}, dynamo.State{math.NaN()}, nil},
		{"dimension mismatch", &decay{}, [2]float64{0, 1}, dynamo.State{1, 2}, nil},
		{"empty state", &decay{}, [2]float64{0, 1}, dynamo.State{}, nil},
		{"zero tolerances", &decay{}, [2]float64{0, 1}, dynamo.State{1}, func(c *Config) { c.RTol, c.ATol = 0, 0 }},
		{"unknown method", &decay{}, [2]float64{0, 1}, dynamo.State{1}, func(c *Config) { c.Method = "leapfrog" }},
		{"sample outside span", &decay{}, [2]float64{0, 1}, dynamo.State{1}, func(c *Config) { c.SampleTimes = []float64{2} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			traj, err := Integrate(tt.sys, tt.span, tt.y0, cfg)
			if !errors.Is(err, dynamo.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if traj == nil || traj.Success {
				t.Error("failed run must return a trajectory with Success=false")
			}
		})
	}
}

func TestIntegrate_Unstable(t *testing.T) {
	sys := dynamo.SystemFunc(1, func(x dynamo.State, t float64) dynamo.State {
		if t > 0.5 {
			return dynamo.State{math.NaN()}
		}
		return dynamo.State{1}
	})

	traj, err := Integrate(sys, [2]float64{0, 1}, dynamo.State{0}, DefaultConfig())
	if !errors.Is(err, dynamo.ErrUnstable) {
		t.Fatalf("expected ErrUnstable, got %v", err)
	}
	var se *dynamo.SimulationError
	if !errors.As(err, &se) {
		t.Fatalf("expected SimulationError, got %T", err)
	}
	if traj.Success || traj.Status != StatusFailed {
		t.Error("unstable run must be marked failed")
	}
	if len(traj.Times) < 2 {
		t.Errorf("expected the accepted prefix to be kept, got %d samples", len(traj.Times))
	}
	if tf, _ := traj.Final(); tf > 0.5 {
		t.Errorf("prefix extends past the instability: %v", tf)
	}
}

func TestIntegrate_StepBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSteps = 5

	traj, err := Integrate(&decay{}, [2]float64{0, 1}, dynamo.State{1}, cfg)
	if !errors.Is(err, dynamo.ErrStepBudget) {
		t.Fatalf("expected ErrStepBudget, got %v", err)
	}
	if traj.Success || len(traj.Times) != 6 {
		t.Errorf("expected failed run with 6 samples, got success=%v n=%d", traj.Success, len(traj.Times))
	}

	cfg = DefaultConfig()
	cfg.Method = integrators.MethodRK4
	cfg.Step = 0.01
	cfg.MaxSteps = 10
	if _, err := Integrate(&decay{}, [2]float64{0, 1}, dynamo.State{1}, cfg); !errors.Is(err, dynamo.ErrStepBudget) {
		t.Errorf("fixed-step budget: expected ErrStepBudget, got %v", err)
	}
}

func TestIntegrate_Deterministic(t *testing.T) {
	a, errA := Integrate(&oscillator{}, [2]float64{0, 1}, dynamo.State{1, 0}, DefaultConfig())
	b, errB := Integrate(&oscillator{}, [2]float64{0, 1}, dynamo.State{1, 0}, DefaultConfig())
	if errA != nil || errB != nil {
		t.Fatalf("integrate failed: %v %v", errA, errB)
	}
	if len(a.Times) != len(b.Times) {
		t.Fatalf("sample counts differ: %d vs %d", len(a.Times), len(b.Times))
	}
	for i := range a.Times {
		if a.Times[i] != b.Times[i] || a.States[i][0] != b.States[i][0] {
			t.Fatalf("runs diverge at sample %d", i)
		}
	}
}

func TestNewTrajectory(t *testing.T) {
	times := []float64{0, 1, 2}
	states := []dynamo.State{{0}, {1}, {2}}
	tr := NewTrajectory(times, states)

	y, err := tr.At(1.5)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if math.Abs(y[0]-1.5) > 1e-12 {
		t.Errorf("At(1.5) = %v, want 1.5", y[0])
	}
	if rows := tr.Rows(); len(rows) != 1 || len(rows[0]) != 3 {
		t.Errorf("Rows() shape wrong: %v", rows)
	}
}
