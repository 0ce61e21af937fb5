package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// AddScaled returns s + factor*other.
func (s State) AddScaled(factor float64, other State) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] + factor*other[i]
	}
	return result
}

// System is an ODE right-hand side dX/dt = f(X, t).
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

// Hamiltonian systems expose a conserved energy for drift checks.
type Hamiltonian interface {
	Energy(x State) float64
}

// Configurable models expose named scalar parameters for CLI overrides.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64)
}

// Jacobian is implemented by systems that can supply df/dx analytically.
// Implicit steppers fall back to finite differences otherwise.
type Jacobian interface {
	Jacobian(x State, t float64) [][]float64
}

type funcSystem struct {
	dim int
	f   func(x State, t float64) State
}

func (s funcSystem) Derive(x State, t float64) State { return s.f(x, t) }
func (s funcSystem) StateDim() int                   { return s.dim }

// SystemFunc adapts a plain function into a System of the given dimension.
func SystemFunc(dim int, f func(x State, t float64) State) System {
	return funcSystem{dim: dim, f: f}
}

// Stepper advances a state by one step of size dt.
type Stepper interface {
	Step(sys System, x State, t, dt float64) State
	// Order is the global convergence order of the method.
	Order() int
}

// Trial is the outcome of one attempted adaptive step.
type Trial struct {
	X   State // candidate state at t+dt
	DX  State // derivative at the candidate state
	Err State // local error estimate per component
}

// AdaptiveStepper is a Stepper with an embedded error estimate.
type AdaptiveStepper interface {
	Stepper
	// Attempt takes one trial step from (x, t). dx is f(x, t).
	Attempt(sys System, x, dx State, t, dt float64) Trial
	// Propose returns the next step size given the scaled error norm of
	// the last attempt.
	Propose(dt, errNorm float64) float64
}

// JacobianCounter is implemented by steppers that evaluate Jacobians and
// factorize matrices, so the driver can report their cost.
type JacobianCounter interface {
	JacobianEvaluations() int
	Decompositions() int
}
