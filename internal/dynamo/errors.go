package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration runs.
var (
	// ErrInvalidInput indicates a degenerate span, a non-finite initial
	// state, a dimension mismatch or an unusable configuration.
	ErrInvalidInput = errors.New("dynamo: invalid input")

	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates a state whose length differs from the system.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrUnstable indicates the right-hand side produced a non-finite value.
	ErrUnstable = errors.New("dynamo: simulation unstable (state diverged)")

	// ErrStepBudget indicates the driver ran out of steps or rejections.
	ErrStepBudget = errors.New("dynamo: step budget exceeded")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrOutOfRange indicates a dense-output query outside the integrated span.
	ErrOutOfRange = errors.New("dynamo: time outside integrated range")

	// ErrNoDenseOutput indicates an interpolation query on a run made
	// without dense output.
	ErrNoDenseOutput = errors.New("dynamo: dense output disabled for this run")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
