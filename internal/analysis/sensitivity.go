package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/chronodyn/internal/dynamo"
)

// Sensitivity estimates the largest Lyapunov exponent of sys around x0 by
// following a reference and a perturbed trajectory with a fixed-step
// stepper, renormalizing the separation to eps after every step.
//
// A positive value means nearby initial conditions separate exponentially.
func Sensitivity(sys dynamo.System, stepper dynamo.Stepper, x0 dynamo.State, dt, duration, eps float64) (float64, error) {
	if len(x0) == 0 || dt <= 0 || duration <= 0 || eps <= 0 {
		return 0, fmt.Errorf("%w: sensitivity needs a state and positive dt, duration and eps", dynamo.ErrInvalidInput)
	}

	x := x0.Clone()
	xp := x0.Clone()
	xp[0] += eps

	t := 0.0
	sumLog := 0.0
	steps := int(math.Ceil(duration/dt - 1e-9))

	for k := 0; k < steps; k++ {
		x = stepper.Step(sys, x, t, dt)
		xp = stepper.Step(sys, xp, t, dt)
		t += dt

		sep := xp.Sub(x).Norm()
		if !x.IsValid() || !xp.IsValid() || math.IsNaN(sep) {
			return 0, &dynamo.SimulationError{Step: k, Time: t, State: x, Wrapped: dynamo.ErrUnstable}
		}
		if sep == 0 {
			// perturbation collapsed onto the reference
			return math.Inf(-1), nil
		}
		sumLog += math.Log(sep / eps)

		scale := eps / sep
		for i := range xp {
			xp[i] = x[i] + (xp[i]-x[i])*scale
		}
	}
	return sumLog / t, nil
}
