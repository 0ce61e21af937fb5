// Package dynamo provides the numerical primitives shared by every solver
// in chronodyn.
//
// The package defines the fundamental interfaces and types for integrating
// ordinary differential equations (ODEs) of the form dX/dt = f(X, t):
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE right-hand sides
//   - [Stepper]: fixed-step numerical integrator
//   - [AdaptiveStepper]: stepper that also reports a local error estimate
//   - [Event]: scalar function whose sign changes stop or annotate a run
//   - [Tolerance]: mixed relative/absolute accuracy target
//
// # Example
//
//	sys := dynamo.SystemFunc(2, func(x dynamo.State, t float64) dynamo.State {
//	    return dynamo.State{x[1], -x[0]}
//	})
//	traj, err := sim.Integrate(sys, [2]float64{0, 10}, dynamo.State{1, 0}, sim.DefaultConfig())
//
// # Thread Safety
//
// Steppers keep scratch buffers and are NOT safe for concurrent use. Build
// one stepper per goroutine; [State] values returned by steppers are never
// shared with their inputs.
package dynamo
