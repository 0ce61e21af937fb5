package integrators

import "github.com/san-kum/chronodyn/internal/dynamo"

// Euler is the explicit first-order method. It exists mainly as the
// low-order baseline for convergence studies.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	dx := sys.Derive(x, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}

func (e *Euler) Order() int { return 1 }
