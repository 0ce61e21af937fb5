package sim

import (
	"github.com/san-kum/chronodyn/internal/dynamo"
)

// countingSystem wraps the caller's right-hand side so the driver can
// report evaluation counts and catch the first non-finite derivative.
type countingSystem struct {
	inner    dynamo.System
	nfev     int
	unstable bool
	badTime  float64
}

func (c *countingSystem) Derive(x dynamo.State, t float64) dynamo.State {
	c.nfev++
	dx := c.inner.Derive(x, t)
	if !c.unstable && !dx.IsValid() {
		c.unstable = true
		c.badTime = t
	}
	return dx
}

func (c *countingSystem) StateDim() int { return c.inner.StateDim() }

// countingJacobianSystem keeps an analytic Jacobian visible through the wrapper.
type countingJacobianSystem struct {
	*countingSystem
	jac dynamo.Jacobian
}

func (c countingJacobianSystem) Jacobian(x dynamo.State, t float64) [][]float64 {
	return c.jac.Jacobian(x, t)
}

func wrapSystem(sys dynamo.System) (dynamo.System, *countingSystem) {
	c := &countingSystem{inner: sys}
	if j, ok := sys.(dynamo.Jacobian); ok {
		return countingJacobianSystem{countingSystem: c, jac: j}, c
	}
	return c, c
}
