// Package physics provides the dynamical systems driven by the integrator.
//
// [Background] evolves the cosmological scale factor under the
// chronodynamic source term. [Oscillator], [VanDerPol] and [Decay] are
// reference systems with known behaviour, used to check integrators and
// the convergence analysis.
//
// Every model implements [dynamo.System]. Models with a conserved energy
// implement [dynamo.Hamiltonian], and models with a closed-form Jacobian
// implement [dynamo.Jacobian] so implicit steppers can skip finite
// differences:
//
//	osc := physics.NewOscillator()
//	if h, ok := any(osc).(dynamo.Hamiltonian); ok {
//	    energy := h.Energy(state)
//	}
package physics
