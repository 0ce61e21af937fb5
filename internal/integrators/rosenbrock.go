package integrators

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/chronodyn/internal/dynamo"
)

// Shampine's ode23s constants.
var (
	rosD   = 1.0 / (2.0 + math.Sqrt2)
	rosE32 = 6.0 + math.Sqrt2
)

// Rosenbrock23 is a linearly implicit second-order method with an embedded
// third-order error estimate, suited to stiff right-hand sides. Each step
// factorizes W = I - h*d*J once and reuses it for all three stages.
type Rosenbrock23 struct {
	safety   float64
	minScale float64
	maxScale float64

	njev int
	nlu  int
}

func NewRosenbrock23() *Rosenbrock23 {
	return &Rosenbrock23{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 5.0,
	}
}

func (r *Rosenbrock23) Order() int { return 2 }

func (r *Rosenbrock23) JacobianEvaluations() int { return r.njev }
func (r *Rosenbrock23) Decompositions() int      { return r.nlu }

func (r *Rosenbrock23) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	return r.Attempt(sys, x, sys.Derive(x, t), t, dt).X
}

func (r *Rosenbrock23) Attempt(sys dynamo.System, x, f0 dynamo.State, t, dt float64) dynamo.Trial {
	n := len(x)

	jac := r.jacobian(sys, x, f0, t)
	dfdt := timeDerivative(sys, x, f0, t)

	w := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			w.Set(i, j, -dt*rosD*jac[i][j])
		}
		w.Set(i, i, 1+w.At(i, i))
	}

	var lu mat.LU
	lu.Factorize(w)
	r.nlu++

	hd := dt * rosD
	rhs := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		rhs[i] = f0[i] + hd*dfdt[i]
	}
	k1, ok := solveLU(&lu, rhs)
	if !ok {
		return failedTrial(x, f0)
	}

	f1 := sys.Derive(x.AddScaled(0.5*dt, k1), t+0.5*dt)
	for i := 0; i < n; i++ {
		rhs[i] = f1[i] - k1[i]
	}
	k2, ok := solveLU(&lu, rhs)
	if !ok {
		return failedTrial(x, f0)
	}
	for i := 0; i < n; i++ {
		k2[i] += k1[i]
	}

	xNew := x.AddScaled(dt, k2)
	f2 := sys.Derive(xNew, t+dt)

	for i := 0; i < n; i++ {
		rhs[i] = f2[i] - rosE32*(k2[i]-f1[i]) - 2*(k1[i]-f0[i]) + hd*dfdt[i]
	}
	k3, ok := solveLU(&lu, rhs)
	if !ok {
		return failedTrial(x, f0)
	}

	errEst := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		errEst[i] = dt / 6.0 * (k1[i] - 2*k2[i] + k3[i])
	}

	return dynamo.Trial{X: xNew, DX: f2, Err: errEst}
}

func (r *Rosenbrock23) Propose(dt, errNorm float64) float64 {
	switch {
	case math.IsNaN(errNorm) || math.IsInf(errNorm, 0):
		return dt * r.minScale
	case errNorm > 0:
		scale := r.safety * math.Pow(errNorm, -1.0/3.0)
		return dt * math.Min(r.maxScale, math.Max(r.minScale, scale))
	default:
		return dt * r.maxScale
	}
}

func (r *Rosenbrock23) jacobian(sys dynamo.System, x, fx dynamo.State, t float64) [][]float64 {
	r.njev++
	if j, ok := sys.(dynamo.Jacobian); ok {
		return j.Jacobian(x, t)
	}
	return NumericalJacobian(sys, x, fx, t)
}

// NumericalJacobian approximates df/dx column by column with forward
// differences. fx must be f(x, t).
func NumericalJacobian(sys dynamo.System, x, fx dynamo.State, t float64) [][]float64 {
	n := len(x)
	jac := make([][]float64, n)
	for i := range jac {
		jac[i] = make([]float64, n)
	}

	xp := x.Clone()
	sqrtEps := math.Sqrt(2.220446049250313e-16)
	for j := 0; j < n; j++ {
		h := sqrtEps * math.Max(math.Abs(x[j]), 1)
		xp[j] = x[j] + h
		h = xp[j] - x[j]
		fp := sys.Derive(xp, t)
		for i := 0; i < n; i++ {
			jac[i][j] = (fp[i] - fx[i]) / h
		}
		xp[j] = x[j]
	}
	return jac
}

func timeDerivative(sys dynamo.System, x, fx dynamo.State, t float64) dynamo.State {
	h := math.Sqrt(2.220446049250313e-16) * math.Max(math.Abs(t), 1)
	ft := sys.Derive(x, t+h)
	d := make(dynamo.State, len(x))
	for i := range d {
		d[i] = (ft[i] - fx[i]) / h
	}
	return d
}

func solveLU(lu *mat.LU, rhs dynamo.State) (dynamo.State, bool) {
	n := len(rhs)
	var dst mat.VecDense
	if err := lu.SolveVecTo(&dst, false, mat.NewVecDense(n, append([]float64(nil), rhs...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, false
		}
	}
	out := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		out[i] = dst.AtVec(i)
	}
	return out, true
}

// failedTrial reports an infinite error so the driver shrinks the step.
func failedTrial(x, dx dynamo.State) dynamo.Trial {
	errEst := make(dynamo.State, len(x))
	for i := range errEst {
		errEst[i] = math.Inf(1)
	}
	return dynamo.Trial{X: x.Clone(), DX: dx.Clone(), Err: errEst}
}
