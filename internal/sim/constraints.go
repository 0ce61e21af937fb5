package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/integrators"
)

// ConstraintFunc is a square algebraic system F(tau, y) = 0.
type ConstraintFunc func(tau float64, y []float64) []float64

type ConstraintOptions struct {
	Tol     float64
	MaxIter int
	Logger  *slog.Logger
}

func DefaultConstraintOptions() ConstraintOptions {
	return ConstraintOptions{Tol: 1e-10, MaxIter: 50}
}

// ConstraintSolution reports the outcome of SolveConstraints. A failed
// solve still carries the best point found.
type ConstraintSolution struct {
	Root        []float64
	Residual    float64
	Converged   bool
	Iterations  int
	Evaluations int
	Message     string
}

// SolveConstraints finds y with F(tau, y) = 0 by damped Newton iteration on
// a finite-difference Jacobian. Non-convergence is reported in the result,
// never as an error.
func SolveConstraints(f ConstraintFunc, guess []float64, tau float64, opts ConstraintOptions) ConstraintSolution {
	if opts.Tol <= 0 {
		opts.Tol = 1e-10
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = 50
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	n := len(guess)
	sol := ConstraintSolution{Root: append([]float64(nil), guess...)}
	sys := dynamo.SystemFunc(n, func(x dynamo.State, t float64) dynamo.State {
		sol.Evaluations++
		return f(t, x)
	})

	x := dynamo.State(sol.Root)
	fx := sys.Derive(x, tau)
	if len(fx) != n {
		sol.Message = fmt.Sprintf("constraint system is not square: %d equations, %d unknowns", len(fx), n)
		sol.Residual = math.Inf(1)
		return sol
	}
	sol.Residual = floats.Norm(fx, math.Inf(1))

	for sol.Iterations = 0; sol.Iterations < opts.MaxIter; sol.Iterations++ {
		if !fx.IsValid() {
			sol.Message = "non-finite residual"
			break
		}
		if sol.Residual <= opts.Tol {
			sol.Converged = true
			sol.Message = "converged"
			break
		}

		jac := integrators.NumericalJacobian(sys, x, fx, tau)
		jm := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			jm.SetRow(i, jac[i])
		}
		rhs := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			rhs.SetVec(i, -fx[i])
		}
		var delta mat.VecDense
		if err := delta.SolveVec(jm, rhs); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				sol.Message = "singular jacobian"
				break
			}
		}

		lambda := 1.0
		accepted := false
		for lambda >= 1.0/1024 {
			trial := x.Clone()
			for i := 0; i < n; i++ {
				trial[i] += lambda * delta.AtVec(i)
			}
			ft := sys.Derive(trial, tau)
			if r := floats.Norm(ft, math.Inf(1)); ft.IsValid() && r < sol.Residual {
				x, fx, sol.Residual = trial, ft, r
				accepted = true
				break
			}
			lambda /= 2
		}
		if !accepted {
			sol.Message = "line search failed to reduce the residual"
			break
		}
	}

	if !sol.Converged && sol.Message == "" && sol.Residual <= opts.Tol {
		sol.Converged = true
		sol.Message = "converged"
	}
	if !sol.Converged && sol.Message == "" {
		sol.Message = fmt.Sprintf("no convergence after %d iterations", opts.MaxIter)
	}
	sol.Root = []float64(x)
	if !sol.Converged {
		log.Warn("constraint solve did not converge",
			slog.Float64("tau", tau),
			slog.Float64("residual", sol.Residual),
			slog.String("reason", sol.Message))
	}
	return sol
}
