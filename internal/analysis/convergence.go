package analysis

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/interp"

	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/sim"
)

const (
	// ConvergedOrder is the smallest empirical order accepted as converging.
	ConvergedOrder = 1.5

	// errorFloor marks differences indistinguishable from round-off. They
	// count as converged and are left out of order estimates.
	errorFloor = 1e-16
)

// ResolutionKind says how a resolution value maps to a step size h.
type ResolutionKind int

const (
	// GridSize resolutions are point counts N with h = 1/N.
	GridSize ResolutionKind = iota
	// StepSize resolutions are the step size itself.
	StepSize
)

func (k ResolutionKind) String() string {
	if k == GridSize {
		return "grid"
	}
	return "step"
}

func (k ResolutionKind) step(r float64) float64 {
	if k == GridSize {
		return 1 / r
	}
	return r
}

// Solution is one run on a sample grid, one row per variable.
type Solution struct {
	Tau []float64
	Y   [][]float64
}

func FromTrajectory(tr *sim.Trajectory) Solution {
	return Solution{Tau: append([]float64(nil), tr.Times...), Y: tr.Rows()}
}

// SolveFunc runs the problem at one resolution.
type SolveFunc func(resolution float64) (Solution, error)

// ReferenceFunc is an exact solution, one value per variable.
type ReferenceFunc func(tau float64) []float64

type ConvergenceReport struct {
	Mode        string    `json:"mode"`
	Kind        string    `json:"kind"`
	Resolutions []float64 `json:"resolutions"`
	StepSizes   []float64 `json:"step_sizes"`

	// Errors[i] is the max abs error of comparison i. In resolution mode
	// that is the pair (i, i+1); otherwise run i against the reference.
	Errors []float64 `json:"errors"`
	Orders []float64 `json:"orders"`

	ReferenceResolution float64 `json:"reference_resolution,omitempty"`
	IsConverged         bool    `json:"is_converged"`
}

type ConvergenceAnalyzer struct {
	log *slog.Logger
}

func NewConvergenceAnalyzer(opts ...Option) *ConvergenceAnalyzer {
	o := buildOptions(opts)
	return &ConvergenceAnalyzer{log: o.log}
}

// TestResolution compares each adjacent pair of runs. The coarser run is
// interpolated onto the finer run's samples.
func (c *ConvergenceAnalyzer) TestResolution(solve SolveFunc, resolutions []float64, kind ResolutionKind) (ConvergenceReport, error) {
	report, sols, err := c.runAll("resolution", solve, resolutions, kind)
	if err != nil {
		return report, err
	}

	for i := 0; i+1 < len(sols); i++ {
		e, err := maxDifference(sols[i], sols[i+1])
		if err != nil {
			return report, fmt.Errorf("compare %g and %g: %w", resolutions[i], resolutions[i+1], err)
		}
		report.Errors = append(report.Errors, e)
	}
	// With a constant refinement ratio, e_i/e_i+1 = (h_i/h_i+1)^p.
	for i := 0; i+1 < len(report.Errors); i++ {
		if p, ok := order(report.Errors[i], report.Errors[i+1], report.StepSizes[i], report.StepSizes[i+1]); ok {
			report.Orders = append(report.Orders, p)
		}
	}
	c.finish(&report)
	return report, nil
}

// TestAgainstReference measures every run against an exact solution, so
// two resolutions already give an order estimate.
func (c *ConvergenceAnalyzer) TestAgainstReference(solve SolveFunc, resolutions []float64, kind ResolutionKind, ref ReferenceFunc) (ConvergenceReport, error) {
	report, sols, err := c.runAll("reference", solve, resolutions, kind)
	if err != nil {
		return report, err
	}

	for i, s := range sols {
		e, err := referenceError(s, ref)
		if err != nil {
			return report, fmt.Errorf("resolution %g: %w", resolutions[i], err)
		}
		report.Errors = append(report.Errors, e)
	}
	c.ordersFromErrors(&report, report.StepSizes)
	c.finish(&report)
	return report, nil
}

// TestTemporal treats the run with the smallest step as the reference and
// measures every other run against it.
func (c *ConvergenceAnalyzer) TestTemporal(solve SolveFunc, steps []float64) (ConvergenceReport, error) {
	report, sols, err := c.runAll("temporal", solve, steps, StepSize)
	if err != nil {
		return report, err
	}

	ref := 0
	for i, h := range report.StepSizes {
		if h < report.StepSizes[ref] {
			ref = i
		}
	}
	report.ReferenceResolution = steps[ref]

	var hs []float64
	for i, s := range sols {
		if i == ref {
			continue
		}
		e, err := maxDifference(s, sols[ref])
		if err != nil {
			return report, fmt.Errorf("step %g: %w", steps[i], err)
		}
		report.Errors = append(report.Errors, e)
		hs = append(hs, report.StepSizes[i])
	}
	c.ordersFromErrors(&report, hs)
	c.finish(&report)
	return report, nil
}

func (c *ConvergenceAnalyzer) runAll(mode string, solve SolveFunc, resolutions []float64, kind ResolutionKind) (ConvergenceReport, []Solution, error) {
	report := ConvergenceReport{
		Mode:        mode,
		Kind:        kind.String(),
		Resolutions: slices.Clone(resolutions),
	}
	if solve == nil {
		return report, nil, fmt.Errorf("%w: nil solve function", dynamo.ErrInvalidInput)
	}
	if len(resolutions) < 2 {
		return report, nil, fmt.Errorf("%w: need at least two resolutions, got %d", dynamo.ErrInvalidInput, len(resolutions))
	}

	sols := make([]Solution, len(resolutions))
	for i, r := range resolutions {
		h := kind.step(r)
		if !(h > 0) || math.IsInf(h, 0) {
			return report, nil, fmt.Errorf("%w: resolution %g gives step %g", dynamo.ErrInvalidInput, r, h)
		}
		report.StepSizes = append(report.StepSizes, h)

		c.log.Debug("convergence run", slog.String("mode", mode), slog.Float64("resolution", r))
		s, err := solve(r)
		if err != nil {
			return report, nil, fmt.Errorf("solve at %g: %w", r, err)
		}
		if len(s.Tau) == 0 || len(s.Y) == 0 {
			return report, nil, fmt.Errorf("%w: empty solution at %g", dynamo.ErrInvalidInput, r)
		}
		sols[i] = s
	}
	return report, sols, nil
}

func (c *ConvergenceAnalyzer) ordersFromErrors(report *ConvergenceReport, hs []float64) {
	for i := 0; i+1 < len(report.Errors); i++ {
		if p, ok := order(report.Errors[i], report.Errors[i+1], hs[i], hs[i+1]); ok {
			report.Orders = append(report.Orders, p)
		}
	}
}

// finish sets IsConverged: every estimated order above ConvergedOrder, or
// every error at round-off level. No estimates and real errors is a failure.
func (c *ConvergenceAnalyzer) finish(report *ConvergenceReport) {
	allTiny := len(report.Errors) > 0
	for _, e := range report.Errors {
		if !(e < errorFloor) {
			allTiny = false
		}
	}

	converged := len(report.Orders) > 0
	for _, p := range report.Orders {
		if !(p > ConvergedOrder) {
			converged = false
		}
	}
	report.IsConverged = converged || allTiny

	if !report.IsConverged {
		c.log.Warn("solution not converging",
			slog.String("mode", report.Mode),
			slog.Any("errors", report.Errors),
			slog.Any("orders", report.Orders))
	}
}

// order estimates p from error ∝ h^p.
func order(e1, e2, h1, h2 float64) (float64, bool) {
	if !(e1 >= errorFloor) || !(e2 >= errorFloor) || h1 == h2 {
		return 0, false
	}
	return math.Log(e1/e2) / math.Log(h1/h2), true
}

// maxDifference interpolates coarse onto fine's samples and returns the
// largest absolute difference over all variables.
func maxDifference(coarse, fine Solution) (float64, error) {
	if len(coarse.Y) != len(fine.Y) {
		return 0, fmt.Errorf("%w: %d variables vs %d", dynamo.ErrDimensionMismatch, len(coarse.Y), len(fine.Y))
	}
	worst := 0.0
	for v := range coarse.Y {
		f, err := newInterpolant(coarse.Tau, coarse.Y[v])
		if err != nil {
			return 0, err
		}
		for i, t := range fine.Tau {
			d := math.Abs(fine.Y[v][i] - f(t))
			if math.IsNaN(d) {
				return math.Inf(1), nil
			}
			worst = math.Max(worst, d)
		}
	}
	return worst, nil
}

func referenceError(s Solution, ref ReferenceFunc) (float64, error) {
	worst := 0.0
	for i, t := range s.Tau {
		want := ref(t)
		if len(want) != len(s.Y) {
			return 0, fmt.Errorf("%w: reference has %d variables, solution %d", dynamo.ErrDimensionMismatch, len(want), len(s.Y))
		}
		for v := range s.Y {
			d := math.Abs(s.Y[v][i] - want[v])
			if math.IsNaN(d) {
				return math.Inf(1), nil
			}
			worst = math.Max(worst, d)
		}
	}
	return worst, nil
}

// newInterpolant fits a not-a-knot cubic through (xs, ys), falling back to
// linear for short series, and extends it linearly past both ends.
func newInterpolant(xs, ys []float64) (func(float64) float64, error) {
	n := len(xs)
	if n != len(ys) {
		return nil, fmt.Errorf("%w: %d times vs %d values", dynamo.ErrDimensionMismatch, n, len(ys))
	}
	if n == 1 {
		y := ys[0]
		return func(float64) float64 { return y }, nil
	}

	xs, ys = slices.Clone(xs), slices.Clone(ys)
	if xs[0] > xs[n-1] {
		slices.Reverse(xs)
		slices.Reverse(ys)
	}

	var (
		pred     interp.Predictor
		slo, shi float64
	)
	if n >= 4 {
		var c interp.NotAKnotCubic
		if err := c.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("cubic fit: %w", err)
		}
		pred = &c
		slo, shi = c.PredictDerivative(xs[0]), c.PredictDerivative(xs[n-1])
	} else {
		var l interp.PiecewiseLinear
		if err := l.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("linear fit: %w", err)
		}
		pred = &l
		slo = (ys[1] - ys[0]) / (xs[1] - xs[0])
		shi = (ys[n-1] - ys[n-2]) / (xs[n-1] - xs[n-2])
	}

	lo, hi := xs[0], xs[n-1]
	ylo, yhi := ys[0], ys[n-1]
	return func(t float64) float64 {
		switch {
		case t < lo:
			return ylo + slo*(t-lo)
		case t > hi:
			return yhi + shi*(t-hi)
		}
		return pred.Predict(t)
	}, nil
}
