// Package analysis provides post-hoc diagnostics for integrated solutions.
//
//   - [StabilityAnalyzer]: exponential growth and high-frequency content per variable
//   - [ConvergenceAnalyzer]: empirical order of accuracy across resolutions
//   - [ConstraintMonitor]: Hamiltonian, momentum and energy residuals along a run
//   - [Sensitivity]: divergence rate of nearby trajectories
//
// Every analyzer returns a report. Detected instability, non-convergence
// or constraint violation is logged and flagged in the report, never
// returned as an error:
//
//	report := analysis.NewStabilityAnalyzer().AnalyzeTrajectory(tr)
//	if !report.IsStable {
//	    // tighten tolerances or switch to an implicit method
//	}
package analysis

import "log/slog"

type options struct {
	log *slog.Logger
}

// Option configures an analyzer.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
