package physics

import (
	"github.com/san-kum/chronodyn/internal/cosmo"
	"github.com/san-kum/chronodyn/internal/sim"
)

// TrajectoryScaleFactor turns a finished background run into a scale
// factor strategy. Outside the solved range it holds the nearest endpoint.
func TrajectoryScaleFactor(tr *sim.Trajectory) cosmo.ScaleFactorFunc {
	span := tr.Span()
	lo, hi := span[0], span[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return func(tau float64) float64 {
		switch {
		case tau < lo:
			tau = lo
		case tau > hi:
			tau = hi
		}
		y, err := tr.At(tau)
		if err != nil {
			return 1
		}
		return y[0]
	}
}
