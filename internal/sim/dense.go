package sim

import (
	"fmt"
	"sort"

	"github.com/san-kum/chronodyn/internal/dynamo"
)

// hermite evaluates the cubic Hermite interpolant through (t0, y0, d0) and
// (t1, y1, d1) at t.
func hermite(t0, t1 float64, y0, d0, y1, d1 dynamo.State, t float64) dynamo.State {
	h := t1 - t0
	out := make(dynamo.State, len(y0))
	if h == 0 {
		copy(out, y1)
		return out
	}
	s := (t - t0) / h
	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	for i := range out {
		out[i] = h00*y0[i] + h10*h*d0[i] + h01*y1[i] + h11*h*d1[i]
	}
	return out
}

// locate returns the index i such that t lies in [knots[i], knots[i+1]]
// in the integration direction. knots are monotone.
func locate(knots []float64, t float64) int {
	n := len(knots)
	if n < 2 {
		return 0
	}
	var i int
	if knots[n-1] >= knots[0] {
		i = sort.Search(n, func(k int) bool { return knots[k] > t }) - 1
	} else {
		i = sort.Search(n, func(k int) bool { return knots[k] < t }) - 1
	}
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	return i
}

// At interpolates the solution at t anywhere inside the accepted range.
func (tr *Trajectory) At(t float64) (dynamo.State, error) {
	if tr.noDense {
		return nil, dynamo.ErrNoDenseOutput
	}
	n := len(tr.knotT)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty trajectory", dynamo.ErrOutOfRange)
	}
	lo, hi := tr.knotT[0], tr.knotT[n-1]
	if lo > hi {
		lo, hi = hi, lo
	}
	if t < lo || t > hi {
		return nil, fmt.Errorf("%w: t=%g not in [%g, %g]", dynamo.ErrOutOfRange, t, lo, hi)
	}
	if n == 1 {
		return tr.knotY[0].Clone(), nil
	}
	i := locate(tr.knotT, t)
	return hermite(tr.knotT[i], tr.knotT[i+1], tr.knotY[i], tr.knotD[i], tr.knotY[i+1], tr.knotD[i+1], t), nil
}

// Sample evaluates the dense output on every time in ts.
func (tr *Trajectory) Sample(ts []float64) ([]dynamo.State, error) {
	out := make([]dynamo.State, len(ts))
	for i, t := range ts {
		y, err := tr.At(t)
		if err != nil {
			return nil, err
		}
		out[i] = y
	}
	return out, nil
}
