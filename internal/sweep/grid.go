// Package sweep evaluates the background model over a grid of parameter
// vectors, in parallel, through an explicit theory cache.
package sweep

import (
	"fmt"

	"github.com/san-kum/chronodyn/internal/cosmo"
)

// Grid is the cartesian product of the listed parameter ranges.
type Grid struct {
	paramNames []string
	ranges     [][]float64
}

func NewGrid(params []string, ranges [][]float64) (*Grid, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d names for %d ranges", cosmo.ErrInvalidParams, len(params), len(ranges))
	}
	for i, name := range params {
		if _, err := cosmo.Default().With(name, 1); err != nil {
			return nil, err
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("%w: empty range for %s", cosmo.ErrInvalidParams, name)
		}
	}
	return &Grid{paramNames: params, ranges: ranges}, nil
}

// Size is the number of grid points.
func (g *Grid) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

func (g *Grid) Names() []string { return append([]string(nil), g.paramNames...) }

// Points expands the grid around base. The last name varies fastest.
func (g *Grid) Points(base cosmo.Params) ([]cosmo.Params, error) {
	out := make([]cosmo.Params, 0, g.Size())
	if err := g.expand(0, base, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Grid) expand(depth int, current cosmo.Params, out *[]cosmo.Params) error {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return nil
	}
	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next, err := current.With(name, val)
		if err != nil {
			return err
		}
		if err := g.expand(depth+1, next, out); err != nil {
			return err
		}
	}
	return nil
}
