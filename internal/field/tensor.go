package field

import (
	"math"
)

// Point is a spacetime location: conformal time plus comoving position.
type Point struct {
	Tau float64    `json:"tau"`
	X   [3]float64 `json:"x"`
}

// Tensor is indexed 0 for time, 1..3 for space.
type Tensor [4][4]float64

func (c Tensor) Trace() float64 {
	return c[0][0] + c[1][1] + c[2][2] + c[3][3]
}

func (c Tensor) Scale(f float64) Tensor {
	var out Tensor
	for i := range c {
		for j := range c[i] {
			out[i][j] = c[i][j] * f
		}
	}
	return out
}

func (c Tensor) IsFinite() bool {
	for i := range c {
		for j := range c[i] {
			if math.IsNaN(c[i][j]) || math.IsInf(c[i][j], 0) {
				return false
			}
		}
	}
	return true
}

func (c Tensor) IsSymmetric(tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if math.Abs(c[i][j]-c[j][i]) > tol {
				return false
			}
		}
	}
	return true
}

// MaxAbs is the largest absolute component.
func (c Tensor) MaxAbs() float64 {
	m := 0.0
	for i := range c {
		for j := range c[i] {
			m = math.Max(m, math.Abs(c[i][j]))
		}
	}
	return m
}

// Rows flattens the tensor for JSON and CSV output.
func (c Tensor) Rows() [][]float64 {
	out := make([][]float64, 4)
	for i := range c {
		out[i] = append([]float64(nil), c[i][:]...)
	}
	return out
}
