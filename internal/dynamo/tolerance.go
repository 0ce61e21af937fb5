package dynamo

import "math"

// Tolerance is the mixed accuracy target used to scale local errors.
type Tolerance struct {
	Rel float64
	Abs float64
}

// ErrorNorm returns the RMS of err scaled by Abs + Rel*max(|x|, |xNew|).
// Steps with a norm at or below 1 are accepted.
func (tol Tolerance) ErrorNorm(err, x, xNew State) float64 {
	if len(err) == 0 {
		return 0
	}
	sum := 0.0
	for i := range err {
		sc := tol.Abs + tol.Rel*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		r := err[i] / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(err)))
}

// InitialStep picks a first step size from the scale of the problem
// (Hairer, Norsett and Wanner, Solving ODEs I, II.4).
func (tol Tolerance) InitialStep(sys System, x, dx State, t, direction float64, order int) float64 {
	n := len(x)
	var d0, d1 float64
	for i := 0; i < n; i++ {
		sc := tol.Abs + tol.Rel*math.Abs(x[i])
		d0 += (x[i] / sc) * (x[i] / sc)
		d1 += (dx[i] / sc) * (dx[i] / sc)
	}
	d0 = math.Sqrt(d0 / float64(n))
	d1 = math.Sqrt(d1 / float64(n))

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}

	x1 := x.AddScaled(direction*h0, dx)
	dx1 := sys.Derive(x1, t+direction*h0)

	d2 := 0.0
	for i := 0; i < n; i++ {
		sc := tol.Abs + tol.Rel*math.Abs(x[i])
		r := (dx1[i] - dx[i]) / sc
		d2 += r * r
	}
	d2 = math.Sqrt(d2/float64(n)) / h0

	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(d1, d2), 1.0/float64(order+1))
	}
	return math.Min(100*h0, h1)
}
