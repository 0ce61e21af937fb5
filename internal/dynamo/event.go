package dynamo

// Direction restricts which sign changes of an event function count.
type Direction int

const (
	// AnyCrossing triggers on a sign change in either direction.
	AnyCrossing Direction = 0
	// Rising triggers when the function goes from negative to positive.
	Rising Direction = 1
	// Falling triggers when the function goes from positive to negative.
	Falling Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return "any"
	}
}

// Event is a scalar function of time and state whose zero crossings are
// located during integration. Terminal events stop the run at the root.
type Event struct {
	Name      string
	Func      func(t float64, x State) float64
	Terminal  bool
	Direction Direction
}

// Crossed reports whether the transition g0 -> g1 counts for d.
func (d Direction) Crossed(g0, g1 float64) bool {
	switch d {
	case Rising:
		return g0 < 0 && g1 >= 0
	case Falling:
		return g0 > 0 && g1 <= 0
	default:
		return (g0 < 0 && g1 >= 0) || (g0 > 0 && g1 <= 0)
	}
}
