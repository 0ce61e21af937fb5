package sim

import (
	"log/slog"

	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/integrators"
)

// Status is the terminal state of an integration run.
type Status int

const (
	StatusSpanEnd Status = iota
	StatusEvent
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSpanEnd:
		return "span_end"
	case StatusEvent:
		return "event"
	default:
		return "failed"
	}
}

type Config struct {
	Method integrators.Method `yaml:"method" json:"method"`
	RTol   float64            `yaml:"rtol" json:"rtol"`
	ATol   float64            `yaml:"atol" json:"atol"`

	// MaxStep caps every step. For fixed-step methods it is also the step
	// size unless Step is set.
	MaxStep   float64 `yaml:"max_step" json:"max_step"`
	Step      float64 `yaml:"step" json:"step"`
	FirstStep float64 `yaml:"first_step" json:"first_step"`
	MinStep   float64 `yaml:"min_step" json:"min_step"`

	MaxSteps   int `yaml:"max_steps" json:"max_steps"`
	MaxRejects int `yaml:"max_rejects" json:"max_rejects"`

	// DenseOutput keeps the interpolant after the run. Without it At and
	// Sample fail with dynamo.ErrNoDenseOutput; events and SampleTimes
	// still use it while integrating.
	DenseOutput bool `yaml:"dense_output" json:"dense_output"`

	// SampleTimes, when set, replaces the reported samples with the dense
	// solution at these times. They must lie inside the span.
	SampleTimes []float64 `yaml:"-" json:"-"`

	Logger *slog.Logger `yaml:"-" json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Method:      integrators.MethodRK45,
		RTol:        1e-10,
		ATol:        1e-12,
		MaxStep:     0.01,
		MinStep:     1e-14,
		MaxSteps:    1_000_000,
		MaxRejects:  60,
		DenseOutput: true,
	}
}

// Stats counts the work done by one run.
type Stats struct {
	Evaluations         int     `json:"nfev"`
	JacobianEvaluations int     `json:"njev"`
	Decompositions      int     `json:"nlu"`
	Accepted            int     `json:"accepted"`
	Rejected            int     `json:"rejected"`
	MinStep             float64 `json:"min_step"`
	MaxStep             float64 `json:"max_step"`
}

// EventHit records one located zero crossing.
type EventHit struct {
	Event     string           `json:"event"`
	Index     int              `json:"index"`
	Time      float64          `json:"time"`
	State     dynamo.State     `json:"state"`
	Direction dynamo.Direction `json:"direction"`
	Terminal  bool             `json:"terminal"`
}

// Trajectory is the immutable result of Integrate.
type Trajectory struct {
	Times  []float64
	States []dynamo.State

	Method  integrators.Method
	Stats   Stats
	Success bool
	Status  Status
	Message string
	Events  []EventHit

	// accepted steps backing the dense output
	knotT []float64
	knotY []dynamo.State
	knotD []dynamo.State
	// set when the interpolant was released after the run
	noDense bool
}

// Len is the number of reported samples.
func (tr *Trajectory) Len() int { return len(tr.Times) }

// Final returns the last reported time and state.
func (tr *Trajectory) Final() (float64, dynamo.State) {
	if len(tr.Times) == 0 {
		return 0, nil
	}
	last := len(tr.Times) - 1
	return tr.Times[last], tr.States[last].Clone()
}

// Component extracts one state variable across all samples.
func (tr *Trajectory) Component(i int) []float64 {
	out := make([]float64, len(tr.States))
	for k, s := range tr.States {
		out[k] = s[i]
	}
	return out
}

// Rows returns the samples as one row per variable.
func (tr *Trajectory) Rows() [][]float64 {
	if len(tr.States) == 0 {
		return nil
	}
	rows := make([][]float64, len(tr.States[0]))
	for i := range rows {
		rows[i] = tr.Component(i)
	}
	return rows
}

// Span is the time range covered by the dense output.
func (tr *Trajectory) Span() [2]float64 {
	if len(tr.knotT) == 0 {
		return [2]float64{}
	}
	return [2]float64{tr.knotT[0], tr.knotT[len(tr.knotT)-1]}
}

func (tr *Trajectory) push(t float64, x, dx dynamo.State) {
	tr.knotT = append(tr.knotT, t)
	tr.knotY = append(tr.knotY, x.Clone())
	tr.knotD = append(tr.knotD, dx.Clone())
}

// releaseDense drops the stored states and slopes. The knot times stay so
// Span still reports the solved range.
func (tr *Trajectory) releaseDense() {
	tr.knotY = nil
	tr.knotD = nil
	tr.noDense = true
}

func (tr *Trajectory) truncate(t float64, x, dx dynamo.State) {
	last := len(tr.knotT) - 1
	tr.knotT[last] = t
	tr.knotY[last] = x.Clone()
	tr.knotD[last] = dx.Clone()
}

// NewTrajectory builds a trajectory from externally produced samples, as
// loaded from storage. Dense output uses finite-difference slopes.
func NewTrajectory(times []float64, states []dynamo.State) *Trajectory {
	tr := &Trajectory{Success: true, Status: StatusSpanEnd}
	n := len(times)
	for i := 0; i < n; i++ {
		var d dynamo.State
		switch {
		case n < 2:
			d = make(dynamo.State, len(states[i]))
		case i == 0:
			d = states[1].Sub(states[0]).Scale(1 / (times[1] - times[0]))
		case i == n-1:
			d = states[i].Sub(states[i-1]).Scale(1 / (times[i] - times[i-1]))
		default:
			d = states[i+1].Sub(states[i-1]).Scale(1 / (times[i+1] - times[i-1]))
		}
		tr.push(times[i], states[i], d)
	}
	tr.Times = append([]float64(nil), times...)
	tr.States = make([]dynamo.State, n)
	for i := range states {
		tr.States[i] = states[i].Clone()
	}
	return tr
}
