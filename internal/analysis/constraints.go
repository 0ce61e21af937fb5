package analysis

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/field"
	"github.com/san-kum/chronodyn/internal/sim"
)

const DefaultConstraintTolerance = 1e-10

// MatterDensityFunc supplies rho at a point of a background run.
type MatterDensityFunc func(tau float64, state []float64) float64

// ConstantDensity is the placeholder matter model.
func ConstantDensity(rho float64) MatterDensityFunc {
	return func(float64, []float64) float64 { return rho }
}

// ConstraintMonitor evaluates constraint residuals of a background run
// with state [a, a', ...].
type ConstraintMonitor struct {
	Tolerance float64
	Density   MatterDensityFunc

	log *slog.Logger
}

type ConstraintReport struct {
	Times       []float64 `json:"tau"`
	Hamiltonian []float64 `json:"hamiltonian"`
	Momentum    []float64 `json:"momentum"`
	Energy      []float64 `json:"energy_conservation"`

	MaxHamiltonian float64 `json:"max_hamiltonian"`
	MaxMomentum    float64 `json:"max_momentum"`
	MaxEnergy      float64 `json:"max_energy"`
	MaxViolation   float64 `json:"max_violation"`
	Tolerance      float64 `json:"tolerance"`
	IsSatisfied    bool    `json:"is_satisfied"`
}

func NewConstraintMonitor(opts ...Option) *ConstraintMonitor {
	o := buildOptions(opts)
	return &ConstraintMonitor{
		Tolerance: DefaultConstraintTolerance,
		Density:   ConstantDensity(1.0),
		log:       o.log,
	}
}

// HamiltonianResidual is G00 + C00 - 8 pi rho with G00 = 3 (a'/a)^2 / a^2.
func (m *ConstraintMonitor) HamiltonianResidual(tau float64, state []float64, c field.Tensor) float64 {
	a, ap := state[0], state[1]
	h := ap / a
	g00 := 3 * h * h / (a * a)
	return g00 + c[0][0] - 8*math.Pi*m.density(tau, state)
}

// MomentumResidual is C0i, which vanishes for a homogeneous background.
func (m *ConstraintMonitor) MomentumResidual(_ float64, _ []float64, c field.Tensor) [3]float64 {
	return [3]float64{c[0][1], c[0][2], c[0][3]}
}

// EnergyConservation is |d(a^3)/dtau| between consecutive samples. The
// first entry is zero.
func (m *ConstraintMonitor) EnergyConservation(tau, a []float64) []float64 {
	out := make([]float64, len(tau))
	for i := 1; i < len(tau) && i < len(a); i++ {
		dt := tau[i] - tau[i-1]
		prev, cur := a[i-1], a[i]
		out[i] = math.Abs((cur*cur*cur - prev*prev*prev) / dt)
	}
	return out
}

// Monitor walks the run with one tensor sample per trajectory sample. It
// does not modify its inputs, so repeated calls give identical reports.
func (m *ConstraintMonitor) Monitor(tr *sim.Trajectory, tensors []field.Tensor) (ConstraintReport, error) {
	tol := m.Tolerance
	if tol <= 0 {
		tol = DefaultConstraintTolerance
	}
	report := ConstraintReport{Tolerance: tol}

	n := tr.Len()
	if len(tensors) != n {
		return report, fmt.Errorf("%w: %d tensor samples for %d states", dynamo.ErrDimensionMismatch, len(tensors), n)
	}
	if n > 0 && len(tr.States[0]) < 2 {
		return report, fmt.Errorf("%w: constraint monitor needs state [a, a']", dynamo.ErrDimensionMismatch)
	}

	report.Times = append([]float64(nil), tr.Times...)
	report.Hamiltonian = make([]float64, n)
	report.Momentum = make([]float64, n)
	a := make([]float64, n)

	for i := 0; i < n; i++ {
		tau, state := tr.Times[i], tr.States[i]
		a[i] = state[0]

		h := math.Abs(m.HamiltonianResidual(tau, state, tensors[i]))
		mom := 0.0
		for _, v := range m.MomentumResidual(tau, state, tensors[i]) {
			mom = math.Max(mom, math.Abs(v))
		}
		report.Hamiltonian[i] = h
		report.Momentum[i] = mom
		report.MaxHamiltonian = nanMax(report.MaxHamiltonian, h)
		report.MaxMomentum = nanMax(report.MaxMomentum, mom)
	}

	report.Energy = m.EnergyConservation(report.Times, a)
	for _, e := range report.Energy {
		report.MaxEnergy = nanMax(report.MaxEnergy, e)
	}

	report.MaxViolation = nanMax(report.MaxHamiltonian, nanMax(report.MaxMomentum, report.MaxEnergy))
	report.IsSatisfied = report.MaxViolation < tol
	if !report.IsSatisfied {
		m.log.Warn("constraint violation",
			slog.Float64("max_violation", report.MaxViolation),
			slog.Float64("hamiltonian", report.MaxHamiltonian),
			slog.Float64("momentum", report.MaxMomentum),
			slog.Float64("energy", report.MaxEnergy))
	}
	return report, nil
}

func (m *ConstraintMonitor) density(tau float64, state []float64) float64 {
	if m.Density == nil {
		return 1.0
	}
	return m.Density(tau, state)
}

// SampleTensors evaluates the tensor at the origin for every sample of tr.
func SampleTensors(tf *field.TensorField, tr *sim.Trajectory) []field.Tensor {
	out := make([]field.Tensor, tr.Len())
	for i, tau := range tr.Times {
		out[i] = tf.Compute(tau, [3]float64{})
	}
	return out
}

// nanMax propagates NaN so a non-finite residual is never hidden.
func nanMax(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Max(a, b)
}
