package analysis

import (
	"log/slog"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/chronodyn/internal/sim"
)

const (
	DefaultGrowthThreshold    = 10.0
	DefaultFrequencyThreshold = 1000.0

	minGrowthSamples    = 10
	minFrequencySamples = 20

	logFloor = 1e-16
)

// StabilityAnalyzer scans each variable of a solution for exponential
// blow-up and high-frequency oscillation.
type StabilityAnalyzer struct {
	GrowthThreshold    float64
	FrequencyThreshold float64

	log *slog.Logger
}

// VariableStability is the verdict for one state variable.
type VariableStability struct {
	Index         int     `json:"index"`
	GrowthRate    float64 `json:"growth_rate"`
	Frequency     float64 `json:"dominant_frequency"`
	Growing       bool    `json:"growing"`
	Oscillating   bool    `json:"oscillating"`
	GrowthSkipped bool    `json:"growth_skipped,omitempty"`
	FreqSkipped   bool    `json:"frequency_skipped,omitempty"`
}

type StabilityReport struct {
	Variables []VariableStability `json:"variables"`
	IsStable  bool                `json:"is_stable"`
}

// GrowthRates lists the fitted rate of every variable in order.
func (r StabilityReport) GrowthRates() []float64 {
	out := make([]float64, len(r.Variables))
	for i, v := range r.Variables {
		out[i] = v.GrowthRate
	}
	return out
}

func (r StabilityReport) Frequencies() []float64 {
	out := make([]float64, len(r.Variables))
	for i, v := range r.Variables {
		out[i] = v.Frequency
	}
	return out
}

func NewStabilityAnalyzer(opts ...Option) *StabilityAnalyzer {
	o := buildOptions(opts)
	return &StabilityAnalyzer{
		GrowthThreshold:    DefaultGrowthThreshold,
		FrequencyThreshold: DefaultFrequencyThreshold,
		log:                o.log,
	}
}

// Analyze takes one row per variable, each aligned with tau.
func (s *StabilityAnalyzer) Analyze(tau []float64, rows [][]float64) StabilityReport {
	report := StabilityReport{IsStable: true, Variables: make([]VariableStability, len(rows))}

	for i, y := range rows {
		v := VariableStability{Index: i}

		if len(y) < minGrowthSamples || len(tau) < len(y) {
			v.GrowthSkipped = true
		} else {
			v.GrowthRate = growthRate(tau[:len(y)], y)
		}
		if len(y) < minFrequencySamples || len(tau) < len(y) {
			v.FreqSkipped = true
		} else {
			v.Frequency = dominantFrequency(tau[:len(y)], y)
		}

		// NaN rates compare false, so treat them as unstable explicitly.
		v.Growing = math.IsNaN(v.GrowthRate) || v.GrowthRate > s.GrowthThreshold
		v.Oscillating = math.IsNaN(v.Frequency) || v.Frequency > s.FrequencyThreshold

		if v.Growing {
			s.log.Warn("exponential growth detected",
				slog.Int("variable", i),
				slog.Float64("rate", v.GrowthRate))
		}
		if v.Oscillating {
			s.log.Warn("high-frequency oscillation detected",
				slog.Int("variable", i),
				slog.Float64("frequency", v.Frequency))
		}
		report.IsStable = report.IsStable && !v.Growing && !v.Oscillating
		report.Variables[i] = v
	}
	return report
}

func (s *StabilityAnalyzer) AnalyzeTrajectory(tr *sim.Trajectory) StabilityReport {
	return s.Analyze(tr.Times, tr.Rows())
}

// growthRate is the least-squares slope of log|y| against tau.
func growthRate(tau, y []float64) float64 {
	logs := make([]float64, len(y))
	for i, v := range y {
		logs[i] = math.Log(math.Abs(v) + logFloor)
	}
	_, beta := stat.LinearRegression(tau, logs, nil, false)
	return beta
}

// dominantFrequency returns the strongest non-DC frequency below Nyquist,
// assuming the mean sample spacing.
func dominantFrequency(tau, y []float64) float64 {
	n := len(y)
	dt := (tau[n-1] - tau[0]) / float64(n-1)
	if dt == 0 || math.IsNaN(dt) {
		return math.NaN()
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, y)

	best, bestPower := 1, -1.0
	for k := 1; k < n/2; k++ {
		p := cmplx.Abs(coeffs[k])
		p *= p
		if p > bestPower {
			best, bestPower = k, p
		}
	}
	if bestPower < 0 {
		// every coefficient was NaN
		return math.NaN()
	}
	return math.Abs(fft.Freq(best) / dt)
}
