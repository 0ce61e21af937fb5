package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/chronodyn/internal/analysis"
	"github.com/san-kum/chronodyn/internal/experiment"
	"github.com/san-kum/chronodyn/internal/field"
	"github.com/san-kum/chronodyn/internal/integrators"
	"github.com/san-kum/chronodyn/internal/physics"
	"github.com/san-kum/chronodyn/internal/report"
	"github.com/san-kum/chronodyn/internal/sim"
)

const conservationTol = 1e-6

var (
	probeTimes  = []float64{0.5, 1, 2}
	probePoints = [][3]float64{{0, 0, 0}, {100, 0, 0}, {0, 100, 0}}
)

type probeResult struct {
	Tau           float64     `json:"tau"`
	X             [3]float64  `json:"x"`
	Tensor        [][]float64 `json:"tensor"`
	Trace         float64     `json:"trace"`
	Symmetric     bool        `json:"symmetric"`
	Finite        bool        `json:"finite"`
	Divergence    [4]float64  `json:"divergence"`
	Conserved     bool        `json:"conserved"`
	MaxDivergence float64     `json:"max_divergence"`
}

func tensorProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "background")
	if err != nil {
		return err
	}
	p := cfg.Cosmology
	for name, v := range cfg.Params {
		if p, err = p.With(name, v); err != nil {
			return err
		}
	}
	tf := field.NewTensorField(p, field.WithLogger(logger))

	out := make([]probeResult, 0, len(probeTimes)*len(probePoints))
	for _, tau := range probeTimes {
		for _, x := range probePoints {
			c := tf.Compute(tau, x)
			ok, worst := tf.ValidateConservation(tau, x, conservationTol)
			out = append(out, probeResult{
				Tau:           tau,
				X:             x,
				Tensor:        c.Rows(),
				Trace:         c.Trace(),
				Symmetric:     c.IsSymmetric(1e-10),
				Finite:        c.IsFinite(),
				Divergence:    tf.Divergence(tau, x),
				Conserved:     ok,
				MaxDivergence: worst,
			})
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"params": p, "points": out})
}

// convergenceStudy reruns the model at each step size. The decay model is
// checked against its exact solution; the others against the finest run.
func convergenceStudy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	method, err := integrators.Parse(cfg.Integrator)
	if err != nil {
		return err
	}
	if method.IsAdaptive() {
		return fmt.Errorf("convergence needs a fixed-step method, got %s (try --integrator rk4)", method)
	}
	model, err := experiment.NewRegistry().GetModel(cfg)
	if err != nil {
		return err
	}

	span := cfg.Span()
	solve := func(h float64) (analysis.Solution, error) {
		sc := cfg.SimConfig()
		sc.Method = method
		sc.Step = h
		sc.Logger = logger
		tr, err := sim.Integrate(model.System, span, model.Initial, sc)
		recorder.ObserveRun(tr, 0)
		if err != nil {
			return analysis.Solution{}, err
		}
		return analysis.FromTrajectory(tr), nil
	}

	ca := analysis.NewConvergenceAnalyzer(analysis.WithLogger(logger))
	var rep analysis.ConvergenceReport
	if d, ok := model.System.(*physics.Decay); ok && span[0] == 0 {
		y0 := model.Initial[0]
		rep, err = ca.TestAgainstReference(solve, steps, analysis.StepSize, func(tau float64) []float64 {
			return []float64{d.Exact(y0, tau)}
		})
	} else {
		rep, err = ca.TestTemporal(solve, steps)
	}
	if err != nil {
		return err
	}

	fmt.Println(report.Convergence(rep))
	if stepper, err := integrators.New(method); err == nil {
		fmt.Printf("nominal order of %s: %d\n", method, stepper.Order())
	}
	return nil
}
