// Package experiment builds a configured model, integrates it and runs the
// standard diagnostics over the result.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/chronodyn/internal/analysis"
	"github.com/san-kum/chronodyn/internal/config"
	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/integrators"
	"github.com/san-kum/chronodyn/internal/physics"
	"github.com/san-kum/chronodyn/internal/sim"
	"github.com/san-kum/chronodyn/internal/storage"
	"github.com/san-kum/chronodyn/internal/telemetry"
)

type Experiment struct {
	cfg      *config.Config
	registry *Registry
	metrics  *telemetry.Recorder
	log      *slog.Logger
}

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) {
		if l != nil {
			e.log = l
		}
	}
}

func WithMetrics(r *telemetry.Recorder) Option {
	return func(e *Experiment) { e.metrics = r }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) {
		if r != nil {
			e.registry = r
		}
	}
}

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result bundles a run with its diagnostics. Constraints is only set for
// the background model.
type Result struct {
	Model       Model
	Trajectory  *sim.Trajectory
	Derived     map[string][]float64
	Stability   analysis.StabilityReport
	Constraints *analysis.ConstraintReport
	// Sensitivity is the divergence rate of nearby initial states, set
	// only when requested for a reference system.
	Sensitivity *float64
	Elapsed     time.Duration
}

// Run integrates the configured model. When integration fails part way the
// accepted prefix is still analysed and returned together with the error.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := e.registry.GetModel(e.cfg)
	if err != nil {
		return nil, err
	}

	simCfg := e.cfg.SimConfig()
	simCfg.Logger = e.log
	span := e.cfg.Span()

	start := time.Now()
	var tr *sim.Trajectory
	var runErr error
	if bg, ok := model.System.(*physics.Background); ok {
		tr, runErr = bg.Evolve(span, e.cfg.InitState.A0, simCfg, e.cfg.Samples)
	} else {
		if e.cfg.Samples > 1 {
			simCfg.SampleTimes = physics.Linspace(span[0], span[1], e.cfg.Samples)
		}
		tr, runErr = sim.Integrate(model.System, span, model.Initial, simCfg)
	}
	elapsed := time.Since(start)
	e.metrics.ObserveRun(tr, elapsed)

	if runErr != nil && tr.Len() == 0 {
		return nil, runErr
	}
	if runErr != nil {
		e.log.Warn("integration stopped early",
			slog.String("model", model.Name),
			slog.Int("samples", tr.Len()),
			slog.String("error", runErr.Error()))
	}

	res := &Result{
		Model:      model,
		Trajectory: tr,
		Derived:    make(map[string][]float64),
		Elapsed:    elapsed,
	}
	stab := analysis.NewStabilityAnalyzer(analysis.WithLogger(e.log))
	if v := e.cfg.Analysis.GrowthThreshold; v > 0 {
		stab.GrowthThreshold = v
	}
	if v := e.cfg.Analysis.FrequencyThreshold; v > 0 {
		stab.FrequencyThreshold = v
	}
	res.Stability = stab.AnalyzeTrajectory(tr)

	switch sys := model.System.(type) {
	case *physics.Background:
		_, _, _, hConf := sys.Columns(tr)
		res.Derived["h_conf"] = hConf

		mon := analysis.NewConstraintMonitor(analysis.WithLogger(e.log))
		if v := e.cfg.Analysis.ConstraintTolerance; v > 0 {
			mon.Tolerance = v
		}
		if v := e.cfg.Analysis.MatterDensity; v > 0 {
			mon.Density = analysis.ConstantDensity(v)
		}
		rep, err := mon.Monitor(tr, analysis.SampleTensors(sys.Tensor(), tr))
		if err != nil {
			return res, errors.Join(runErr, fmt.Errorf("constraints: %w", err))
		}
		res.Constraints = &rep
	case dynamo.Hamiltonian:
		energy := make([]float64, tr.Len())
		for i, s := range tr.States {
			energy[i] = sys.Energy(s)
		}
		res.Derived["energy"] = energy
	}
	if _, bg := model.System.(*physics.Background); !bg && e.cfg.Analysis.Sensitivity {
		e.sensitivity(res, span)
	}

	e.log.Info("run finished",
		slog.String("model", model.Name),
		slog.String("method", string(tr.Method)),
		slog.String("status", tr.Status.String()),
		slog.Int("samples", tr.Len()),
		slog.Int("nfev", tr.Stats.Evaluations),
		slog.Duration("elapsed", elapsed))
	return res, runErr
}

// sensitivity follows the initial state and a perturbed copy with RK4 on a
// grid ten times finer than the requested samples.
func (e *Experiment) sensitivity(res *Result, span [2]float64) {
	steps := 10 * max(e.cfg.Samples, 100)
	dt := (span[1] - span[0]) / float64(steps)
	rate, err := analysis.Sensitivity(res.Model.System, integrators.NewRK4(), res.Model.Initial, dt, span[1]-span[0], 1e-8)
	if err != nil {
		e.log.Warn("sensitivity estimate failed",
			slog.String("model", res.Model.Name),
			slog.String("error", err.Error()))
		return
	}
	res.Sensitivity = &rate
}

// Metrics summarises the run for the stored metadata.
func (r *Result) Metrics() map[string]float64 {
	st := r.Trajectory.Stats
	m := map[string]float64{
		"nfev":     float64(st.Evaluations),
		"njev":     float64(st.JacobianEvaluations),
		"nlu":      float64(st.Decompositions),
		"accepted": float64(st.Accepted),
		"rejected": float64(st.Rejected),
		"min_step": st.MinStep,
		"max_step": st.MaxStep,
		"elapsed":  r.Elapsed.Seconds(),
	}
	if r.Constraints != nil {
		m["max_hamiltonian"] = r.Constraints.MaxHamiltonian
		m["max_momentum"] = r.Constraints.MaxMomentum
	}
	if r.Sensitivity != nil {
		m["sensitivity"] = *r.Sensitivity
	}
	if e := r.Derived["energy"]; len(e) > 1 && e[0] != 0 {
		m["energy_drift"] = (e[len(e)-1] - e[0]) / e[0]
	}
	return m
}

// Run converts the result into a storable run with its reports attached.
func (r *Result) Run(cfg *config.Config) (*storage.Run, error) {
	run, err := storage.NewRun(r.Model.Name, r.Trajectory, r.Model.Columns, r.Derived)
	if err != nil {
		return nil, err
	}
	if bg, ok := r.Model.System.(*physics.Background); ok {
		p := bg.Params()
		run.Meta.Params = &p
	}
	run.Meta.Metrics = r.Metrics()
	run.Meta.Reports = map[string]any{"stability": r.Stability}
	if r.Constraints != nil {
		run.Meta.Reports["constraints"] = r.Constraints
	}
	if cfg != nil && len(cfg.Params) > 0 {
		run.Meta.Reports["overrides"] = cfg.Params
	}
	return run, nil
}
