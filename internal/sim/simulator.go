package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/integrators"
)

// Integrate solves sys from span[0] to span[1] starting at y0.
//
// The returned trajectory is never nil. On failure it holds the accepted
// prefix with Success=false, and the error wraps one of
// dynamo.ErrInvalidInput, dynamo.ErrUnstable or dynamo.ErrStepBudget.
// A terminal event ends the run successfully with Status=StatusEvent.
func Integrate(sys dynamo.System, span [2]float64, y0 dynamo.State, cfg Config, events ...dynamo.Event) (*Trajectory, error) {
	tr := &Trajectory{Method: cfg.Method, Status: StatusFailed}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	stepper, err := validate(sys, span, y0, cfg, events)
	if err != nil {
		tr.Message = err.Error()
		return tr, err
	}
	m, _ := integrators.Parse(string(cfg.Method))
	tr.Method = m

	d := &driver{
		tr:      tr,
		cfg:     cfg,
		stepper: stepper,
		events:  events,
		t0:      span[0],
		tf:      span[1],
		dir:     1,
		log:     log,
	}
	if span[1] < span[0] {
		d.dir = -1
	}
	d.sys, d.counter = wrapSystem(sys)

	runErr := d.run(y0)

	tr.Stats.Evaluations = d.counter.nfev
	if jc, ok := stepper.(dynamo.JacobianCounter); ok {
		tr.Stats.JacobianEvaluations = jc.JacobianEvaluations()
		tr.Stats.Decompositions = jc.Decompositions()
	}

	tr.Times = append([]float64(nil), tr.knotT...)
	tr.States = make([]dynamo.State, len(tr.knotY))
	for i, y := range tr.knotY {
		tr.States[i] = y.Clone()
	}

	if runErr != nil {
		tr.Success = false
		tr.Status = StatusFailed
		tr.Message = runErr.Error()
		log.Warn("integration failed",
			slog.String("method", string(tr.Method)),
			slog.Int("accepted", tr.Stats.Accepted),
			slog.Int("rejected", tr.Stats.Rejected),
			slog.String("error", runErr.Error()))
		if !cfg.DenseOutput {
			tr.releaseDense()
		}
		return tr, runErr
	}

	if len(cfg.SampleTimes) > 0 {
		if err := tr.resample(cfg.SampleTimes, d.dir); err != nil {
			return tr, err
		}
	}
	if !cfg.DenseOutput {
		tr.releaseDense()
	}

	tr.Success = true
	log.Debug("integration finished",
		slog.String("method", string(tr.Method)),
		slog.String("status", tr.Status.String()),
		slog.Int("nfev", tr.Stats.Evaluations),
		slog.Int("accepted", tr.Stats.Accepted),
		slog.Int("rejected", tr.Stats.Rejected))
	return tr, nil
}

func validate(sys dynamo.System, span [2]float64, y0 dynamo.State, cfg Config, events []dynamo.Event) (dynamo.Stepper, error) {
	if sys == nil {
		return nil, fmt.Errorf("%w: nil system", dynamo.ErrInvalidInput)
	}
	if math.IsNaN(span[0]) || math.IsNaN(span[1]) || math.IsInf(span[0], 0) || math.IsInf(span[1], 0) {
		return nil, fmt.Errorf("%w: non-finite span %v", dynamo.ErrInvalidInput, span)
	}
	if span[0] == span[1] {
		return nil, fmt.Errorf("%w: degenerate span [%g, %g]", dynamo.ErrInvalidInput, span[0], span[1])
	}
	if len(y0) == 0 {
		return nil, fmt.Errorf("%w: empty initial state", dynamo.ErrInvalidInput)
	}
	if dim := sys.StateDim(); dim > 0 && dim != len(y0) {
		return nil, fmt.Errorf("%w: %w: state has %d components, system expects %d",
			dynamo.ErrInvalidInput, dynamo.ErrDimensionMismatch, len(y0), dim)
	}
	if !y0.IsValid() {
		return nil, fmt.Errorf("%w: %w", dynamo.ErrInvalidInput, dynamo.ErrInvalidState)
	}
	if cfg.RTol < 0 || cfg.ATol < 0 || (cfg.RTol == 0 && cfg.ATol == 0) {
		return nil, fmt.Errorf("%w: tolerances must be non-negative and not both zero", dynamo.ErrInvalidInput)
	}
	if cfg.MaxStep < 0 || cfg.Step < 0 || cfg.FirstStep < 0 || cfg.MinStep < 0 {
		return nil, fmt.Errorf("%w: step sizes must be non-negative", dynamo.ErrInvalidInput)
	}
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("%w: max steps must be positive", dynamo.ErrInvalidInput)
	}
	for i, ev := range events {
		if ev.Func == nil {
			return nil, fmt.Errorf("%w: event %d has no function", dynamo.ErrInvalidInput, i)
		}
	}
	lo, hi := math.Min(span[0], span[1]), math.Max(span[0], span[1])
	for _, ts := range cfg.SampleTimes {
		if ts < lo || ts > hi {
			return nil, fmt.Errorf("%w: sample time %g outside span", dynamo.ErrInvalidInput, ts)
		}
	}
	return integrators.New(cfg.Method)
}

type driver struct {
	tr      *Trajectory
	cfg     Config
	stepper dynamo.Stepper
	sys     dynamo.System
	counter *countingSystem
	events  []dynamo.Event
	t0, tf  float64
	dir     float64
	log     *slog.Logger

	gPrev []float64
}

func (d *driver) fail(step int, t float64, x dynamo.State, err error) error {
	return &dynamo.SimulationError{Step: step, Time: t, State: x.Clone(), Wrapped: err}
}

func (d *driver) unstable(step int, x dynamo.State) error {
	return d.fail(step, d.counter.badTime, x,
		fmt.Errorf("%w: non-finite derivative at t=%g", dynamo.ErrUnstable, d.counter.badTime))
}

func (d *driver) run(y0 dynamo.State) error {
	t := d.t0
	x := y0.Clone()
	dx := d.sys.Derive(x, t)
	if d.counter.unstable {
		return d.unstable(0, x)
	}
	d.tr.push(t, x, dx)

	d.gPrev = make([]float64, len(d.events))
	for i, ev := range d.events {
		d.gPrev[i] = ev.Func(t, x)
	}

	if adaptive, ok := d.stepper.(dynamo.AdaptiveStepper); ok {
		return d.runAdaptive(adaptive, t, x, dx)
	}
	return d.runFixed(t, x)
}

func (d *driver) remaining(t float64) float64 {
	return d.dir * (d.tf - t)
}

func (d *driver) runAdaptive(stepper dynamo.AdaptiveStepper, t float64, x, dx dynamo.State) error {
	tol := dynamo.Tolerance{Rel: d.cfg.RTol, Abs: d.cfg.ATol}

	h := d.cfg.FirstStep
	if h == 0 {
		h = tol.InitialStep(d.sys, x, dx, t, d.dir, stepper.Order())
		if d.counter.unstable {
			return d.unstable(0, x)
		}
	}

	rejects := 0
	for step := 0; d.remaining(t) > 0; {
		if step >= d.cfg.MaxSteps {
			return d.fail(step, t, x, fmt.Errorf("%w: %d steps taken before reaching t=%g", dynamo.ErrStepBudget, step, d.tf))
		}
		if d.cfg.MaxStep > 0 && h > d.cfg.MaxStep {
			h = d.cfg.MaxStep
		}
		last := false
		if h >= d.remaining(t) {
			h = d.remaining(t)
			last = true
		}
		if h < d.cfg.MinStep && !last {
			return d.fail(step, t, x, fmt.Errorf("%w: %w: h=%g", dynamo.ErrStepBudget, dynamo.ErrStepTooSmall, h))
		}

		trial := stepper.Attempt(d.sys, x, dx, t, d.dir*h)
		if d.counter.unstable {
			return d.unstable(step, x)
		}

		errNorm := tol.ErrorNorm(trial.Err, x, trial.X)
		if !(errNorm <= 1) {
			d.tr.Stats.Rejected++
			rejects++
			if d.cfg.MaxRejects > 0 && rejects > d.cfg.MaxRejects {
				return d.fail(step, t, x, fmt.Errorf("%w: %d consecutive rejections", dynamo.ErrStepBudget, rejects))
			}
			h = math.Abs(stepper.Propose(h, errNorm))
			continue
		}
		rejects = 0

		tNew := t + d.dir*h
		if last {
			tNew = d.tf
		}
		d.accept(h)
		step++

		stop, err := d.advance(step, t, x, dx, tNew, trial.X, trial.DX)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}

		t, x, dx = tNew, trial.X, trial.DX
		h = math.Abs(stepper.Propose(h, errNorm))
	}

	d.tr.Status = StatusSpanEnd
	return nil
}

func (d *driver) runFixed(t float64, x dynamo.State) error {
	h := d.cfg.Step
	if h == 0 {
		h = d.cfg.MaxStep
	}
	if h == 0 {
		h = math.Abs(d.tf-d.t0) / 1000
	}
	n := int(math.Ceil(math.Abs(d.tf-d.t0)/h - 1e-9))
	if n > d.cfg.MaxSteps {
		return d.fail(0, t, x, fmt.Errorf("%w: fixed step %g needs %d steps, budget is %d", dynamo.ErrStepBudget, h, n, d.cfg.MaxSteps))
	}

	dx := d.tr.knotD[0]
	for step := 0; step < n; step++ {
		hs := math.Min(h, d.remaining(t))
		tNew := t + d.dir*hs
		if step == n-1 {
			tNew = d.tf
		}
		xNew := d.stepper.Step(d.sys, x, t, d.dir*hs)
		if d.counter.unstable {
			return d.unstable(step, x)
		}
		if !xNew.IsValid() {
			return d.fail(step, tNew, x, fmt.Errorf("%w: non-finite state at t=%g", dynamo.ErrUnstable, tNew))
		}
		dxNew := d.sys.Derive(xNew, tNew)
		if d.counter.unstable {
			return d.unstable(step, x)
		}
		d.accept(hs)

		stop, err := d.advance(step+1, t, x, dx, tNew, xNew, dxNew)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
		t, x, dx = tNew, xNew, dxNew
	}

	d.tr.Status = StatusSpanEnd
	return nil
}

func (d *driver) accept(h float64) {
	s := &d.tr.Stats
	if s.Accepted == 0 || h < s.MinStep {
		s.MinStep = h
	}
	if h > s.MaxStep {
		s.MaxStep = h
	}
	s.Accepted++
}

// advance records an accepted step and checks events on it. It reports
// stop=true when a terminal event truncated the run.
func (d *driver) advance(step int, t float64, x, dx dynamo.State, tNew float64, xNew, dxNew dynamo.State) (bool, error) {
	d.tr.push(tNew, xNew, dxNew)
	if len(d.events) == 0 {
		return false, nil
	}

	hits := make([]EventHit, 0, 1)
	gNew := make([]float64, len(d.events))
	for i, ev := range d.events {
		gNew[i] = ev.Func(tNew, xNew)
		if !ev.Direction.Crossed(d.gPrev[i], gNew[i]) {
			continue
		}
		root := refineRoot(ev, t, tNew, x, dx, xNew, dxNew, d.gPrev[i], gNew[i])
		hits = append(hits, EventHit{
			Event:     ev.Name,
			Index:     i,
			Time:      root,
			State:     hermite(t, tNew, x, dx, xNew, dxNew, root),
			Direction: crossing(d.gPrev[i], gNew[i]),
			Terminal:  ev.Terminal,
		})
	}
	d.gPrev = gNew

	if len(hits) == 0 {
		return false, nil
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return d.dir*(hits[i].Time-hits[j].Time) < 0
	})

	for _, hit := range hits {
		d.tr.Events = append(d.tr.Events, hit)
		d.log.Debug("event located",
			slog.String("event", hit.Event),
			slog.Float64("t", hit.Time),
			slog.Bool("terminal", hit.Terminal))
		if hit.Terminal {
			dxEv := d.sys.Derive(hit.State, hit.Time)
			if d.counter.unstable {
				return false, d.unstable(step, hit.State)
			}
			d.tr.truncate(hit.Time, hit.State, dxEv)
			d.tr.Status = StatusEvent
			return true, nil
		}
	}
	return false, nil
}

func crossing(g0, g1 float64) dynamo.Direction {
	if g1 > g0 {
		return dynamo.Rising
	}
	return dynamo.Falling
}

// refineRoot locates the zero of ev on the Hermite interpolant of one step
// with the Illinois variant of regula falsi.
func refineRoot(ev dynamo.Event, t0, t1 float64, y0, d0, y1, d1 dynamo.State, g0, g1 float64) float64 {
	if g1 == 0 {
		return t1
	}
	a, b := t0, t1
	ga, gb := g0, g1
	side := 0
	tol := 4 * 2.220446049250313e-16 * math.Max(math.Abs(t0), math.Abs(t1))
	c := b
	for iter := 0; iter < 100; iter++ {
		prev := c
		c = (a*gb - b*ga) / (gb - ga)
		if math.Abs(b-a) <= tol || (iter > 0 && math.Abs(c-prev) <= tol) {
			break
		}
		gc := ev.Func(c, hermite(t0, t1, y0, d0, y1, d1, c))
		if gc == 0 {
			break
		}
		if (gc > 0) == (gb > 0) {
			b, gb = c, gc
			if side == -1 {
				ga /= 2
			}
			side = -1
		} else {
			a, ga = c, gc
			if side == 1 {
				gb /= 2
			}
			side = 1
		}
	}
	return c
}

func (tr *Trajectory) resample(ts []float64, dir float64) error {
	span := tr.Span()
	times := make([]float64, 0, len(ts))
	states := make([]dynamo.State, 0, len(ts))
	for _, t := range ts {
		if dir*(t-span[1]) > 0 {
			// run ended early on an event
			continue
		}
		y, err := tr.At(t)
		if err != nil {
			if errors.Is(err, dynamo.ErrOutOfRange) {
				continue
			}
			return err
		}
		times = append(times, t)
		states = append(states, y)
	}
	// a terminal event always ends the reported samples
	if tr.Status == StatusEvent && len(tr.Events) > 0 {
		hit := tr.Events[len(tr.Events)-1]
		if n := len(times); n == 0 || times[n-1] != hit.Time {
			times = append(times, hit.Time)
			states = append(states, hit.State.Clone())
		}
	}
	tr.Times = times
	tr.States = states
	return nil
}
