package sweep

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/chronodyn/internal/cosmo"
	"github.com/san-kum/chronodyn/internal/physics"
	"github.com/san-kum/chronodyn/internal/sim"
	"github.com/san-kum/chronodyn/internal/telemetry"
	"github.com/san-kum/chronodyn/internal/theorycache"
)

// Point is the outcome for one parameter vector. Err is set when the
// computation itself failed; a run that stopped early still has Result.
type Point struct {
	Params cosmo.Params       `json:"params"`
	Result theorycache.Result `json:"result"`
	Err    error              `json:"-"`
}

type Runner struct {
	Cache   *theorycache.Cache
	Compute theorycache.ComputeFunc
	Workers int

	Metrics *telemetry.Recorder
	Logger  *slog.Logger
}

// Run evaluates every point. Per-point failures are recorded in the
// returned slice; only context cancellation aborts the sweep.
func (r *Runner) Run(ctx context.Context, points []cosmo.Params) ([]Point, error) {
	log := r.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cache := r.Cache
	if cache == nil {
		cache = theorycache.New(len(points))
	}
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	out := make([]Point, len(points))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, p := range points {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i].Params = p
			res, err := cache.GetOrCompute(ctx, p, r.Compute)
			switch {
			case err != nil && ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				out[i].Err = err
				r.Metrics.ObserveSweepPoint(telemetry.OutcomeError)
				log.Warn("sweep point failed", slog.String("params", p.Key().String()), slog.String("error", err.Error()))
			case !res.Success:
				out[i].Result = res
				r.Metrics.ObserveSweepPoint(telemetry.OutcomeFailed)
			default:
				out[i].Result = res
				r.Metrics.ObserveSweepPoint(telemetry.OutcomeOK)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	st := cache.Stats()
	r.Metrics.SetCacheStats(telemetry.CacheStats{Hits: st.Hits, Misses: st.Misses, Evictions: st.Evictions, Entries: st.Entries})
	log.Info("sweep finished",
		slog.Int("points", len(points)),
		slog.Int64("computes", st.Computes),
		slog.Int64("hits", st.Hits))
	return out, nil
}

// BackgroundCompute solves the background equation for each parameter
// vector over span, sampled at n points. An integration failure is kept as
// an unsuccessful Result rather than an error.
func BackgroundCompute(span [2]float64, a0 float64, cfg sim.Config, samples int, rec *telemetry.Recorder) theorycache.ComputeFunc {
	return func(ctx context.Context, p cosmo.Params) (theorycache.Result, error) {
		if err := ctx.Err(); err != nil {
			return theorycache.Result{}, err
		}
		if err := p.Validate(); err != nil {
			return theorycache.Result{}, err
		}
		bg := physics.NewBackground(p)

		start := time.Now()
		tr, err := bg.Evolve(span, a0, cfg, samples)
		rec.ObserveRun(tr, time.Since(start))
		if err != nil && tr.Len() == 0 {
			return theorycache.Result{}, err
		}

		tau, a, aPrime, hConf := bg.Columns(tr)
		return theorycache.Result{
			Params:      p,
			Tau:         tau,
			A:           a,
			APrime:      aPrime,
			HConf:       hConf,
			Success:     tr.Success,
			Status:      tr.Status.String(),
			Evaluations: tr.Stats.Evaluations,
		}, nil
	}
}

// Objective scores a successful result; lower is better.
type Objective func(theorycache.Result) float64

// FinalScaleFactorTarget scores by distance of the final a from target.
func FinalScaleFactorTarget(target float64) Objective {
	return func(r theorycache.Result) float64 { return math.Abs(r.Final() - target) }
}

var ErrNoCandidate = errors.New("sweep: no successful point")

// Best returns the successful point with the lowest objective. Ties keep
// the earlier point.
func Best(points []Point, objective Objective) (Point, float64, error) {
	best := math.Inf(1)
	idx := -1
	for i, pt := range points {
		if pt.Err != nil || !pt.Result.Success {
			continue
		}
		v := objective(pt.Result)
		if math.IsNaN(v) {
			continue
		}
		if v < best {
			best, idx = v, i
		}
	}
	if idx < 0 {
		return Point{}, math.Inf(1), ErrNoCandidate
	}
	return points[idx], best, nil
}
