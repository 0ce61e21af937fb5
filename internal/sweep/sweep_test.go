package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/chronodyn/internal/cosmo"
	"github.com/san-kum/chronodyn/internal/sim"
	"github.com/san-kum/chronodyn/internal/telemetry"
	"github.com/san-kum/chronodyn/internal/theorycache"
)

func TestGridPoints(t *testing.T) {
	g, err := NewGrid([]string{"coupling", "time_scale"}, [][]float64{{0.5, 1, 2}, {1, 3}})
	require.NoError(t, err)
	assert.Equal(t, 6, g.Size())

	pts, err := g.Points(cosmo.Default())
	require.NoError(t, err)
	require.Len(t, pts, 6)
	assert.Equal(t, 0.5, pts[0].Coupling)
	assert.Equal(t, 1.0, pts[0].TimeScale)
	assert.Equal(t, 3.0, pts[1].TimeScale)
	assert.Equal(t, 2.0, pts[5].Coupling)
	for _, p := range pts {
		assert.Equal(t, cosmo.Default().H0, p.H0)
	}
}

func TestNewGridRejects(t *testing.T) {
	_, err := NewGrid([]string{"coupling"}, nil)
	assert.ErrorIs(t, err, cosmo.ErrInvalidParams)

	_, err = NewGrid([]string{"bogus"}, [][]float64{{1}})
	assert.ErrorIs(t, err, cosmo.ErrInvalidParams)

	_, err = NewGrid([]string{"coupling"}, [][]float64{{}})
	assert.ErrorIs(t, err, cosmo.ErrInvalidParams)
}

func TestRunSharesDuplicates(t *testing.T) {
	var calls atomic.Int64
	compute := func(_ context.Context, p cosmo.Params) (theorycache.Result, error) {
		calls.Add(1)
		return theorycache.Result{Params: p, A: []float64{p.Coupling}, Success: true}, nil
	}

	base := cosmo.Default()
	pts := []cosmo.Params{
		base.WithCoupling(1), base.WithCoupling(2), base.WithCoupling(1),
		base.WithCoupling(2), base.WithCoupling(3),
	}
	rec, err := telemetry.New(telemetry.DefaultConfig())
	require.NoError(t, err)

	r := &Runner{Cache: theorycache.New(16), Compute: compute, Workers: 1, Metrics: rec}
	out, err := r.Run(context.Background(), pts)
	require.NoError(t, err)
	require.Len(t, out, 5)

	assert.Equal(t, int64(3), calls.Load())
	for i, pt := range out {
		require.NoError(t, pt.Err)
		assert.Equal(t, pts[i].Coupling, pt.Result.Final())
	}

	best, score, err := Best(out, FinalScaleFactorTarget(2.2))
	require.NoError(t, err)
	assert.Equal(t, 2.0, best.Params.Coupling)
	assert.InDelta(t, 0.2, score, 1e-12)

	n, err := testutil.GatherAndCount(rec.Registry(), "chronodyn_sweep_points_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunRecordsPointErrors(t *testing.T) {
	boom := errors.New("boom")
	compute := func(_ context.Context, p cosmo.Params) (theorycache.Result, error) {
		if p.Coupling < 0 {
			return theorycache.Result{}, boom
		}
		return theorycache.Result{Params: p, Success: true}, nil
	}
	base := cosmo.Default()
	r := &Runner{Compute: compute, Workers: 4}
	out, err := r.Run(context.Background(), []cosmo.Params{base.WithCoupling(-1), base.WithCoupling(1)})
	require.NoError(t, err)
	assert.ErrorIs(t, out[0].Err, boom)
	assert.NoError(t, out[1].Err)

	_, _, err = Best(out[:1], FinalScaleFactorTarget(1))
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	compute := func(_ context.Context, p cosmo.Params) (theorycache.Result, error) {
		return theorycache.Result{Params: p, Success: true}, nil
	}
	r := &Runner{Compute: compute, Workers: 2}
	_, err := r.Run(ctx, []cosmo.Params{cosmo.Default()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackgroundCompute(t *testing.T) {
	g, err := NewGrid([]string{"coupling", "time_scale"}, [][]float64{{0.5, 1}, {1, 2}})
	require.NoError(t, err)
	pts, err := g.Points(cosmo.Default())
	require.NoError(t, err)

	rec, err := telemetry.New(telemetry.DefaultConfig())
	require.NoError(t, err)
	r := &Runner{
		Cache:   theorycache.New(8),
		Compute: BackgroundCompute([2]float64{1, 1.05}, 1, sim.DefaultConfig(), 11, rec),
		Workers: 4,
		Metrics: rec,
	}
	out, err := r.Run(context.Background(), pts)
	require.NoError(t, err)
	for _, pt := range out {
		require.NoError(t, pt.Err)
		assert.True(t, pt.Result.Success)
		assert.Len(t, pt.Result.Tau, 11)
		assert.Equal(t, pt.Params, pt.Result.Params)
		assert.Greater(t, pt.Result.Final(), 1.0)
	}

	n, err := testutil.GatherAndCount(rec.Registry(), "chronodyn_solver_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBackgroundComputeRejectsInvalid(t *testing.T) {
	compute := BackgroundCompute([2]float64{1, 1.05}, 1, sim.DefaultConfig(), 11, nil)
	_, err := compute(context.Background(), cosmo.Default().WithTimeScale(0))
	assert.ErrorIs(t, err, cosmo.ErrInvalidParams)
}
