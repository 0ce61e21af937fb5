// Package telemetry exports solver and sweep counters as Prometheus
// metrics. A Recorder owns its own registry so tests and concurrent
// sweeps never collide on the global one.
package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/chronodyn/internal/sim"
)

var ErrInvalidConfig = errors.New("telemetry: invalid configuration")

type Config struct {
	Namespace string
	Subsystem string

	// Registry receives every collector. Nil builds a private registry.
	Registry *prometheus.Registry

	EvaluationBuckets []float64
	DurationBuckets   []float64
}

func DefaultConfig() Config {
	return Config{
		Namespace:         "chronodyn",
		Subsystem:         "solver",
		EvaluationBuckets: prometheus.ExponentialBuckets(16, 4, 10),
		DurationBuckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
	}
}

func (c Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("%w: namespace is required", ErrInvalidConfig)
	}
	if c.Subsystem == "" {
		return fmt.Errorf("%w: subsystem is required", ErrInvalidConfig)
	}
	return nil
}

// Recorder is safe for concurrent use; every collector it holds is.
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	evaluations *prometheus.HistogramVec
	rejected    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	events      *prometheus.CounterVec

	sweepPoints *prometheus.CounterVec

	cacheHits      prometheus.Gauge
	cacheMisses    prometheus.Gauge
	cacheEvictions prometheus.Gauge
	cacheEntries   prometheus.Gauge
}

func New(cfg Config) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	def := DefaultConfig()
	if len(cfg.EvaluationBuckets) == 0 {
		cfg.EvaluationBuckets = def.EvaluationBuckets
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = def.DurationBuckets
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "runs_total",
			Help:      "Integration runs by method and terminal status.",
		}, []string{"method", "status"}),
		evaluations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "evaluations",
			Help:      "Right-hand-side evaluations per run.",
			Buckets:   cfg.EvaluationBuckets,
		}, []string{"method"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rejected_steps_total",
			Help:      "Steps rejected by the error controller.",
		}, []string{"method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time per integration run.",
			Buckets:   cfg.DurationBuckets,
		}, []string{"method"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "events_total",
			Help:      "Located event crossings by event name.",
		}, []string{"event"}),
		sweepPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "sweep",
			Name:      "points_total",
			Help:      "Parameter sweep points by outcome.",
		}, []string{"outcome"}),
		cacheHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: "cache", Name: "hits",
			Help: "Theory cache hits since start.",
		}),
		cacheMisses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: "cache", Name: "misses",
			Help: "Theory cache misses since start.",
		}),
		cacheEvictions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: "cache", Name: "evictions",
			Help: "Theory cache evictions since start.",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: "cache", Name: "entries",
			Help: "Results currently held in memory.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.runs, r.evaluations, r.rejected, r.duration, r.events,
		r.sweepPoints, r.cacheHits, r.cacheMisses, r.cacheEvictions, r.cacheEntries,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("telemetry: register: %w", err)
		}
	}
	return r, nil
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveRun records one finished integration. A nil recorder is a no-op.
func (r *Recorder) ObserveRun(tr *sim.Trajectory, elapsed time.Duration) {
	if r == nil || tr == nil {
		return
	}
	method := string(tr.Method)
	r.runs.WithLabelValues(method, tr.Status.String()).Inc()
	r.evaluations.WithLabelValues(method).Observe(float64(tr.Stats.Evaluations))
	r.rejected.WithLabelValues(method).Add(float64(tr.Stats.Rejected))
	r.duration.WithLabelValues(method).Observe(elapsed.Seconds())
	for _, ev := range tr.Events {
		r.events.WithLabelValues(ev.Event).Inc()
	}
}

// Outcome labels for ObserveSweepPoint.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeError  = "error"
)

func (r *Recorder) ObserveSweepPoint(outcome string) {
	if r == nil {
		return
	}
	r.sweepPoints.WithLabelValues(outcome).Inc()
}

// CacheStats mirrors the counters a cache exposes.
type CacheStats struct {
	Hits, Misses, Evictions int64
	Entries                 int
}

func (r *Recorder) SetCacheStats(s CacheStats) {
	if r == nil {
		return
	}
	r.cacheHits.Set(float64(s.Hits))
	r.cacheMisses.Set(float64(s.Misses))
	r.cacheEvictions.Set(float64(s.Evictions))
	r.cacheEntries.Set(float64(s.Entries))
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("telemetry: write %s: %w", path, err)
	}
	return nil
}
