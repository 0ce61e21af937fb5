package experiment

import (
	"fmt"
	"maps"
	"slices"

	"github.com/san-kum/chronodyn/internal/config"
	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/integrators"
	"github.com/san-kum/chronodyn/internal/physics"
)

// Model is a system ready to integrate together with its starting state.
type Model struct {
	Name    string
	System  dynamo.System
	Initial dynamo.State
	Columns []string
}

type builder func(cfg *config.Config) (Model, error)

type Registry struct {
	models map[string]builder
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]builder)}

	r.models["background"] = func(cfg *config.Config) (Model, error) {
		p := cfg.Cosmology
		for name, v := range cfg.Params {
			var err error
			if p, err = p.With(name, v); err != nil {
				return Model{}, err
			}
		}
		if err := p.Validate(); err != nil {
			return Model{}, err
		}
		bg := physics.NewBackground(p)
		return Model{
			System:  bg,
			Initial: bg.InitialState(cfg.InitState.A0),
			Columns: []string{"a", "a_prime"},
		}, nil
	}
	r.models["oscillator"] = func(cfg *config.Config) (Model, error) {
		return configure(physics.NewOscillator(), cfg, []string{"x", "v"})
	}
	r.models["vanderpol"] = func(cfg *config.Config) (Model, error) {
		return configure(physics.NewVanDerPol(), cfg, []string{"x", "y"})
	}
	r.models["decay"] = func(cfg *config.Config) (Model, error) {
		return configure(physics.NewDecay(1), cfg, []string{"y"})
	}

	return r
}

// configure applies cfg.Params to a reference system. Names the system
// does not expose are rejected.
func configure(sys interface {
	dynamo.System
	dynamo.Configurable
}, cfg *config.Config, columns []string) (Model, error) {
	known := sys.GetParams()
	for name, v := range cfg.Params {
		if _, ok := known[name]; !ok {
			return Model{}, fmt.Errorf("%w: unknown parameter %q", dynamo.ErrInvalidInput, name)
		}
		sys.SetParam(name, v)
	}
	init := dynamo.State(cfg.GetInitState())
	if len(init) != sys.StateDim() {
		return Model{}, fmt.Errorf("%w: initial state has %d values, want %d", dynamo.ErrDimensionMismatch, len(init), sys.StateDim())
	}
	return Model{System: sys, Initial: init, Columns: columns}, nil
}

func (r *Registry) GetModel(cfg *config.Config) (Model, error) {
	fn, ok := r.models[cfg.Model]
	if !ok {
		return Model{}, fmt.Errorf("unknown model: %s", cfg.Model)
	}
	m, err := fn(cfg)
	if err != nil {
		return Model{}, fmt.Errorf("build %s: %w", cfg.Model, err)
	}
	m.Name = cfg.Model
	return m, nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Stepper, error) {
	return integrators.New(integrators.Method(name))
}

func (r *Registry) ListModels() []string {
	return slices.Sorted(maps.Keys(r.models))
}
