package config

import (
	"maps"
	"sort"

	"github.com/san-kum/chronodyn/internal/cosmo"
)

func withCosmology(cfg Config, p cosmo.Params) *Config {
	cfg.Cosmology = p
	return &cfg
}

func preset(model, integrator string, tau0, tau1 float64, init InitStateConfig) Config {
	cfg := *DefaultConfig()
	cfg.Model = model
	cfg.Integrator = integrator
	cfg.TauStart, cfg.TauEnd = tau0, tau1
	cfg.InitState = init
	return cfg
}

var Presets = map[string]map[string]*Config{
	"background": {
		"standard": withCosmology(
			preset("background", "rk45", 1, 2, InitStateConfig{A0: 1}),
			cosmo.Default()),
		"uncoupled": withCosmology(
			preset("background", "rk45", 1, 2, InitStateConfig{A0: 1}),
			cosmo.Default().WithCoupling(0)),
		"strong": withCosmology(
			preset("background", "rosenbrock23", 1, 2, InitStateConfig{A0: 1}),
			cosmo.Default().WithCoupling(5)),
		"slow": withCosmology(
			preset("background", "rk45", 1, 3, InitStateConfig{A0: 1}),
			cosmo.Default().WithTimeScale(10)),
		"early": withCosmology(
			preset("background", "rosenbrock23", 1e-5, 1e-3, InitStateConfig{A0: 1e-5}),
			cosmo.Default()),
	},
	"oscillator": {
		"period": ptr(preset("oscillator", "rk45", 0, 6.283185307179586, InitStateConfig{X: 1})),
		"fixed":  ptr(preset("oscillator", "rk4", 0, 20, InitStateConfig{X: 1})),
	},
	"vanderpol": {
		"limit_cycle": ptr(preset("vanderpol", "rk45", 0, 20, InitStateConfig{X: 2})),
		"stiff":       withParams(preset("vanderpol", "rosenbrock23", 0, 100, InitStateConfig{X: 2}), map[string]float64{"mu": 100}),
	},
	"decay": {
		"relax": ptr(preset("decay", "rk45", 0, 5, InitStateConfig{X: 0})),
	},
}

func ptr(c Config) *Config { return &c }

func withParams(c Config, params map[string]float64) *Config {
	c.Params = params
	return &c
}

// GetPreset returns a copy, so callers may override fields freely.
func GetPreset(model, name string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[name]
	if !ok {
		return nil
	}
	c := *cfg
	c.Params = maps.Clone(cfg.Params)
	return &c
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListModels() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
