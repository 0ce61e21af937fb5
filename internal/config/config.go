package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/chronodyn/internal/cosmo"
	"github.com/san-kum/chronodyn/internal/integrators"
	"github.com/san-kum/chronodyn/internal/sim"
)

const (
	DefaultTauStart = 1.0
	DefaultTauEnd   = 2.0
	DefaultSamples  = 1000
	DefaultA0       = 1.0
	DefaultRTol     = 1e-10
	DefaultATol     = 1e-12
	DefaultMaxStep  = 0.01

	EnvPrefix = "CHRONODYN_"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

var validate = validator.New()

type Config struct {
	Model      string  `yaml:"model" env:"MODEL" validate:"required"`
	Integrator string  `yaml:"integrator" env:"INTEGRATOR"`
	TauStart   float64 `yaml:"tau_start" env:"TAU_START"`
	TauEnd     float64 `yaml:"tau_end" env:"TAU_END"`
	Samples    int     `yaml:"samples" env:"SAMPLES" validate:"gte=0"`

	RTol    float64 `yaml:"rtol" env:"RTOL" validate:"gte=0"`
	ATol    float64 `yaml:"atol" env:"ATOL" validate:"gte=0"`
	MaxStep float64 `yaml:"max_step" env:"MAX_STEP" validate:"gte=0"`
	// Step is the fixed step for RK4, Euler and Verlet. Zero means MaxStep.
	Step float64 `yaml:"step" env:"STEP" validate:"gte=0"`

	// Params overrides named model parameters, e.g. mu for vanderpol.
	Params map[string]float64 `yaml:"params,omitempty" env:"PARAMS"`

	InitState InitStateConfig `yaml:"init_state" envPrefix:"INIT_"`
	Cosmology cosmo.Params    `yaml:"cosmology" envPrefix:"COSMO_"`
	Analysis  AnalysisConfig  `yaml:"analysis" envPrefix:"ANALYSIS_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
}

// InitStateConfig holds starting values. A0 is the background scale
// factor; X and V seed the reference systems.
type InitStateConfig struct {
	A0 float64 `yaml:"a0" env:"A0"`
	X  float64 `yaml:"x" env:"X"`
	V  float64 `yaml:"v" env:"V"`
}

type AnalysisConfig struct {
	GrowthThreshold     float64 `yaml:"growth_threshold" env:"GROWTH_THRESHOLD"`
	FrequencyThreshold  float64 `yaml:"frequency_threshold" env:"FREQUENCY_THRESHOLD"`
	ConstraintTolerance float64 `yaml:"constraint_tolerance" env:"CONSTRAINT_TOLERANCE" validate:"gte=0"`
	MatterDensity       float64 `yaml:"matter_density" env:"MATTER_DENSITY"`

	// Sensitivity enables the divergence-rate estimate for the reference
	// systems. It costs two extra fixed-step integrations.
	Sensitivity bool `yaml:"sensitivity" env:"SENSITIVITY"`
}

type StorageConfig struct {
	Dir       string `yaml:"dir" env:"DIR"`
	CacheDB   string `yaml:"cache_db" env:"CACHE_DB"`
	CacheSize int    `yaml:"cache_size" env:"CACHE_SIZE" validate:"gte=0"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "background",
		Integrator: string(integrators.MethodRK45),
		TauStart:   DefaultTauStart,
		TauEnd:     DefaultTauEnd,
		Samples:    DefaultSamples,
		RTol:       DefaultRTol,
		ATol:       DefaultATol,
		MaxStep:    DefaultMaxStep,
		InitState: InitStateConfig{
			A0: DefaultA0,
			X:  1,
		},
		Cosmology: cosmo.Default(),
		Analysis: AnalysisConfig{
			GrowthThreshold:     10,
			FrequencyThreshold:  1000,
			ConstraintTolerance: 1e-10,
			MatterDensity:       1,
		},
		Storage: StorageConfig{
			Dir:       ".chronodyn",
			CacheSize: 256,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ParseEnv applies CHRONODYN_* overrides on top of cfg. Unset variables
// leave the current values alone.
func ParseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := integrators.Parse(c.Integrator); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.TauStart == c.TauEnd {
		return fmt.Errorf("%w: empty time span", ErrInvalidConfig)
	}
	if err := c.Cosmology.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SimConfig translates the integration settings for sim.Integrate.
func (c *Config) SimConfig() sim.Config {
	cfg := sim.DefaultConfig()
	if m, err := integrators.Parse(c.Integrator); err == nil {
		cfg.Method = m
	}
	if c.RTol > 0 {
		cfg.RTol = c.RTol
	}
	if c.ATol > 0 {
		cfg.ATol = c.ATol
	}
	if c.MaxStep > 0 {
		cfg.MaxStep = c.MaxStep
	}
	cfg.Step = c.Step
	return cfg
}

func (c *Config) Span() [2]float64 {
	return [2]float64{c.TauStart, c.TauEnd}
}

// GetInitState returns the starting state for the configured model. The
// background starts from the Friedmann branch and is built by its model.
func (c *Config) GetInitState() []float64 {
	switch c.Model {
	case "background":
		return []float64{c.InitState.A0}
	case "decay":
		return []float64{c.InitState.X}
	default:
		return []float64{c.InitState.X, c.InitState.V}
	}
}
