// Package cosmo holds the cosmological parameter set and the scale-factor
// strategies shared by the tensor field and the background solver.
package cosmo

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// SpeedOfLight in km/s, the unit H0 is quoted against.
const SpeedOfLight = 299792.458

var ErrInvalidParams = errors.New("cosmo: invalid parameters")

var validate = validator.New()

// Params is an immutable parameter vector. Derive variants with the With
// methods instead of mutating a shared value.
type Params struct {
	H0          float64 `yaml:"h0" json:"h0" env:"H0" validate:"gt=0"`
	OmegaM      float64 `yaml:"omega_m" json:"omega_m" env:"OMEGA_M" validate:"gte=0"`
	OmegaLambda float64 `yaml:"omega_lambda" json:"omega_lambda" env:"OMEGA_LAMBDA"`
	OmegaR      float64 `yaml:"omega_r" json:"omega_r" env:"OMEGA_R" validate:"gte=0"`

	// Coupling is the chronodynamic coupling strength S.
	Coupling float64 `yaml:"coupling" json:"coupling" env:"COUPLING"`
	// TimeScale is the characteristic time T0 of the time field.
	TimeScale float64 `yaml:"time_scale" json:"time_scale" env:"TIME_SCALE" validate:"gt=0"`

	Deceleration float64 `yaml:"q0" json:"q0" env:"Q0"`
	Jerk         float64 `yaml:"j0" json:"j0" env:"J0"`
}

func Default() Params {
	return Params{
		H0:           67.4,
		OmegaM:       0.315,
		OmegaLambda:  0.685,
		OmegaR:       8.24e-5,
		Coupling:     1.0,
		TimeScale:    1.0,
		Deceleration: -0.55,
		Jerk:         1.0,
	}
}

func (p Params) vector() [8]float64 {
	return [8]float64{p.H0, p.OmegaM, p.OmegaLambda, p.OmegaR, p.Coupling, p.TimeScale, p.Deceleration, p.Jerk}
}

// Validate rejects non-finite entries and out-of-range physical values.
func (p Params) Validate() error {
	for i, v := range p.vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParams, ParamNames[i])
		}
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

func (p Params) WithCoupling(s float64) Params {
	p.Coupling = s
	return p
}

func (p Params) WithTimeScale(t0 float64) Params {
	p.TimeScale = t0
	return p
}

// Key identifies a parameter vector exactly. Two Params with equal keys
// produce identical model output.
type Key [8]float64

func (p Params) Key() Key { return Key(p.vector()) }

func (k Key) String() string {
	return fmt.Sprintf("h0=%g om=%g ol=%g or=%g S=%g T0=%g q0=%g j0=%g",
		k[0], k[1], k[2], k[3], k[4], k[5], k[6], k[7])
}

// FriedmannH2 is the squared conformal Hubble rate from the first
// Friedmann equation, in units where 8piG/3 carries the densities.
func (p Params) FriedmannH2(a float64) float64 {
	return 8 * math.Pi / 3 * (p.OmegaM/a + p.OmegaLambda*a*a + p.OmegaR/(a*a))
}

// ParamNames lists the names accepted by With, in Key order.
var ParamNames = []string{"h0", "omega_m", "omega_lambda", "omega_r", "coupling", "time_scale", "q0", "j0"}

// With returns a copy of p with the named entry replaced.
func (p Params) With(name string, v float64) (Params, error) {
	switch name {
	case "h0":
		p.H0 = v
	case "omega_m":
		p.OmegaM = v
	case "omega_lambda":
		p.OmegaLambda = v
	case "omega_r":
		p.OmegaR = v
	case "coupling", "S":
		p.Coupling = v
	case "time_scale", "T0":
		p.TimeScale = v
	case "q0":
		p.Deceleration = v
	case "j0":
		p.Jerk = v
	default:
		return p, fmt.Errorf("%w: unknown parameter %q", ErrInvalidParams, name)
	}
	return p, nil
}
