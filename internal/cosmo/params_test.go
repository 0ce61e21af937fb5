package cosmo

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default parameters invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"nan coupling", func(p *Params) { p.Coupling = math.NaN() }},
		{"inf h0", func(p *Params) { p.H0 = math.Inf(1) }},
		{"zero time scale", func(p *Params) { p.TimeScale = 0 }},
		{"negative time scale", func(p *Params) { p.TimeScale = -1 }},
		{"negative matter", func(p *Params) { p.OmegaM = -0.1 }},
		{"zero h0", func(p *Params) { p.H0 = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestWithDoesNotMutate(t *testing.T) {
	base := Default()
	doubled := base.WithCoupling(2)
	if base.Coupling != 1 || doubled.Coupling != 2 {
		t.Errorf("WithCoupling changed the receiver: base=%v doubled=%v", base.Coupling, doubled.Coupling)
	}
	if base.Key() == doubled.Key() {
		t.Error("different parameters must have different keys")
	}
	if base.Key() != Default().Key() {
		t.Error("equal parameters must have equal keys")
	}
	if base.WithTimeScale(2).TimeScale != 2 {
		t.Error("WithTimeScale did not apply")
	}
}

func TestFallbackScaleFactor(t *testing.T) {
	a := FallbackScaleFactor(Default())
	if a(0) != 1 {
		t.Errorf("a(0) = %v, want 1", a(0))
	}
	want := math.Exp(67.4 / SpeedOfLight)
	if math.Abs(a(1)-want) > 1e-15 {
		t.Errorf("a(1) = %v, want %v", a(1), want)
	}
	if ConstantScaleFactor(2)(123) != 2 {
		t.Error("constant scale factor should ignore tau")
	}
}

func TestFriedmannH2(t *testing.T) {
	p := Params{OmegaM: 1, TimeScale: 1, H0: 1}
	if got, want := p.FriedmannH2(1), 8*math.Pi/3; math.Abs(got-want) > 1e-12 {
		t.Errorf("FriedmannH2(1) = %v, want %v", got, want)
	}
}

func TestWith(t *testing.T) {
	p, err := Default().With("coupling", 2.5)
	if err != nil {
		t.Fatal(err)
	}
	if p.Coupling != 2.5 {
		t.Errorf("coupling = %g, want 2.5", p.Coupling)
	}
	if Default().Coupling != 1.0 {
		t.Error("With mutated the receiver")
	}
	for _, name := range ParamNames {
		if _, err := Default().With(name, 1); err != nil {
			t.Errorf("With(%q): %v", name, err)
		}
	}
	if _, err := Default().With("bogus", 1); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("unknown name error = %v, want ErrInvalidParams", err)
	}
}
