package integrators

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/chronodyn/internal/dynamo"
)

// Method names a stepping scheme.
type Method string

const (
	MethodRK45         Method = "RK45"
	MethodRosenbrock23 Method = "Rosenbrock23"
	MethodRK4          Method = "RK4"
	MethodEuler        Method = "Euler"
	MethodVerlet       Method = "Verlet"
)

var constructors = map[Method]func() dynamo.Stepper{
	MethodRK45:         func() dynamo.Stepper { return NewRK45() },
	MethodRosenbrock23: func() dynamo.Stepper { return NewRosenbrock23() },
	MethodRK4:          func() dynamo.Stepper { return NewRK4() },
	MethodEuler:        func() dynamo.Stepper { return NewEuler() },
	MethodVerlet:       func() dynamo.Stepper { return NewVerlet() },
}

// New builds a fresh stepper. Names match case-insensitively, and the
// aliases "implicit" and "stiff" select Rosenbrock23.
func New(name Method) (dynamo.Stepper, error) {
	m, err := Parse(string(name))
	if err != nil {
		return nil, err
	}
	return constructors[m](), nil
}

// Parse resolves a user-supplied method name.
func Parse(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rk45", "dopri5":
		return MethodRK45, nil
	case "rosenbrock23", "implicit", "stiff", "ode23s":
		return MethodRosenbrock23, nil
	case "rk4":
		return MethodRK4, nil
	case "euler":
		return MethodEuler, nil
	case "verlet":
		return MethodVerlet, nil
	}
	return "", fmt.Errorf("%w: unknown integrator: %s", dynamo.ErrInvalidInput, name)
}

// IsAdaptive reports whether the method carries an embedded error estimate.
func (m Method) IsAdaptive() bool {
	return m == MethodRK45 || m == MethodRosenbrock23
}

// Methods lists registered method names in sorted order.
func Methods() []Method {
	names := make([]Method, 0, len(constructors))
	for m := range constructors {
		names = append(names, m)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
