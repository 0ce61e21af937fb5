package physics_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/integrators"
	"github.com/san-kum/chronodyn/internal/physics"
	"github.com/san-kum/chronodyn/internal/sim"
)

var _ = Describe("Oscillator", func() {
	It("returns to its start after one period", func() {
		osc := physics.NewOscillator()
		tr, err := sim.Integrate(osc, [2]float64{0, 2 * math.Pi}, osc.DefaultState(), sim.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		_, end := tr.Final()
		Expect(end[0]).To(BeNumerically("~", 1, 1e-6))
		Expect(end[1]).To(BeNumerically("~", 0, 1e-6))
		Expect(osc.Energy(end)).To(BeNumerically("~", 0.5, 1e-8))
	})

	It("exposes its parameters", func() {
		var c dynamo.Configurable = physics.NewOscillator()
		c.SetParam("damping", 0.3)
		Expect(c.GetParams()).To(HaveKeyWithValue("damping", 0.3))
	})
})

var _ = Describe("VanDerPol", func() {
	It("solves the stiff limit with the implicit method", func() {
		vdp := physics.NewStiffVanDerPol(100)
		cfg := sim.DefaultConfig()
		cfg.Method = integrators.MethodRosenbrock23
		cfg.RTol, cfg.ATol = 1e-6, 1e-8
		cfg.MaxStep = 1

		tr, err := sim.Integrate(vdp, [2]float64{0, 10}, vdp.DefaultState(), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Success).To(BeTrue())
		Expect(tr.Stats.Decompositions).To(BeNumerically(">", 0))
		_, end := tr.Final()
		Expect(math.Abs(end[0])).To(BeNumerically("<", 2.5))
	})
})

var _ = Describe("Decay", func() {
	It("follows the exact solution", func() {
		d := physics.NewDecay(2)
		tr, err := sim.Integrate(d, [2]float64{0, 3}, d.DefaultState(), sim.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		for i, t := range tr.Times {
			Expect(tr.States[i][0]).To(BeNumerically("~", d.Exact(0, t), 1e-8))
		}
	})
})
