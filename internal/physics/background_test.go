package physics_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/chronodyn/internal/cosmo"
	"github.com/san-kum/chronodyn/internal/dynamo"
	"github.com/san-kum/chronodyn/internal/physics"
	"github.com/san-kum/chronodyn/internal/sim"
)

// empty has no matter, no radiation and no coupling, so a'' = 0.
func empty() cosmo.Params {
	return cosmo.Params{H0: 67.4, TimeScale: 1}
}

var _ = Describe("Background", func() {
	It("matches the modified Friedmann acceleration", func() {
		p := cosmo.Default()
		bg := physics.NewBackground(p)
		a, ap, tau := 1.2, 0.7, 1.0

		dx := bg.Derive(dynamo.State{a, ap}, tau)

		c00 := bg.Tensor().Compute(tau, [3]float64{})[0][0]
		want := -4*math.Pi*a*(p.OmegaM/(a*a*a)+2*p.OmegaLambda*a+2*p.OmegaR/math.Pow(a, 4)) + a*c00
		Expect(dx[0]).To(Equal(ap))
		Expect(dx[1]).To(BeNumerically("~", want, 1e-12))
	})

	It("starts on the Friedmann branch", func() {
		p := cosmo.Default()
		bg := physics.NewBackground(p)
		y0 := bg.InitialState(1)
		Expect(y0[0]).To(Equal(1.0))
		Expect(y0[1] * y0[1]).To(BeNumerically("~", p.FriedmannH2(1), 1e-12))
		Expect(bg.HConformal(y0[0], y0[1])).To(BeNumerically("~", math.Sqrt(p.FriedmannH2(1)), 1e-12))
	})

	It("is finite at tau = 0 without coupling", func() {
		bg := physics.NewBackground(empty())
		dx := bg.Derive(dynamo.State{1, -1}, 0)
		Expect(dx.IsValid()).To(BeTrue())
		Expect(dx[1]).To(Equal(0.0))
	})

	It("terminates when the scale factor collapses", func() {
		bg := physics.NewBackground(empty())
		cfg := sim.DefaultConfig()

		// a = 2 - tau
		tr, err := sim.Integrate(bg, [2]float64{1, 3}, dynamo.State{1, -1}, cfg, physics.CollapseEvent())
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Status).To(Equal(sim.StatusEvent))
		Expect(tr.Events).To(HaveLen(1))
		Expect(tr.Events[0].Time).To(BeNumerically("~", 2-physics.CollapseThreshold, 1e-8))
		Expect(tr.Events[0].Direction).To(Equal(dynamo.Falling))

		end, _ := tr.Final()
		Expect(end).To(BeNumerically("~", 2-physics.CollapseThreshold, 1e-8))
	})

	It("ends a sampled run on the collapse", func() {
		bg := physics.NewBackground(empty())
		cfg := sim.DefaultConfig()
		cfg.SampleTimes = physics.Linspace(1, 3, 11)

		tr, err := sim.Integrate(bg, [2]float64{1, 3}, dynamo.State{1, -1}, cfg, physics.CollapseEvent())
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Status).To(Equal(sim.StatusEvent))
		// grid 1.0 .. 1.8, then the event
		Expect(tr.Len()).To(Equal(6))

		end, state := tr.Final()
		Expect(end).To(Equal(tr.Events[0].Time))
		Expect(state[0]).To(BeNumerically("~", physics.CollapseThreshold, 1e-8))
	})

	It("ends an evolved run on a terminal event between samples", func() {
		bg := physics.NewBackground(cosmo.Default())
		stop := dynamo.Event{
			Name:      "stop",
			Func:      func(tau float64, _ dynamo.State) float64 { return tau - 1.033 },
			Terminal:  true,
			Direction: dynamo.Rising,
		}
		tr, err := bg.Evolve([2]float64{1, 1.05}, 1, sim.DefaultConfig(), 11, stop)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Status).To(Equal(sim.StatusEvent))
		// grid 1.000 .. 1.030, then the event
		Expect(tr.Len()).To(Equal(8))
		Expect(tr.Times[tr.Len()-1]).To(Equal(tr.Events[len(tr.Events)-1].Time))
		Expect(tr.Times[tr.Len()-1]).To(BeNumerically("~", 1.033, 1e-9))
	})

	It("ignores an expanding universe", func() {
		bg := physics.NewBackground(empty())
		tr, err := sim.Integrate(bg, [2]float64{1, 2}, dynamo.State{1, 1}, sim.DefaultConfig(), physics.CollapseEvent())
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Status).To(Equal(sim.StatusSpanEnd))
		Expect(tr.Events).To(BeEmpty())
	})

	It("evolves onto an even sample grid", func() {
		bg := physics.NewBackground(cosmo.Default())
		tr, err := bg.Evolve([2]float64{1, 1.05}, 1, sim.DefaultConfig(), 11)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Success).To(BeTrue())
		Expect(tr.Len()).To(Equal(11))

		tau, a, aPrime, hConf := bg.Columns(tr)
		Expect(tau[0]).To(Equal(1.0))
		Expect(tau[10]).To(Equal(1.05))
		for i := 1; i < len(a); i++ {
			Expect(a[i]).To(BeNumerically(">", a[i-1]))
			Expect(hConf[i]).To(BeNumerically("~", aPrime[i]/a[i], 1e-15))
		}
	})

	It("feeds a solved run back as a scale factor", func() {
		bg := physics.NewBackground(empty())
		tr, err := sim.Integrate(bg, [2]float64{0, 1}, dynamo.State{1, 1}, sim.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		a := physics.TrajectoryScaleFactor(tr)
		Expect(a(0.5)).To(BeNumerically("~", 1.5, 1e-9))
		Expect(a(-1)).To(BeNumerically("~", 1.0, 1e-12))
		Expect(a(5)).To(BeNumerically("~", 2.0, 1e-9))
	})
})

var _ = Describe("Linspace", func() {
	It("includes both ends", func() {
		Expect(physics.Linspace(0, 1, 5)).To(Equal([]float64{0, 0.25, 0.5, 0.75, 1}))
		Expect(physics.Linspace(3, 4, 1)).To(Equal([]float64{3}))
	})
})
