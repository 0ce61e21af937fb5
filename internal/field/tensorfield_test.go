package field_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/chronodyn/internal/cosmo"
	"github.com/san-kum/chronodyn/internal/field"
)

var _ = Describe("TensorField", func() {
	var (
		params cosmo.Params
		tf     *field.TensorField
		origin [3]float64
	)

	BeforeEach(func() {
		params = cosmo.Default()
		tf = field.NewTensorField(params)
		origin = [3]float64{}
	})

	DescribeTable("is symmetric",
		func(tau float64, x [3]float64) {
			Expect(tf.Compute(tau, x).IsSymmetric(1e-10)).To(BeTrue())
		},
		Entry("origin early", 0.5, [3]float64{}),
		Entry("origin", 1.0, [3]float64{}),
		Entry("off axis", 2.0, [3]float64{100, 0, 0}),
		Entry("general point", 1.5, [3]float64{30, -40, 12}),
	)

	It("vanishes without coupling, also at tau = 0", func() {
		p := params
		p.Coupling = 0
		uncoupled := field.NewTensorField(p)
		for _, tau := range []float64{0, 1e-6, 1} {
			c := uncoupled.Compute(tau, [3]float64{10, 0, 0})
			Expect(c.IsFinite()).To(BeTrue(), "tau=%g", tau)
			Expect(c).To(Equal(field.Tensor{}), "tau=%g", tau)
		}
	})

	It("stays finite across conformal time", func() {
		for _, tau := range []float64{1e-6, 1e-4, 0.01, 0.1, 0.5, 1, 2, 5, 10} {
			c := tf.Compute(tau, origin)
			Expect(c.IsFinite()).To(BeTrue(), "tau=%g", tau)
		}
	})

	It("responds to doubling the coupling", func() {
		doubled := field.NewTensorField(params.WithCoupling(2 * params.Coupling))
		base := tf.Compute(1, origin)[0][0]
		ratio := doubled.Compute(1, origin)[0][0] / base
		Expect(ratio).To(BeNumerically(">=", 1.5))
		Expect(ratio).To(BeNumerically("<=", 3.0))
	})

	It("varies in time", func() {
		early := tf.Compute(0.5, origin)[0][0]
		late := tf.Compute(1.0, origin)[0][0]
		Expect(math.Abs(early - late)).To(BeNumerically(">", 1e-6))
	})

	It("varies in space", func() {
		here := tf.Compute(1, origin)[0][0]
		there := tf.Compute(1, [3]float64{100, 0, 0})[0][0]
		Expect(math.Abs(here - there)).To(BeNumerically(">", 1e-6))
	})

	It("has no momentum components at the origin", func() {
		c := tf.Compute(1, origin)
		for i := 1; i < 4; i++ {
			Expect(c[0][i]).To(BeZero())
		}
	})

	It("uses the injected scale factor", func() {
		stretched := field.NewTensorField(params, field.WithScaleFactor(cosmo.ConstantScaleFactor(2)))
		unit := field.NewTensorField(params, field.WithScaleFactor(cosmo.ConstantScaleFactor(1)))
		Expect(stretched.Compute(1, origin)[0][0]).To(BeNumerically("~", unit.Compute(1, origin)[0][0]/4, 1e-12))
		Expect(stretched.ScaleFactor(7)).To(Equal(2.0))
	})

	It("builds the effective source as -C/8pi", func() {
		x := [3]float64{10, 20, 30}
		c := tf.Compute(1, x)
		src := tf.EffectiveSource(1, x)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				Expect(src[i][j]).To(BeNumerically("~", -c[i][j]/(8*math.Pi), 1e-12))
			}
		}
	})

	It("reports conservation without failing", func() {
		ok, worst := tf.ValidateConservation(1, origin, math.Inf(1))
		Expect(ok).To(BeTrue())
		Expect(worst).To(BeNumerically(">=", 0))

		ok, _ = tf.ValidateConservation(1, origin, 0)
		Expect(ok).To(BeFalse())
	})

	It("is a pure function of its inputs", func() {
		x := [3]float64{1, 2, 3}
		Expect(tf.Compute(1.25, x)).To(Equal(tf.Compute(1.25, x)))
		Expect(tf.At(field.Point{Tau: 1.25, X: x})).To(Equal(tf.Compute(1.25, x)))
	})
})

var _ = Describe("TimeField", func() {
	It("is positive for positive tau", func() {
		tfield := field.NewTimeField(cosmo.Default())
		for _, tau := range []float64{1e-6, 0.1, 1, 10} {
			Expect(tfield.Evaluate(tau, [3]float64{50, 50, 50})).To(BeNumerically(">", 0))
		}
	})

	It("varies in space", func() {
		tfield := field.NewTimeField(cosmo.Default())
		here := tfield.Evaluate(1, [3]float64{})
		there := tfield.Evaluate(1, [3]float64{100, 0, 0})
		Expect(math.Abs(here - there)).To(BeNumerically(">", 1e-6))
	})

	It("grows linearly without coupling", func() {
		tfield := field.NewTimeField(cosmo.Default().WithCoupling(0).WithTimeScale(2))
		Expect(tfield.Evaluate(3, [3]float64{})).To(BeNumerically("~", 6, 1e-12))
		Expect(tfield.DerivativeTau(3, [3]float64{})).To(BeNumerically("~", 2, 1e-6))
	})
})
