package particles_test

import (
	"math"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/kinetic/internal/geom"
	"github.com/san-kum/kinetic/internal/particles"
	"github.com/san-kum/kinetic/internal/shape"
)

const tol = 1e-12

func newAnimator(tmpl shape.Template) *particles.Animator {
	return particles.New(shape.DefaultCount, tmpl, particles.MustParseColor(particles.DefaultColor), rand.New(rand.NewPCG(3, 5)))
}

var _ = Describe("Animator", func() {
	Describe("tension mappings", func() {
		It("maps tension to expansion between 1.8 and 0.2", func() {
			Expect(particles.Expansion(0)).To(BeNumerically("~", 1.8, tol))
			Expect(particles.Expansion(0.5)).To(BeNumerically("~", 1.0, tol))
			Expect(particles.Expansion(1)).To(BeNumerically("~", 0.2, tol))
		})

		It("shrinks the render scale as tension rises", func() {
			Expect(particles.RenderScale(0)).To(BeNumerically("~", 0.075, tol))
			Expect(particles.RenderScale(1)).To(BeNumerically("~", 0.025, tol))
		})
	})

	Describe("Step", func() {
		It("fills the render buffer for every particle", func() {
			a := newAnimator(shape.Sphere)
			a.Step(0, 0.5)

			buf := a.Transforms()
			Expect(buf).To(HaveLen(shape.DefaultCount))
			positions := a.Positions()
			for i, tr := range buf {
				Expect(tr.Position).To(Equal(positions[i]))
				Expect(tr.Scale).To(BeNumerically("~", particles.RenderScale(0.5), tol))
			}
		})

		It("contracts toward a fixed frame target every frame", func() {
			a := newAnimator(shape.Heart)
			const elapsed = 1.25
			const tension = 0.3

			prev := make([]float64, a.Count())
			positions := a.Positions()
			for i := range prev {
				prev[i] = a.FrameTarget(i, elapsed, tension).Sub(positions[i]).Length()
			}

			for frame := 0; frame < 200; frame++ {
				a.Step(elapsed, tension)
				positions = a.Positions()
				for i := 0; i < len(positions); i += 97 {
					d := a.FrameTarget(i, elapsed, tension).Sub(positions[i]).Length()
					if prev[i] > 1e-9 {
						Expect(d).To(BeNumerically("<", prev[i]), "particle %d frame %d", i, frame)
						Expect(d).To(BeNumerically("~", prev[i]*(1-particles.BlendFactor), 1e-9))
					}
					prev[i] = d
				}
			}

			for i := 0; i < a.Count(); i += 97 {
				d := a.FrameTarget(i, elapsed, tension).Sub(positions[i]).Length()
				Expect(d).To(BeNumerically("<", 1e-6))
			}
		})

		It("clamps out-of-range tension before use", func() {
			hi := newAnimator(shape.Sphere)
			clamped := newAnimator(shape.Sphere)
			hi.Step(2, 7.5)
			clamped.Step(2, 1)
			Expect(hi.Positions()).To(Equal(clamped.Positions()))
			Expect(hi.Transforms()[0].Scale).To(BeNumerically("~", particles.RenderScale(1), tol))
		})

		It("blends the shared color toward the selection once per frame", func() {
			a := newAnimator(shape.Sphere)
			start := a.Color()
			white := particles.MustParseColor("#ffffff")
			a.SetColor(white)

			a.Step(0, 0.5)
			got := a.Color()
			Expect(got.R).To(BeNumerically("~", start.R+(1-start.R)*particles.ColorBlend, tol))
			Expect(got.G).To(BeNumerically("~", start.G+(1-start.G)*particles.ColorBlend, tol))
			Expect(got.B).To(BeNumerically("~", start.B+(1-start.B)*particles.ColorBlend, tol))
			Expect(a.TargetColor()).To(Equal(white))

			for i := 0; i < 300; i++ {
				a.Step(0, 0.5)
			}
			Expect(a.Color().R).To(BeNumerically("~", 1, 1e-6))
		})
	})

	Describe("SetTemplate", func() {
		It("keeps current positions and swaps all targets", func() {
			a := newAnimator(shape.Sphere)
			for i := 0; i < 30; i++ {
				a.Step(float64(i)/60, 0.2)
			}
			before := a.Positions()
			oldTargets := a.Targets()

			a.SetTemplate(shape.Saturn)

			Expect(a.Template()).To(Equal(shape.Saturn))
			Expect(a.Positions()).To(Equal(before))
			newTargets := a.Targets()
			Expect(newTargets).To(HaveLen(len(oldTargets)))
			Expect(newTargets[0]).NotTo(Equal(oldTargets[0]))
			for i := 0; i < 2100; i += 150 {
				Expect(newTargets[i].Length()).To(BeNumerically("~", 1.2, 1e-9))
			}
		})
	})

	Describe("Fireworks", func() {
		It("targets the unscaled seed cluster at full tension", func() {
			a := newAnimator(shape.Fireworks)
			targets := a.Targets()
			for _, i := range []int{0, 1, 1500, 2999} {
				Expect(a.FrameTarget(i, 3.7, 1)).To(Equal(targets[i]))
			}
		})

		It("scales seeds by exactly 21 at zero tension", func() {
			a := newAnimator(shape.Fireworks)
			targets := a.Targets()
			for _, i := range []int{0, 42, 2999} {
				ft := a.FrameTarget(i, 0, 0)
				Expect(ft.X).To(BeNumerically("~", targets[i].X*21, tol))
				Expect(ft.Y).To(BeNumerically("~", targets[i].Y*21, tol))
				Expect(ft.Z).To(BeNumerically("~", targets[i].Z*21, tol))
			}
			Expect(1 + particles.Explosion(0)*5).To(Equal(21.0))
		})

		It("ignores breathing", func() {
			a := newAnimator(shape.Fireworks)
			Expect(a.FrameTarget(10, 0, 0.5)).To(Equal(a.FrameTarget(10, 9.3, 0.5)))
		})
	})

	Describe("end to end frame", func() {
		It("uses expansion 1 and breathing amplitude 0.025 for a sphere at tension 0.5", func() {
			a := newAnimator(shape.Sphere)
			Expect(a.TargetColor().Hex()).To(Equal("#3b82f6"))
			Expect(particles.Expansion(0.5)).To(BeNumerically("~", 1.0, tol))

			const elapsed = 0.75
			target := a.Targets()[0]
			want := geom.Vec3{
				X: target.X + math.Sin(elapsed)*0.025,
				Y: target.Y + math.Cos(elapsed)*0.025,
				Z: target.Z,
			}
			got := a.FrameTarget(0, elapsed, 0.5)
			Expect(got.X).To(BeNumerically("~", want.X, tol))
			Expect(got.Y).To(BeNumerically("~", want.Y, tol))
			Expect(got.Z).To(BeNumerically("~", want.Z, tol))

			a.Step(elapsed, 0.5)
			first := a.Positions()[0]
			Expect(first.X).To(BeNumerically("~", want.X*particles.BlendFactor, tol))
			Expect(first.Y).To(BeNumerically("~", want.Y*particles.BlendFactor, tol))
		})

		It("drops breathing entirely at full tension", func() {
			a := newAnimator(shape.Heart)
			target := a.Targets()[5]
			got := a.FrameTarget(5, 12.5, 1)
			Expect(got.X).To(BeNumerically("~", target.X*0.2, tol))
			Expect(got.Y).To(BeNumerically("~", target.Y*0.2, tol))
		})
	})

	It("handles an empty particle set", func() {
		a := particles.New(0, shape.Sphere, particles.MustParseColor("red"), nil)
		a.Step(1, 0.5)
		Expect(a.Transforms()).To(BeEmpty())
		Expect(a.FrameTarget(0, 0, 0)).To(Equal(geom.Vec3{}))
	})
})
