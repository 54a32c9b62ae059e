// Package shape maps a template and particle index to a 3D target point.
//
// Every template has exactly one generator; Generate picks it once per call
// and evaluates it for every index. Sphere is fully deterministic. Heart,
// Flower, Saturn's ring, the figure's base and Fireworks draw jitter from the
// supplied random source, so their output is bounded but not reproducible
// unless the source is seeded.
package shape

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/san-kum/kinetic/internal/geom"
)

// DefaultCount is the particle count used by the visualizer.
const DefaultCount = 3000

// Generator computes the target for particle i of n.
type Generator func(i, n int, rng *rand.Rand) geom.Vec3

var generators = map[Template]Generator{
	Sphere:           sphere,
	Heart:            heart,
	Flower:           flower,
	Saturn:           saturn,
	MeditatingFigure: meditating,
	Fireworks:        fireworks,
}

// Generate returns n target points for template t. n <= 0 yields an empty
// slice. A nil rng is replaced by a time-seeded source.
func Generate(t Template, n int, rng *rand.Rand) []geom.Vec3 {
	if n <= 0 {
		return []geom.Vec3{}
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	gen, ok := generators[t]
	if !ok {
		gen = func(int, int, *rand.Rand) geom.Vec3 { return geom.Vec3{} }
	}
	points := make([]geom.Vec3, n)
	for i := range points {
		points[i] = gen(i, n, rng)
	}
	return points
}

// NominalRadius is the rough extent of a template at expansion 1.
func NominalRadius(t Template) float64 {
	switch t {
	case Saturn:
		return 2.8
	case Fireworks:
		return 0.1
	default:
		return 2
	}
}

// fibonacci places point i of n on a sphere of radius r. n is a float so
// callers can spread a fractional share of the particle count.
func fibonacci(i, n, r float64) geom.Vec3 {
	if n <= 0 {
		return geom.Vec3{}
	}
	c := -1 + 2*i/n
	c = math.Max(-1, math.Min(1, c))
	phi := math.Acos(c)
	theta := math.Sqrt(n*math.Pi) * phi
	return geom.Vec3{
		X: r * math.Cos(theta) * math.Sin(phi),
		Y: r * math.Sin(theta) * math.Sin(phi),
		Z: r * math.Cos(phi),
	}
}

func jitter(rng *rand.Rand, amp float64) float64 {
	return (rng.Float64() - 0.5) * 2 * amp
}

func sphere(i, n int, _ *rand.Rand) geom.Vec3 {
	return fibonacci(float64(i), float64(n), 2)
}

func heart(i, n int, rng *rand.Rand) geom.Vec3 {
	t := float64(i) / float64(n) * math.Pi * 20
	s := math.Sin(t)
	x := 16 * s * s * s
	y := 13*math.Cos(t) - 5*math.Cos(2*t) - 2*math.Cos(3*t) - math.Cos(4*t)
	return geom.Vec3{
		X: x*0.1 + jitter(rng, 0.25),
		Y: y*0.1 + jitter(rng, 0.25),
		Z: jitter(rng, 0.25),
	}
}

func flower(i, n int, rng *rand.Rand) geom.Vec3 {
	t := float64(i) / float64(n) * math.Pi * 20
	rho := math.Cos(5 * t)
	return geom.Vec3{
		X: rho * math.Cos(t) * 2,
		Y: rho * math.Sin(t) * 2,
		Z: jitter(rng, 1),
	}
}

func saturn(i, n int, rng *rand.Rand) geom.Vec3 {
	planet := float64(n) * 0.7
	if float64(i) < planet {
		return fibonacci(float64(i), planet, 1.2)
	}
	ring := float64(n) * 0.3
	angle := (float64(i) - planet) / ring * math.Pi * 2
	r := 2.0 + rng.Float64()*0.8
	p := geom.Vec3{X: math.Cos(angle) * r, Z: math.Sin(angle) * r}
	return p.RotateX(0.4)
}

// meditating partitions indices into base (first 40%), torso (next 45%) and
// head (last 15%); each part spreads over its own local index.
func meditating(i, n int, rng *rand.Rand) geom.Vec3 {
	fi, fn := float64(i), float64(n)
	baseEnd := fn * 0.4
	torsoEnd := fn * 0.85
	switch {
	case fi >= torsoEnd:
		p := fibonacci(fi-torsoEnd, fn-torsoEnd, 0.4)
		p.Y += 1.2
		return p
	case fi >= baseEnd:
		p := fibonacci(fi-baseEnd, torsoEnd-baseEnd, 0.6)
		p.Y *= 1.5
		return p
	default:
		angle := fi / baseEnd * math.Pi * 2
		r := 1.0 + rng.Float64()*0.2
		return geom.Vec3{
			X: math.Cos(angle) * r,
			Y: -0.8 + (rng.Float64()-0.5)*0.5,
			Z: math.Sin(angle) * r,
		}
	}
}

func fireworks(_, _ int, rng *rand.Rand) geom.Vec3 {
	t := rng.Float64() * math.Pi * 2
	phi := rng.Float64() * math.Pi
	const r = 0.1
	return geom.Vec3{
		X: r * math.Sin(phi) * math.Cos(t),
		Y: r * math.Sin(phi) * math.Sin(t),
		Z: r * math.Cos(phi),
	}
}
