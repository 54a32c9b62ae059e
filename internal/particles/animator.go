// Package particles advances the particle field one display frame at a time.
//
// Each frame every particle's current position moves a fixed fraction of the
// way toward a frame target derived from its template target, the current
// tension and the elapsed time. The result is written into a transform buffer
// that the rendering backend reads after Step returns.
//
// # Thread Safety
//
// Step, SetTemplate, SetColor and the accessors may be called from different
// goroutines. Template targets are generated outside the lock and swapped in
// whole, so a frame never sees a partially built shape.
package particles

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/san-kum/kinetic/internal/geom"
	"github.com/san-kum/kinetic/internal/shape"
	"github.com/san-kum/kinetic/internal/tension"
)

const (
	// BlendFactor is the per-frame fraction of the distance to the frame target.
	BlendFactor = 0.08
	// ColorBlend is the per-frame fraction of the distance to the target color.
	ColorBlend = 0.1
	// BreathAmplitude is the x/y breathing offset at tension 0.
	BreathAmplitude = 0.05
	// PhaseStep is the per-index phase offset of the breathing motion.
	PhaseStep = 0.1

	minChunk   = 1024
	maxWorkers = 4
)

// Transform is one render-buffer slot: position plus uniform scale.
type Transform struct {
	Position geom.Vec3
	Scale    float64
}

// Animator owns the particle set.
type Animator struct {
	mu          sync.Mutex
	template    shape.Template
	targets     []geom.Vec3
	current     []geom.Vec3
	buf         []Transform
	color       Color
	targetColor Color

	genMu sync.Mutex
	rng   *rand.Rand
}

// New creates count particles at the origin heading for template t. A nil
// rng is replaced by a time-seeded source.
func New(count int, t shape.Template, c Color, rng *rand.Rand) *Animator {
	if count < 0 {
		count = 0
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	a := &Animator{
		template:    t,
		current:     make([]geom.Vec3, count),
		buf:         make([]Transform, count),
		color:       c,
		targetColor: c,
		rng:         rng,
	}
	a.targets = a.generate(t, count)
	return a
}

func (a *Animator) generate(t shape.Template, n int) []geom.Vec3 {
	a.genMu.Lock()
	defer a.genMu.Unlock()
	return shape.Generate(t, n, a.rng)
}

// Count returns the number of particles.
func (a *Animator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.current)
}

// SetTemplate recomputes every target for t and swaps them in at once.
// Current positions are left alone so the field morphs instead of jumping.
func (a *Animator) SetTemplate(t shape.Template) {
	n := a.Count()
	targets := a.generate(t, n)

	a.mu.Lock()
	a.template = t
	a.targets = targets
	a.mu.Unlock()
}

// Template returns the active template.
func (a *Animator) Template() shape.Template {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.template
}

// SetColor changes the color the field blends toward.
func (a *Animator) SetColor(c Color) {
	a.mu.Lock()
	a.targetColor = c
	a.mu.Unlock()
}

// Color returns the currently displayed (blended) color.
func (a *Animator) Color() Color {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.color
}

// TargetColor returns the selected color.
func (a *Animator) TargetColor() Color {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.targetColor
}

// Expansion maps tension to the target scale: 1.8 at rest, 0.2 when tense.
func Expansion(t float64) float64 {
	return 1.8 - t*1.6
}

// Explosion is the firework outward factor: 4 at rest, 0 when tense.
func Explosion(t float64) float64 {
	return (1 - t) * 4
}

// RenderScale is the per-particle render size for tension t.
func RenderScale(t float64) float64 {
	return (1.5 - t) * 0.05
}

// FrameTarget returns where particle i is heading this frame.
func (a *Animator) FrameTarget(i int, elapsed, t float64) geom.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.targets) {
		return geom.Vec3{}
	}
	return frameTarget(a.template, a.targets[i], i, elapsed, tension.Clamp(t))
}

func frameTarget(tmpl shape.Template, target geom.Vec3, i int, elapsed, t float64) geom.Vec3 {
	if tmpl == shape.Fireworks {
		return target.Scale(1 + Explosion(t)*5)
	}
	ft := target.Scale(Expansion(t))
	phase := elapsed + float64(i)*PhaseStep
	amp := BreathAmplitude * (1 - t)
	ft.X += math.Sin(phase) * amp
	ft.Y += math.Cos(phase) * amp
	return ft
}

// Step advances every particle one frame. elapsed is the visualization time
// in seconds; t is the latest tension and is clamped before use.
func (a *Animator) Step(elapsed, t float64) {
	t = tension.Clamp(t)

	a.mu.Lock()
	defer a.mu.Unlock()

	tmpl, targets, current, buf := a.template, a.targets, a.current, a.buf
	scale := RenderScale(t)

	parallelFor(len(current), minChunk, maxWorkers, func(start, end int) {
		for i := start; i < end; i++ {
			ft := frameTarget(tmpl, targets[i], i, elapsed, t)
			current[i] = current[i].Lerp(ft, BlendFactor)
			buf[i] = Transform{Position: current[i], Scale: scale}
		}
	})

	a.color = a.color.Lerp(a.targetColor, ColorBlend)
}

// Transforms returns the render buffer written by the last Step. The slice is
// reused across frames; callers must not keep it past the next Step.
func (a *Animator) Transforms() []Transform {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf
}

// Positions returns a copy of the current positions.
func (a *Animator) Positions() []geom.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]geom.Vec3, len(a.current))
	copy(out, a.current)
	return out
}

// Targets returns a copy of the template targets.
func (a *Animator) Targets() []geom.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]geom.Vec3, len(a.targets))
	copy(out, a.targets)
	return out
}
