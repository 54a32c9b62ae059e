package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/kinetic/internal/particles"
	"github.com/san-kum/kinetic/internal/storage"
	"github.com/san-kum/kinetic/internal/viz"
)

const background = "#050505"

// Settle steps anim frames times at fps with a fixed tension and returns
// the resulting render buffer.
func Settle(anim *particles.Animator, tension float64, frames, fps int) []particles.Transform {
	if fps <= 0 {
		fps = 60
	}
	for i := 0; i < frames; i++ {
		anim.Step(float64(i)/float64(fps), tension)
	}
	return anim.Transforms()
}

type dot struct {
	x, y, r, depth float64
}

// FrameSVG draws a particle frame as seen through cam. Far particles are
// drawn first and fade with distance.
func FrameSVG(frame []particles.Transform, cam *viz.Camera, col particles.Color, width, height int) string {
	f := cam.Focal(width, height)
	dots := make([]dot, 0, len(frame))
	for _, t := range frame {
		p := cam.Rotate(t.Position)
		depth := cam.Distance - p.Z
		if depth <= 0.1 {
			continue
		}
		dots = append(dots, dot{
			x:     float64(width)/2 + p.X*f/depth,
			y:     float64(height)/2 - p.Y*f/depth,
			r:     max(0.4, t.Scale*f/depth),
			depth: depth,
		})
	}
	sort.SliceStable(dots, func(i, j int) bool { return dots[i].depth > dots[j].depth })

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="%s">
`, width, height, width, height, background, col.Clamped().Hex()))
	for _, d := range dots {
		if d.x < -d.r || d.y < -d.r || d.x > float64(width)+d.r || d.y > float64(height)+d.r {
			continue
		}
		opacity := max(0.25, min(1, viz.DefaultDistance/d.depth))
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.2f" fill-opacity="%.2f"/>
`, d.x, d.y, d.r, opacity))
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// TimelineSVG draws a tension timeline as a step path over [0, 1].
func TimelineSVG(samples []storage.Sample, width, height int, stroke string) string {
	if len(samples) == 0 {
		return ""
	}
	end := samples[len(samples)-1].Time
	if end <= 0 {
		end = 1
	}
	pad := float64(height) * 0.05
	y := func(v float64) float64 { return pad + (1-v)*(float64(height)-2*pad) }
	x := func(t float64) float64 { return t / end * float64(width) }

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, background, stroke))

	sb.WriteString(fmt.Sprintf("0.0,%.1f", y(samples[0].Tension)))
	prev := samples[0].Tension
	for _, s := range samples[1:] {
		sx := x(s.Time)
		sb.WriteString(fmt.Sprintf(" L%.1f,%.1f L%.1f,%.1f", sx, y(prev), sx, y(s.Tension)))
		prev = s.Tension
	}
	sb.WriteString(fmt.Sprintf(" L%d,%.1f", width, y(prev)))

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
