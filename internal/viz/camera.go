package viz

import (
	"math"

	"github.com/san-kum/kinetic/internal/geom"
	"github.com/san-kum/kinetic/internal/particles"
)

const (
	// DefaultDistance is the initial camera distance from the origin.
	DefaultDistance = 8.0
	MinDistance     = 4.0
	MaxDistance     = 15.0
	// DefaultFOV is the vertical field of view in degrees.
	DefaultFOV = 45.0
	// AutoRotateSpeed is in orbit-control units: one turn per 60/speed seconds.
	AutoRotateSpeed = 0.5

	zoomStep = 1.1
	near     = 0.1
)

// Camera orbits the origin and projects points onto a dot grid.
type Camera struct {
	Distance         float64
	FOV              float64
	Pitch, Yaw, Roll float64
}

func NewCamera() *Camera {
	return &Camera{Distance: DefaultDistance, FOV: DefaultFOV}
}

func (c *Camera) RotateX(a float64) { c.Pitch += a }
func (c *Camera) RotateY(a float64) { c.Yaw += a }
func (c *Camera) RotateZ(a float64) { c.Roll += a }

// ZoomIn moves the camera closer, never nearer than MinDistance.
func (c *Camera) ZoomIn() { c.Distance = math.Max(MinDistance, c.Distance/zoomStep) }

// ZoomOut moves the camera away, never farther than MaxDistance.
func (c *Camera) ZoomOut() { c.Distance = math.Min(MaxDistance, c.Distance*zoomStep) }

// AutoRotate advances the yaw by dt seconds of auto rotation.
func (c *Camera) AutoRotate(dt float64) {
	c.Yaw += autoRotateRate * dt
}

// 2*pi/60 radians per second per unit of speed.
var autoRotateRate = 2 * math.Pi / 60 * AutoRotateSpeed

// Rotate applies pitch, yaw and roll to p.
func (c *Camera) Rotate(p geom.Vec3) geom.Vec3 {
	cx, sx := math.Cos(c.Pitch), math.Sin(c.Pitch)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	cy, sy := math.Cos(c.Yaw), math.Sin(c.Yaw)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	cz, sz := math.Cos(c.Roll), math.Sin(c.Roll)
	p.X, p.Y = p.X*cz-p.Y*sz, p.X*sz+p.Y*cz
	return p
}

// Focal is the projection scale for a w x h dot grid.
func (c *Camera) Focal(w, h int) float64 {
	minDim := float64(min(w, h))
	return minDim / 2 / math.Tan(c.FOV*math.Pi/360)
}

// Project maps p to dot coordinates on a w x h grid.
// Returns x, y, depth from the camera, and visibility.
func (c *Camera) Project(p geom.Vec3, w, h int) (int, int, float64, bool) {
	rot := c.Rotate(p)
	depth := c.Distance - rot.Z
	if depth <= near {
		return 0, 0, depth, false
	}
	f := c.Focal(w, h)
	sx := int(math.Round(rot.X*f/depth)) + w/2
	sy := int(math.Round(-rot.Y*f/depth)) + h/2
	return sx, sy, depth, sx >= 0 && sx < w && sy >= 0 && sy < h
}

// Render clears canvas and draws one dot per visible transform. Particles
// whose projected size reaches two dots are drawn as a 2x2 block.
func Render(canvas *Canvas, cam *Camera, frame []particles.Transform) int {
	canvas.Clear()
	w, h := canvas.DotWidth(), canvas.DotHeight()
	f := cam.Focal(w, h)
	drawn := 0
	for _, t := range frame {
		x, y, depth, ok := cam.Project(t.Position, w, h)
		if !ok {
			continue
		}
		canvas.Set(x, y)
		if t.Scale*f/depth >= 2 {
			canvas.Set(x+1, y)
			canvas.Set(x, y+1)
			canvas.Set(x+1, y+1)
		}
		drawn++
	}
	return drawn
}
