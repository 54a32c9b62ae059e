package viz

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"time"

	"github.com/san-kum/kinetic/internal/particles"
)

const (
	gifFPS       = 15
	maxGIFFrames = 900
	// dot size in pixels of a braille dot in the recording
	dotPx = 3
)

var (
	ErrEmptyRecording = errors.New("viz: nothing recorded")

	background = color.RGBA{0x05, 0x05, 0x05, 0xff}
)

// gifRecorder collects canvas snapshots at roughly gifFPS.
type gifRecorder struct {
	every  int
	delay  int
	ticks  int
	frames []*image.Paletted
}

func newGIFRecorder(fps int) *gifRecorder {
	every := max(1, fps/gifFPS)
	return &gifRecorder{
		every: every,
		delay: max(1, every*100/fps),
	}
}

func (r *gifRecorder) Len() int { return len(r.frames) }

// Capture rasterizes the canvas in the particle color, on every Nth call.
func (r *gifRecorder) Capture(c *Canvas, col particles.Color) {
	r.ticks++
	if (r.ticks-1)%r.every != 0 || len(r.frames) >= maxGIFFrames {
		return
	}
	rr, gg, bb := col.Clamped().RGB255()
	pal := color.Palette{background, color.RGBA{rr, gg, bb, 0xff}}
	w, h := c.DotWidth(), c.DotHeight()
	img := image.NewPaletted(image.Rect(0, 0, w*dotPx, h*dotPx), pal)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !c.IsSet(x, y) {
				continue
			}
			for py := 0; py < dotPx-1; py++ {
				for px := 0; px < dotPx-1; px++ {
					img.SetColorIndex(x*dotPx+px, y*dotPx+py, 1)
				}
			}
		}
	}
	r.frames = append(r.frames, img)
}

// Save writes the recording to dir and returns its path.
func (r *gifRecorder) Save(dir string, now time.Time) (string, error) {
	if len(r.frames) == 0 {
		return "", ErrEmptyRecording
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	anim := gif.GIF{LoopCount: 0}
	for _, f := range r.frames {
		anim.Image = append(anim.Image, f)
		anim.Delay = append(anim.Delay, r.delay)
		// the canvas may have been resized while recording
		b := f.Bounds().Max
		anim.Config.Width = max(anim.Config.Width, b.X)
		anim.Config.Height = max(anim.Config.Height, b.Y)
	}
	path := filepath.Join(dir, fmt.Sprintf("kinetic-%s.gif", now.Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := gif.EncodeAll(f, &anim); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
