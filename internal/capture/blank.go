package capture

import (
	"context"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
)

// BlankSource yields a uniform frame. It keeps the capture loop and the
// session busy when the tension comes from somewhere other than a camera,
// such as a replayed timeline.
type BlankSource struct {
	Color color.Color

	mu    sync.Mutex
	frame *image.Uniform
	size  Size
}

func (b *BlankSource) Start(ctx context.Context, size Size) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := b.Color
	if c == nil {
		c = color.Black
	}
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSourceSize
	}
	b.mu.Lock()
	b.frame = image.NewUniform(c)
	b.size = size
	b.mu.Unlock()
	return nil
}

// Frame returns a frame of the size passed to Start, or ErrNoFrame when the
// source is stopped.
func (b *BlankSource) Frame() (image.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil {
		return nil, ErrNoFrame
	}
	img := image.NewRGBA(image.Rect(0, 0, b.size.Width, b.size.Height))
	draw.Draw(img, img.Bounds(), b.frame, image.Point{}, draw.Src)
	return img, nil
}

func (b *BlankSource) Stop() error {
	b.mu.Lock()
	b.frame = nil
	b.mu.Unlock()
	return nil
}
