package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/san-kum/kinetic/internal/metrics"
)

// Defaults for the capture cadence and encoding.
const (
	DefaultInterval    = 300 * time.Millisecond
	DefaultWidth       = 320
	DefaultHeight      = 240
	DefaultQuality     = 60
	DefaultMaxInFlight = 2
)

// Sink receives encoded frames.
type Sink interface {
	Connected() bool
	SendFrame(ctx context.Context, jpeg []byte)
}

// LoopConfig configures a Loop. Zero fields take the defaults above.
type LoopConfig struct {
	Interval    time.Duration
	Width       int
	Height      int
	Quality     int
	MaxInFlight int

	// OnError is called from the loop goroutine when the source fails with
	// anything other than ErrNoFrame. It must not block.
	OnError func(error)

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = DefaultQuality
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Loop samples a Source every Interval and forwards frames to a Sink.
type Loop struct {
	src  Source
	sink Sink
	cfg  LoopConfig
	log  *slog.Logger

	slots chan struct{}
	sends sync.WaitGroup
	dst   *image.RGBA
}

// NewLoop builds a loop; it does not start the source.
func NewLoop(src Source, sink Sink, cfg LoopConfig) *Loop {
	cfg = cfg.withDefaults()
	return &Loop{
		src:   src,
		sink:  sink,
		cfg:   cfg,
		log:   cfg.Logger.With("component", "capture"),
		slots: make(chan struct{}, cfg.MaxInFlight),
		dst:   image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
	}
}

// Run ticks until ctx is cancelled. Outstanding sends are not waited for.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	l.log.Debug("capture loop started", "interval", l.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("capture loop stopped")
			return
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs one capture cycle. It is called by Run and must not be called
// concurrently with it.
func (l *Loop) Tick(ctx context.Context) {
	if !l.sink.Connected() {
		l.cfg.Metrics.RecordDrop(metrics.DropDisconnected)
		return
	}

	img, err := l.src.Frame()
	if err != nil {
		if errors.Is(err, ErrNoFrame) {
			l.cfg.Metrics.RecordSkip()
			return
		}
		l.log.Warn("frame", "error", err)
		if l.cfg.OnError != nil {
			l.cfg.OnError(err)
		}
		return
	}

	data, err := l.encode(img)
	if err != nil {
		l.log.Warn("encode frame", "error", err)
		return
	}
	l.cfg.Metrics.RecordCapture(len(data))

	select {
	case l.slots <- struct{}{}:
	default:
		l.cfg.Metrics.RecordDrop(metrics.DropBusy)
		l.log.Debug("dropping frame, sends outstanding", "max", l.cfg.MaxInFlight)
		return
	}
	l.sends.Add(1)
	go func() {
		defer l.sends.Done()
		defer func() { <-l.slots }()
		l.sink.SendFrame(ctx, data)
	}()
}

// Wait blocks until every launched send has returned.
func (l *Loop) Wait() {
	l.sends.Wait()
}

// encode scales img to the configured size and encodes it as JPEG. The
// destination buffer is reused; only the encoded bytes leave the loop.
func (l *Loop) encode(img image.Image) ([]byte, error) {
	draw.ApproxBiLinear.Scale(l.dst, l.dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, l.dst, &jpeg.Options{Quality: l.cfg.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
