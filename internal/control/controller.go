package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/san-kum/kinetic/internal/analysis"
	"github.com/san-kum/kinetic/internal/capture"
	"github.com/san-kum/kinetic/internal/inference"
	"github.com/san-kum/kinetic/internal/metrics"
	"github.com/san-kum/kinetic/internal/particles"
	"github.com/san-kum/kinetic/internal/shape"
	"github.com/san-kum/kinetic/internal/storage"
	"github.com/san-kum/kinetic/internal/tension"
)

// Level classifies a Notice.
type Level int

const (
	Info Level = iota
	Warning
	Failure
)

// Notice is a user-facing message about the connection.
type Notice struct {
	Level Level
	Text  string
}

// Options configures a Controller.
type Options struct {
	Source     capture.Source
	SourceSize capture.Size
	Transport  inference.Transport
	Model      string
	Animator   *particles.Animator
	Loop       capture.LoopConfig

	// Store, when set, records every accepted tension report.
	Store      *storage.Store
	SourceName string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Controller starts and stops a live session.
type Controller struct {
	opts     Options
	log      *slog.Logger
	animator *particles.Animator
	tension  *tension.Cell
	session  *inference.Session
	notices  chan Notice

	// mu serializes Start, Stop and failure handling; running is also
	// readable without it so the UI never waits on a connect.
	mu       sync.Mutex
	running  atomic.Bool
	run      uint64
	cancel   context.CancelFunc
	loopDone chan struct{}

	recMu    sync.Mutex
	recorder *storage.Recorder
}

// New builds a stopped controller. A nil Animator gets the default
// particle set.
func New(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	opts.Loop.Logger = log
	opts.Loop.Metrics = opts.Metrics
	anim := opts.Animator
	if anim == nil {
		anim = particles.New(shape.DefaultCount, shape.Sphere, particles.MustParseColor(particles.DefaultColor), nil)
	}

	c := &Controller{
		opts:     opts,
		log:      log.With("component", "control"),
		animator: anim,
		tension:  tension.NewCell(tension.Default),
		notices:  make(chan Notice, 16),
	}
	c.session = inference.NewSession(inference.Config{
		Transport: opts.Transport,
		Model:     opts.Model,
		OnTension: c.report,
		OnState:   c.sessionState,
		Logger:    log,
		Metrics:   opts.Metrics,
	})
	return c
}

// Animator is the particle set driven by this controller.
func (c *Controller) Animator() *particles.Animator { return c.animator }

// Tension is the latest clamped tension.
func (c *Controller) Tension() float64 { return c.tension.Load() }

// State is the inference connection state.
func (c *Controller) State() inference.State { return c.session.State() }

// Running reports whether Start succeeded and Stop has not been called.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// Notices delivers connection notices. Notices are dropped if nobody reads.
func (c *Controller) Notices() <-chan Notice { return c.notices }

// SetTemplate switches the target shape.
func (c *Controller) SetTemplate(t shape.Template) {
	c.animator.SetTemplate(t)
	c.log.Debug("template", "template", t.String())
}

// SetColor switches the target color.
func (c *Controller) SetColor(col particles.Color) {
	c.animator.SetColor(col)
}

// RunID is the id of the run being recorded, if any.
func (c *Controller) RunID() string {
	c.recMu.Lock()
	defer c.recMu.Unlock()
	if c.recorder == nil {
		return ""
	}
	return c.recorder.ID()
}

// Start acquires the camera, connects the session and starts the capture
// loop. Any failure releases what was acquired and leaves the controller
// stopped. Starting a running controller is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() {
		return nil
	}

	if err := c.opts.Source.Start(ctx, c.opts.SourceSize); err != nil {
		c.notify(Failure, "camera unavailable: "+err.Error())
		return err
	}
	if err := c.session.Connect(ctx); err != nil {
		if serr := c.opts.Source.Stop(); serr != nil {
			c.log.Warn("release source", "error", serr)
		}
		return err
	}

	c.startRecording()

	c.run++
	run := c.run
	once := &sync.Once{}
	cfg := c.opts.Loop
	cfg.OnError = func(err error) {
		once.Do(func() { go c.fail(run, err) })
	}
	loop := capture.NewLoop(c.opts.Source, c.session, cfg)

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(loopCtx)
	}()

	c.cancel = cancel
	c.loopDone = done
	c.running.Store(true)
	c.log.Info("started")
	return nil
}

// Stop cancels the capture loop, disconnects and releases the camera, in
// that order. It waits for the loop goroutine but not for sends in flight.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	if !c.running.Load() {
		return nil
	}

	c.cancel()
	<-c.loopDone
	c.session.Disconnect()
	err := c.opts.Source.Stop()
	if err != nil {
		c.log.Warn("release source", "error", err)
	}

	c.stopRecording()
	c.running.Store(false)
	c.log.Info("stopped")
	return err
}

// Toggle starts a stopped controller and stops a running one.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.Running() {
		return c.Stop()
	}
	return c.Start(ctx)
}

// fail handles a source failure reported by run's capture loop.
func (c *Controller) fail(run uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running.Load() || c.run != run {
		return
	}
	msg := err.Error()
	if errors.Is(err, capture.ErrUnavailable) {
		msg = "camera unavailable: " + msg
	}
	c.notify(Failure, msg)
	_ = c.stopLocked()
}

func (c *Controller) report(raw float64) {
	if !c.tension.Report(raw) {
		return
	}
	v := c.tension.Load()
	c.opts.Metrics.RecordTension(v)

	c.recMu.Lock()
	defer c.recMu.Unlock()
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Add(v); err != nil {
		c.log.Warn("record tension", "error", err)
	}
}

func (c *Controller) sessionState(s inference.State, err error) {
	switch {
	case s == inference.Disconnected && err != nil:
		c.notify(Failure, err.Error())
	case s == inference.Connected:
		c.notify(Info, "connected")
	}
}

func (c *Controller) startRecording() {
	if c.opts.Store == nil {
		return
	}
	rec, err := c.opts.Store.Record(storage.RunMetadata{
		Model:    c.opts.Model,
		Source:   c.opts.SourceName,
		Template: c.animator.Template().String(),
		Color:    c.animator.TargetColor().Hex(),
	})
	if err != nil {
		c.log.Warn("start recording", "error", err)
		return
	}
	c.recMu.Lock()
	c.recorder = rec
	c.recMu.Unlock()
	c.log.Info("recording", "run", rec.ID())
}

func (c *Controller) stopRecording() {
	c.recMu.Lock()
	rec := c.recorder
	c.recorder = nil
	c.recMu.Unlock()
	if rec == nil {
		return
	}

	samples, err := c.opts.Store.LoadTension(rec.ID())
	var stats map[string]float64
	if err == nil {
		stats = analysis.Summarize(samples)
	}
	if err := rec.Close(stats); err != nil {
		c.log.Warn("finish recording", "error", err)
		return
	}
	c.notify(Info, fmt.Sprintf("saved run %s", rec.ID()))
}

func (c *Controller) notify(level Level, text string) {
	select {
	case c.notices <- Notice{Level: level, Text: text}:
	default:
	}
}
