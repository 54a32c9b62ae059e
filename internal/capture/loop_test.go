package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSink struct {
	connected atomic.Bool
	started   atomic.Int32
	finished  atomic.Int32
	gate      chan struct{}

	mu   sync.Mutex
	last []byte
}

func (f *fakeSink) Connected() bool { return f.connected.Load() }

func (f *fakeSink) SendFrame(ctx context.Context, data []byte) {
	f.started.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.last = data
	f.mu.Unlock()
	f.finished.Add(1)
}

type fakeSource struct {
	img   image.Image
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Start(context.Context, Size) error { return nil }
func (f *fakeSource) Stop() error                       { return nil }
func (f *fakeSource) Frame() (image.Image, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestDisconnectedSinkReceivesNothing(t *testing.T) {
	sink := &fakeSink{}
	loop := NewLoop(&fakeSource{img: testImage(640, 480)}, sink, LoopConfig{})

	for i := 0; i < 10; i++ {
		loop.Tick(context.Background())
	}
	loop.Wait()
	if n := sink.started.Load(); n != 0 {
		t.Fatalf("sink received %d frames while disconnected", n)
	}
}

func TestSkipWhenNoFrame(t *testing.T) {
	sink := &fakeSink{}
	sink.connected.Store(true)
	var reported atomic.Int32
	src := &fakeSource{err: ErrNoFrame}
	loop := NewLoop(src, sink, LoopConfig{OnError: func(error) { reported.Add(1) }})

	loop.Tick(context.Background())
	loop.Tick(context.Background())
	loop.Wait()
	if sink.started.Load() != 0 {
		t.Fatal("sent a frame without one available")
	}
	if src.calls.Load() != 2 {
		t.Fatalf("source sampled %d times, want 2", src.calls.Load())
	}
	if reported.Load() != 0 {
		t.Fatal("ErrNoFrame reported as an error")
	}
}

func TestSourceFailureReported(t *testing.T) {
	sink := &fakeSink{}
	sink.connected.Store(true)
	denied := errors.Join(ErrUnavailable, errors.New("permission denied"))
	var got error
	loop := NewLoop(&fakeSource{err: denied}, sink, LoopConfig{OnError: func(err error) { got = err }})

	loop.Tick(context.Background())
	if !errors.Is(got, ErrUnavailable) {
		t.Fatalf("OnError got %v, want ErrUnavailable", got)
	}
	if sink.started.Load() != 0 {
		t.Fatal("sent a frame after source failure")
	}
}

func TestFrameDownscaledAndEncoded(t *testing.T) {
	sink := &fakeSink{}
	sink.connected.Store(true)
	loop := NewLoop(&fakeSource{img: testImage(640, 480)}, sink, LoopConfig{})

	loop.Tick(context.Background())
	loop.Wait()

	sink.mu.Lock()
	data := sink.last
	sink.mu.Unlock()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("sent frame is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != DefaultWidth || b.Dy() != DefaultHeight {
		t.Fatalf("frame size = %dx%d, want %dx%d", b.Dx(), b.Dy(), DefaultWidth, DefaultHeight)
	}
}

func TestInFlightBound(t *testing.T) {
	sink := &fakeSink{gate: make(chan struct{})}
	sink.connected.Store(true)
	loop := NewLoop(&fakeSource{img: testImage(64, 48)}, sink, LoopConfig{MaxInFlight: 2})

	for i := 0; i < 6; i++ {
		loop.Tick(context.Background())
	}
	deadline := time.Now().Add(2 * time.Second)
	for sink.started.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := sink.started.Load(); n != 2 {
		t.Fatalf("%d sends outstanding, want 2", n)
	}

	close(sink.gate)
	loop.Wait()
	if n := sink.finished.Load(); n != 2 {
		t.Fatalf("%d sends completed, want 2 (extras must be dropped, not queued)", n)
	}

	loop.Tick(context.Background())
	loop.Wait()
	if n := sink.finished.Load(); n != 3 {
		t.Fatalf("%d sends after slots freed, want 3", n)
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	sink := &fakeSink{}
	sink.connected.Store(true)
	src := &fakeSource{img: testImage(32, 24)}
	loop := NewLoop(src, sink, LoopConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for src.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if src.calls.Load() < 3 {
		t.Fatalf("only %d ticks ran", src.calls.Load())
	}
}
