package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img := image.NewGray(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Gray{Y: 200})
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestDirSourceCycles(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 10, 10)
	writePNG(t, filepath.Join(dir, "b.png"), 20, 10)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := &DirSource{Dir: dir}
	if err := src.Start(context.Background(), Size{}); err != nil {
		t.Fatal(err)
	}
	defer src.Stop()

	var widths []int
	for i := 0; i < 3; i++ {
		img, err := src.Frame()
		if err != nil {
			t.Fatal(err)
		}
		widths = append(widths, img.Bounds().Dx())
	}
	if widths[0] != 10 || widths[1] != 20 || widths[2] != 10 {
		t.Fatalf("frame widths = %v, want [10 20 10]", widths)
	}
}

func TestDirSourceUnavailable(t *testing.T) {
	empty := &DirSource{Dir: t.TempDir()}
	if err := empty.Start(context.Background(), Size{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("empty dir: %v, want ErrUnavailable", err)
	}
	missing := &DirSource{Dir: filepath.Join(t.TempDir(), "nope")}
	if err := missing.Start(context.Background(), Size{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("missing dir: %v, want ErrUnavailable", err)
	}
	if _, err := empty.Frame(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Frame before start: %v, want ErrNoFrame", err)
	}
}

func TestBlankSource(t *testing.T) {
	src := &BlankSource{Color: color.White}
	if _, err := src.Frame(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Frame before start: %v, want ErrNoFrame", err)
	}
	if err := src.Start(context.Background(), Size{Width: 64, Height: 48}); err != nil {
		t.Fatal(err)
	}
	img, err := src.Frame()
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("frame is %v, want 64x48", b)
	}
	if r, _, _, _ := img.At(10, 10).RGBA(); r != 0xffff {
		t.Errorf("pixel red = %#x, want white", r)
	}
	src.Stop()
	if _, err := src.Frame(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Frame after stop: %v, want ErrNoFrame", err)
	}
}

func waitFrame(t *testing.T, src *BrowserSource, want func(image.Image, error) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		img, err := src.Frame()
		if want(img, err) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out; last Frame() = %v, %v", img, err)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestBrowserSource(t *testing.T) {
	src := &BrowserSource{Addr: "127.0.0.1:0"}
	if err := src.Start(context.Background(), Size{Width: 640, Height: 480}); err != nil {
		t.Fatal(err)
	}
	defer src.Stop()

	if _, err := src.Frame(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Frame before any upload = %v, want ErrNoFrame", err)
	}

	resp, err := http.Get(src.URL())
	if err != nil {
		t.Fatal(err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(page), "getUserMedia") || !strings.Contains(string(page), "640") {
		t.Fatalf("unexpected capture page:\n%s", page)
	}

	wsURL := "ws://" + strings.TrimPrefix(strings.TrimSuffix(src.URL(), "/"), "http://") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(64, 48), nil); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	waitFrame(t, src, func(img image.Image, err error) bool {
		return err == nil && img.Bounds().Dx() == 64
	})

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","message":"NotAllowedError"}`)); err != nil {
		t.Fatal(err)
	}
	waitFrame(t, src, func(_ image.Image, err error) bool {
		return errors.Is(err, ErrUnavailable)
	})
}

func TestBrowserSourceListenFailure(t *testing.T) {
	first := &BrowserSource{Addr: "127.0.0.1:0"}
	if err := first.Start(context.Background(), Size{}); err != nil {
		t.Fatal(err)
	}
	defer first.Stop()

	addr := strings.TrimSuffix(strings.TrimPrefix(first.URL(), "http://"), "/")
	second := &BrowserSource{Addr: addr}
	if err := second.Start(context.Background(), Size{}); !errors.Is(err, ErrUnavailable) {
		second.Stop()
		t.Fatalf("second listener on %s: %v, want ErrUnavailable", addr, err)
	}
}
