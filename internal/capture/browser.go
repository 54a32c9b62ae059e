package capture

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"image"
	"image/jpeg"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

//go:embed page.html
var pageHTML string

var pageTmpl = template.Must(template.New("page").Parse(pageHTML))

// DefaultSourceSize is the resolution requested from the camera.
var DefaultSourceSize = Size{Width: 640, Height: 480}

// pagePeriod is how often the page pushes a frame; faster than the capture
// interval so the latest frame is always recent.
const pagePeriod = 100 * time.Millisecond

// BrowserSource serves a page that opens the webcam with getUserMedia and
// streams JPEG frames back over a websocket. Only the newest frame is kept.
type BrowserSource struct {
	// Addr is the listen address, e.g. "127.0.0.1:8089".
	Addr   string
	Logger *slog.Logger

	upgrader websocket.Upgrader
	ln       net.Listener
	srv      *http.Server
	size     Size

	mu     sync.Mutex
	latest []byte
	err    error
	peers  map[*websocket.Conn]struct{}
}

type pageMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Start listens on Addr and serves the capture page. It returns once the
// listener is up; frames arrive when a browser opens the page.
func (b *BrowserSource) Start(ctx context.Context, size Size) error {
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSourceSize
	}
	if b.Logger == nil {
		b.Logger = slog.Default()
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", b.Addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", b.handlePage)
	mux.HandleFunc("/ws", b.handleWS)

	b.mu.Lock()
	b.size = size
	b.ln = ln
	b.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	b.latest = nil
	b.err = nil
	b.peers = make(map[*websocket.Conn]struct{})
	srv := b.srv
	b.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.Logger.Error("capture page server", "error", err)
		}
	}()
	b.Logger.Info("open the camera page in a browser", "url", b.URL())
	return nil
}

// URL is the address of the capture page.
func (b *BrowserSource) URL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ln == nil {
		return ""
	}
	return "http://" + b.ln.Addr().String() + "/"
}

// Frame decodes the newest frame.
func (b *BrowserSource) Frame() (image.Image, error) {
	b.mu.Lock()
	data, err := b.latest, b.err
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNoFrame
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	return img, nil
}

// Stop closes the server and every open page connection.
func (b *BrowserSource) Stop() error {
	b.mu.Lock()
	srv := b.srv
	peers := b.peers
	b.srv, b.ln, b.peers, b.latest = nil, nil, nil, nil
	b.mu.Unlock()
	if srv == nil {
		return nil
	}
	for c := range peers {
		_ = c.Close()
	}
	return srv.Close()
}

func (b *BrowserSource) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	b.mu.Lock()
	size := b.size
	b.mu.Unlock()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := pageTmpl.Execute(w, struct {
		Width, Height int
		PeriodMs      int64
	}{size.Width, size.Height, pagePeriod.Milliseconds()})
	if err != nil {
		b.Logger.Warn("render capture page", "error", err)
	}
}

func (b *BrowserSource) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.Logger.Warn("websocket upgrade", "error", err)
		return
	}
	b.mu.Lock()
	if b.peers == nil {
		b.mu.Unlock()
		_ = conn.Close()
		return
	}
	b.peers[conn] = struct{}{}
	b.mu.Unlock()
	b.Logger.Info("camera page connected", "remote", r.RemoteAddr)

	defer func() {
		b.mu.Lock()
		delete(b.peers, conn)
		b.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.Logger.Debug("camera page read", "error", err)
			}
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			b.mu.Lock()
			b.latest = data
			b.mu.Unlock()
		case websocket.TextMessage:
			var msg pageMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg.Type == "error" {
				b.Logger.Error("camera page error", "message", msg.Message)
				b.mu.Lock()
				b.err = fmt.Errorf("%w: %s", ErrUnavailable, msg.Message)
				b.mu.Unlock()
			}
		}
	}
}
