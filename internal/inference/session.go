// Package inference manages the streaming session with the remote vision
// model.
//
// A Session moves through Disconnected, Connecting and Connected. While
// connected, frames from the capture loop are written as realtime media and
// a receive goroutine turns setTension tool calls into tension reports. Any
// error observed by that goroutine returns the session to Disconnected; the
// user has to connect again.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/san-kum/kinetic/internal/metrics"
)

var (
	// ErrConnect wraps any failure to open a stream.
	ErrConnect = errors.New("inference: connect failed")

	// ErrConnectInProgress is returned when Connect races another Connect.
	ErrConnectInProgress = errors.New("inference: connect already in progress")

	// ErrAborted is returned when Disconnect is called while connecting.
	ErrAborted = errors.New("inference: connect aborted by disconnect")
)

// JPEGMimeType is the media type of capture frames.
const JPEGMimeType = "image/jpeg"

// Tool call outcomes recorded in metrics.
const (
	outcomeApplied = "applied"
	outcomeIgnored = "ignored"
	outcomeUnknown = "unknown"
)

// Config configures a Session.
type Config struct {
	Transport Transport
	Model     string

	// OnTension receives every numeric setTension argument, unclamped.
	OnTension func(float64)

	// OnState is called after every state change; err is set when the
	// change was caused by a failure.
	OnState func(State, error)

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Session is the single connection to the inference service.
type Session struct {
	transport Transport
	setup     Setup
	onTension func(float64)
	onState   func(State, error)
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	state  State
	stream Stream
	gen    uint64
	err    error

	// writeMu serializes writes on the stream; the underlying websocket
	// allows one writer at a time.
	writeMu sync.Mutex
}

// NewSession returns a disconnected session.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	onTension := cfg.OnTension
	if onTension == nil {
		onTension = func(float64) {}
	}
	return &Session{
		transport: cfg.Transport,
		setup:     DefaultSetup(cfg.Model),
		onTension: onTension,
		onState:   cfg.OnState,
		logger:    logger.With("component", "inference"),
		metrics:   cfg.Metrics,
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether frames are currently being accepted.
func (s *Session) Connected() bool {
	return s.State() == Connected
}

// Err returns the error that last moved the session to Disconnected, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Connect opens a stream. It is a no-op when already connected. On failure
// the session stays Disconnected and the returned error wraps ErrConnect.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Connected:
		s.mu.Unlock()
		return nil
	case Connecting:
		s.mu.Unlock()
		return ErrConnectInProgress
	}
	s.state = Connecting
	s.err = nil
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.notify(Connecting, nil)

	s.logger.Info("connecting", "model", s.setup.Model)
	stream, err := s.transport.Dial(ctx, s.setup)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		if err == nil {
			_ = stream.Close()
		}
		return ErrAborted
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrConnect, err)
		s.state = Disconnected
		s.err = err
		s.mu.Unlock()
		s.metrics.RecordConnect(err)
		s.logger.Error("connect failed", "error", err)
		s.notify(Disconnected, err)
		return err
	}
	s.state = Connected
	s.stream = stream
	s.mu.Unlock()

	s.metrics.RecordConnect(nil)
	s.logger.Info("connected")
	s.notify(Connected, nil)

	go s.receive(gen, stream)
	return nil
}

// Disconnect closes the current stream, if any, and moves to Disconnected.
// It does not wait for the remote side. Calling it again is a no-op.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return
	}
	stream := s.stream
	s.stream = nil
	s.state = Disconnected
	s.gen++
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			s.logger.Debug("close stream", "error", err)
		}
		s.metrics.RecordDisconnect("closed")
	}
	s.logger.Info("disconnected")
	s.notify(Disconnected, nil)
}

// SendFrame writes one encoded frame as realtime media. It does nothing
// unless connected. Failures are logged and counted, never returned, so one
// bad send neither ends the session nor stops the capture loop.
func (s *Session) SendFrame(ctx context.Context, jpeg []byte) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	stream := s.stream
	connected := s.state == Connected
	s.mu.Unlock()
	if !connected || stream == nil {
		return
	}

	s.writeMu.Lock()
	err := stream.SendMedia(JPEGMimeType, jpeg)
	s.writeMu.Unlock()

	s.metrics.RecordSend(err)
	if err != nil {
		s.logger.Warn("send frame", "error", err, "bytes", len(jpeg))
	}
}

func (s *Session) receive(gen uint64, stream Stream) {
	for {
		msg, err := stream.Receive()
		if err != nil {
			s.end(gen, err)
			return
		}
		if msg.GoAway {
			s.logger.Info("server requested disconnect soon")
		}
		if len(msg.ToolCalls) == 0 {
			continue
		}
		responses := make([]FunctionResponse, 0, len(msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			responses = append(responses, s.handleCall(call))
		}
		s.respond(gen, stream, responses)
	}
}

// handleCall applies one function call and returns its acknowledgment.
func (s *Session) handleCall(call FunctionCall) FunctionResponse {
	resp := FunctionResponse{ID: call.ID, Name: call.Name}
	if call.Name != SetTension {
		s.metrics.RecordToolCall(call.Name, outcomeUnknown)
		s.logger.Debug("unsupported function", "name", call.Name, "id", call.ID)
		resp.Response = map[string]any{"error": "unsupported function"}
		return resp
	}

	resp.Response = map[string]any{"result": "ok"}
	v, ok := Number(call.Args[TensionArg])
	if !ok {
		s.metrics.RecordToolCall(call.Name, outcomeIgnored)
		s.logger.Debug("ignored non-numeric tension", "id", call.ID, "value", call.Args[TensionArg])
		return resp
	}
	s.metrics.RecordToolCall(call.Name, outcomeApplied)
	s.onTension(v)
	return resp
}

func (s *Session) respond(gen uint64, stream Stream, responses []FunctionResponse) {
	s.mu.Lock()
	current := s.gen == gen
	s.mu.Unlock()
	if !current {
		return
	}
	s.writeMu.Lock()
	err := stream.SendToolResponses(responses)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Warn("send tool response", "error", err)
	}
}

// end moves to Disconnected if stream gen is still the current one.
func (s *Session) end(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	stream := s.stream
	s.stream = nil
	s.state = Disconnected
	s.gen++
	cause := "error"
	if errors.Is(err, io.EOF) {
		cause = "eof"
		err = nil
	}
	s.err = err
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	s.metrics.RecordDisconnect(cause)
	if err != nil {
		s.logger.Error("session ended", "error", err)
	} else {
		s.logger.Info("session closed by server")
	}
	s.notify(Disconnected, err)
}

func (s *Session) notify(state State, err error) {
	if s.onState != nil {
		s.onState(state, err)
	}
}

// Number reports whether v is a JSON-compatible number and returns it as a
// float64. Strings, booleans and NaN are rejected.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
