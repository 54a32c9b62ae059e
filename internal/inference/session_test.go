package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

type fakeStream struct {
	msgs chan Message
	errs chan error
	acks chan []FunctionResponse

	mu        sync.Mutex
	media     [][]byte
	mediaType string
	sendErr   error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		msgs:   make(chan Message, 8),
		errs:   make(chan error, 1),
		acks:   make(chan []FunctionResponse, 8),
		closed: make(chan struct{}),
	}
}

func (f *fakeStream) SendMedia(mimeType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mediaType = mimeType
	f.media = append(f.media, data)
	return nil
}

func (f *fakeStream) SendToolResponses(responses []FunctionResponse) error {
	f.acks <- responses
	return nil
}

func (f *fakeStream) Receive() (Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case err := <-f.errs:
		return Message{}, err
	case <-f.closed:
		return Message{}, io.EOF
	}
}

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeStream) mediaCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.media)
}

func (f *fakeStream) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type fakeTransport struct {
	stream *fakeStream
	err    error
	gate   chan struct{}

	mu    sync.Mutex
	dials int
	setup Setup
}

func (f *fakeTransport) Dial(ctx context.Context, setup Setup) (Stream, error) {
	f.mu.Lock()
	f.dials++
	f.setup = setup
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func (f *fakeTransport) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

type tensionLog struct {
	mu     sync.Mutex
	values []float64
}

func (l *tensionLog) report(v float64) {
	l.mu.Lock()
	l.values = append(l.values, v)
	l.mu.Unlock()
}

func (l *tensionLog) snapshot() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]float64(nil), l.values...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func connected(t *testing.T) (*Session, *fakeStream, *tensionLog) {
	t.Helper()
	stream := newFakeStream()
	log := &tensionLog{}
	s := NewSession(Config{Transport: &fakeTransport{stream: stream}, OnTension: log.report})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s, stream, log
}

func setTensionCall(id string, v any) Message {
	return Message{ToolCalls: []FunctionCall{{ID: id, Name: SetTension, Args: map[string]any{TensionArg: v}}}}
}

func TestNumericTensionForwardedAndAcknowledgedOnce(t *testing.T) {
	s, stream, log := connected(t)
	defer s.Disconnect()

	stream.msgs <- setTensionCall("call-7", 0.7)

	select {
	case acks := <-stream.acks:
		if len(acks) != 1 {
			t.Fatalf("got %d responses, want 1", len(acks))
		}
		ack := acks[0]
		if ack.ID != "call-7" || ack.Name != SetTension {
			t.Errorf("ack = %+v, want id call-7 name %s", ack, SetTension)
		}
		if ack.Response["result"] != "ok" {
			t.Errorf("ack response = %v, want result ok", ack.Response)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no acknowledgment")
	}

	got := log.snapshot()
	if len(got) != 1 || got[0] != 0.7 {
		t.Fatalf("tension reports = %v, want [0.7]", got)
	}

	select {
	case extra := <-stream.acks:
		t.Fatalf("unexpected second acknowledgment %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStringTensionIgnored(t *testing.T) {
	s, stream, log := connected(t)
	defer s.Disconnect()

	stream.msgs <- setTensionCall("call-1", "0.7")
	select {
	case acks := <-stream.acks:
		if len(acks) != 1 || acks[0].ID != "call-1" {
			t.Fatalf("acks = %+v", acks)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no acknowledgment")
	}
	if got := log.snapshot(); len(got) != 0 {
		t.Fatalf("string tension reported: %v", got)
	}
}

func TestUnknownFunctionNotForwarded(t *testing.T) {
	s, stream, log := connected(t)
	defer s.Disconnect()

	stream.msgs <- Message{ToolCalls: []FunctionCall{
		{ID: "a", Name: "setColor", Args: map[string]any{"tension": 0.1}},
		{ID: "b", Name: SetTension, Args: map[string]any{TensionArg: 0.3}},
	}}
	acks := <-stream.acks
	if len(acks) != 2 {
		t.Fatalf("got %d responses, want 2", len(acks))
	}
	if acks[0].ID != "a" || acks[0].Response["result"] == "ok" {
		t.Errorf("unknown function ack = %+v", acks[0])
	}
	if got := log.snapshot(); len(got) != 1 || got[0] != 0.3 {
		t.Fatalf("tension reports = %v, want [0.3]", got)
	}
}

func TestStateMachine(t *testing.T) {
	stream := newFakeStream()
	tr := &fakeTransport{stream: stream}
	var states []State
	var mu sync.Mutex
	s := NewSession(Config{Transport: tr, OnState: func(st State, _ error) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	}})

	if s.State() != Disconnected {
		t.Fatalf("initial state = %s", s.State())
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !s.Connected() {
		t.Fatalf("state = %s, want connected", s.State())
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if tr.dialCount() != 1 {
		t.Fatalf("dials = %d, want 1", tr.dialCount())
	}
	if tr.setup.Model != DefaultModel || len(tr.setup.Functions) != 1 || tr.setup.Functions[0].Name != SetTension {
		t.Errorf("setup = %+v", tr.setup)
	}
	if !tr.setup.Functions[0].Params[TensionArg].Required {
		t.Error("tension parameter must be required")
	}

	s.Disconnect()
	s.Disconnect()
	if s.State() != Disconnected {
		t.Fatalf("state = %s after disconnect", s.State())
	}
	if !stream.isClosed() {
		t.Error("stream not closed on disconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{Connecting, Connected, Disconnected}
	if len(states) != len(want) {
		t.Fatalf("transitions = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", states, want)
		}
	}
}

func TestConnectFailure(t *testing.T) {
	dialErr := errors.New("handshake refused")
	s := NewSession(Config{Transport: &fakeTransport{err: dialErr}})

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrConnect) || !errors.Is(err, dialErr) {
		t.Fatalf("Connect error = %v, want ErrConnect wrapping dial error", err)
	}
	if s.State() != Disconnected {
		t.Fatalf("state = %s, want disconnected", s.State())
	}
}

func TestConnectInProgress(t *testing.T) {
	tr := &fakeTransport{stream: newFakeStream(), gate: make(chan struct{})}
	s := NewSession(Config{Transport: tr})

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background()) }()
	waitFor(t, "connecting", func() bool { return s.State() == Connecting })

	if err := s.Connect(context.Background()); !errors.Is(err, ErrConnectInProgress) {
		t.Fatalf("concurrent Connect = %v, want ErrConnectInProgress", err)
	}
	close(tr.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if !s.Connected() {
		t.Fatalf("state = %s", s.State())
	}
	s.Disconnect()
}

func TestDisconnectWhileConnecting(t *testing.T) {
	stream := newFakeStream()
	tr := &fakeTransport{stream: stream, gate: make(chan struct{})}
	s := NewSession(Config{Transport: tr})

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background()) }()
	waitFor(t, "connecting", func() bool { return s.State() == Connecting })

	s.Disconnect()
	close(tr.gate)
	if err := <-done; !errors.Is(err, ErrAborted) {
		t.Fatalf("Connect = %v, want ErrAborted", err)
	}
	if s.State() != Disconnected {
		t.Fatalf("state = %s", s.State())
	}
	if !stream.isClosed() {
		t.Error("late stream not closed")
	}
}

func TestSendFrameNoopWhenDisconnected(t *testing.T) {
	stream := newFakeStream()
	s := NewSession(Config{Transport: &fakeTransport{stream: stream}})

	for i := 0; i < 5; i++ {
		s.SendFrame(context.Background(), []byte{0xff, 0xd8})
	}
	if n := stream.mediaCount(); n != 0 {
		t.Fatalf("sent %d frames while disconnected", n)
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.SendFrame(context.Background(), []byte{0xff, 0xd8})
	if n := stream.mediaCount(); n != 1 {
		t.Fatalf("sent %d frames, want 1", n)
	}
	if stream.mediaType != JPEGMimeType {
		t.Errorf("mime type = %q", stream.mediaType)
	}

	s.Disconnect()
	s.SendFrame(context.Background(), []byte{0xff, 0xd8})
	if n := stream.mediaCount(); n != 1 {
		t.Fatalf("sent %d frames after disconnect, want 1", n)
	}
}

func TestSendErrorKeepsSession(t *testing.T) {
	s, stream, _ := connected(t)
	defer s.Disconnect()

	stream.mu.Lock()
	stream.sendErr = errors.New("write: broken pipe")
	stream.mu.Unlock()

	s.SendFrame(context.Background(), []byte{1})
	if !s.Connected() {
		t.Fatal("send failure tore down the session")
	}
}

func TestMidSessionErrorDisconnects(t *testing.T) {
	s, stream, _ := connected(t)

	boom := errors.New("connection reset")
	stream.errs <- boom
	waitFor(t, "disconnect", func() bool { return s.State() == Disconnected })

	if !errors.Is(s.Err(), boom) {
		t.Errorf("Err() = %v, want %v", s.Err(), boom)
	}
	s.SendFrame(context.Background(), []byte{1})
	if n := stream.mediaCount(); n != 0 {
		t.Fatalf("sent %d frames after stream error", n)
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{0.7, 0.7, true},
		{float32(0.5), 0.5, true},
		{1, 1, true},
		{int64(0), 0, true},
		{json.Number("0.25"), 0.25, true},
		{"0.7", 0, false},
		{true, 0, false},
		{nil, 0, false},
		{json.Number("abc"), 0, false},
	}
	for _, tt := range tests {
		got, ok := Number(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Number(%#v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestReplayDrivesSession(t *testing.T) {
	log := &tensionLog{}
	tr := &ReplayTransport{
		Cues: []Cue{
			{Offset: 0, Tension: 0.1},
			{Offset: 5 * time.Millisecond, Tension: 0.6},
			{Offset: 10 * time.Millisecond, Tension: 0.9},
		},
	}
	s := NewSession(Config{Transport: tr, OnTension: log.report})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "replay end", func() bool { return s.State() == Disconnected })

	got := log.snapshot()
	want := []float64{0.1, 0.6, 0.9}
	if len(got) != len(want) {
		t.Fatalf("reports = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reports = %v, want %v", got, want)
		}
	}
	if s.Err() != nil {
		t.Errorf("clean replay end reported error %v", s.Err())
	}
}

func TestReplayEmptyTimeline(t *testing.T) {
	s := NewSession(Config{Transport: &ReplayTransport{}})
	if err := s.Connect(context.Background()); !errors.Is(err, ErrEmptyTimeline) {
		t.Fatalf("Connect = %v, want ErrEmptyTimeline", err)
	}
}

func TestReplayLoopSingleCueWaitsBetweenRounds(t *testing.T) {
	log := &tensionLog{}
	tr := &ReplayTransport{Cues: []Cue{{Offset: 0, Tension: 0.3}}, Loop: true}
	s := NewSession(Config{Transport: tr, OnTension: log.report})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(120 * time.Millisecond)
	s.Disconnect()

	// rounds start at 0, 50ms and 100ms
	got := log.snapshot()
	if len(got) < 2 || len(got) > 5 {
		t.Fatalf("reports in 120ms = %d, want 2..5", len(got))
	}
	for _, v := range got {
		if v != 0.3 {
			t.Fatalf("reports = %v, want only 0.3", got)
		}
	}
}

func TestReplayLoopHoldsLastCue(t *testing.T) {
	tr := &ReplayTransport{
		Cues: []Cue{
			{Offset: 0, Tension: 0.2},
			{Offset: 40 * time.Millisecond, Tension: 0.8},
		},
		Loop: true,
	}
	stream, err := tr.Dial(context.Background(), Setup{})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	start := time.Now()
	var last Message
	for range 3 {
		if last, err = stream.Receive(); err != nil {
			t.Fatal(err)
		}
	}
	elapsed := time.Since(start)

	// the second round begins one cue spacing after the last cue
	if elapsed < 75*time.Millisecond {
		t.Errorf("second round started after %v, want >= 80ms", elapsed)
	}
	call := last.ToolCalls[0]
	if call.ID != "replay-1-0" || call.Args[TensionArg] != 0.2 {
		t.Errorf("third call = %+v, want replay-1-0 with tension 0.2", call)
	}
}

func TestLoopPeriod(t *testing.T) {
	ms := time.Millisecond
	tests := []struct {
		name  string
		cues  []Cue
		speed float64
		want  time.Duration
	}{
		{"single cue", []Cue{{Offset: 0}}, 1, minLoopGap},
		{"even spacing", []Cue{{Offset: 0}, {Offset: 100 * ms}, {Offset: 200 * ms}}, 1, 300 * ms},
		{"median spacing", []Cue{{Offset: 0}, {Offset: 60 * ms}, {Offset: 120 * ms}, {Offset: 1000 * ms}}, 1, 1060 * ms},
		{"speed scales", []Cue{{Offset: 0}, {Offset: 200 * ms}}, 2, 200 * ms},
		{"gap floor after speed", []Cue{{Offset: 0}, {Offset: 100 * ms}}, 10, 10*ms + minLoopGap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loopPeriod(tt.cues, tt.speed); got != tt.want {
				t.Errorf("loopPeriod = %v, want %v", got, tt.want)
			}
		})
	}
}
