package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// ErrEmptyTimeline is returned when dialing a replay with no cues.
var ErrEmptyTimeline = errors.New("inference: empty replay timeline")

// minLoopGap is the shortest pause between the last cue of a round and the
// first cue of the next one.
const minLoopGap = 50 * time.Millisecond

// Cue is one recorded tension report at an offset from session start.
type Cue struct {
	Offset  time.Duration
	Tension float64
}

// ReplayTransport plays a recorded tension timeline back as setTension tool
// calls, so the whole control loop can run without a model. Frames sent to
// the stream are counted and discarded.
type ReplayTransport struct {
	Cues []Cue
	// Speed multiplies playback rate; zero means real time.
	Speed float64
	// Loop restarts the timeline instead of ending the stream. The next
	// round starts one median cue spacing after the last cue.
	Loop bool
}

// Dial starts playback immediately.
func (t *ReplayTransport) Dial(ctx context.Context, setup Setup) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.Cues) == 0 {
		return nil, ErrEmptyTimeline
	}
	speed := t.Speed
	if speed <= 0 {
		speed = 1
	}
	return &replayStream{
		cues:   t.Cues,
		speed:  speed,
		loop:   t.Loop,
		period: loopPeriod(t.Cues, speed),
		start:  time.Now(),
		done:   make(chan struct{}),
	}, nil
}

type replayStream struct {
	cues   []Cue
	speed  float64
	loop   bool
	period time.Duration
	start  time.Time

	next  int
	round int

	frames atomic.Int64
	acks   atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// loopPeriod is the wall-clock length of one looped round at speed: the last
// offset plus the median spacing between consecutive cues. The gap is never
// shorter than minLoopGap.
func loopPeriod(cues []Cue, speed float64) time.Duration {
	var gaps []time.Duration
	last := time.Duration(0)
	for i, c := range cues {
		if c.Offset > last {
			last = c.Offset
		}
		if i > 0 {
			if d := c.Offset - cues[i-1].Offset; d > 0 {
				gaps = append(gaps, d)
			}
		}
	}
	gap := minLoopGap
	if len(gaps) > 0 {
		slices.Sort(gaps)
		gap = max(gap, time.Duration(float64(gaps[len(gaps)/2])/speed))
	}
	return time.Duration(float64(last)/speed) + gap
}

func (s *replayStream) SendMedia(string, []byte) error {
	select {
	case <-s.done:
		return io.ErrClosedPipe
	default:
	}
	s.frames.Add(1)
	return nil
}

func (s *replayStream) SendToolResponses(responses []FunctionResponse) error {
	select {
	case <-s.done:
		return io.ErrClosedPipe
	default:
	}
	s.acks.Add(int64(len(responses)))
	return nil
}

// Receive is only called from the session's receive goroutine.
func (s *replayStream) Receive() (Message, error) {
	if s.next >= len(s.cues) {
		if !s.loop {
			return Message{}, io.EOF
		}
		s.next = 0
		s.round++
		s.start = s.start.Add(s.period)
	}
	cue := s.cues[s.next]
	wait := time.Duration(float64(cue.Offset)/s.speed) - time.Since(s.start)
	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-s.done:
			timer.Stop()
			return Message{}, io.EOF
		case <-timer.C:
		}
	} else {
		select {
		case <-s.done:
			return Message{}, io.EOF
		default:
		}
	}
	id := fmt.Sprintf("replay-%d-%d", s.round, s.next)
	s.next++
	return Message{ToolCalls: []FunctionCall{{
		ID:   id,
		Name: SetTension,
		Args: map[string]any{TensionArg: cue.Tension},
	}}}, nil
}

func (s *replayStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
