package transmit

import (
	"context"
	"io"
	"time"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/mocap/recorder"
	"github.com/vrmcast/vrmcast/internal/timeutil"
)

// FrameSource hands the scheduler its next frame, blocking until the frame
// is due. Live streaming and replay are the two strategies; swapping the
// source is the only difference between the paths — encode and send are
// shared.
type FrameSource interface {
	// Next blocks until the next frame is due and returns it. io.EOF
	// signals a finite source (a recording) is exhausted.
	Next(ctx context.Context) (mocap.Frame, error)
}

// LiveSource snapshots channel state at a fixed rate. Pacing runs off an
// injectable clock; SetClock with a timeutil.MockClock makes send timing
// fully deterministic in tests.
type LiveSource struct {
	state    *mocap.ChannelState
	interval time.Duration
	clock    timeutil.Clock
	ticker   timeutil.Ticker
}

// NewLiveSource creates a live source ticking at rateHz.
func NewLiveSource(state *mocap.ChannelState, rateHz float64) *LiveSource {
	if rateHz <= 0 {
		rateHz = 30
	}
	return &LiveSource{
		state:    state,
		interval: time.Duration(float64(time.Second) / rateHz),
		clock:    timeutil.RealClock{},
	}
}

// SetClock replaces the wall clock. Call before the first Next.
func (s *LiveSource) SetClock(c timeutil.Clock) { s.clock = c }

// Next waits for the next send tick and snapshots the current channel
// state. The snapshot is a copy: fusion may keep writing while the
// scheduler encodes and sends.
func (s *LiveSource) Next(ctx context.Context) (mocap.Frame, error) {
	if s.ticker == nil {
		s.ticker = s.clock.NewTicker(s.interval)
	}
	select {
	case <-ctx.Done():
		return mocap.Frame{}, ctx.Err()
	case now := <-s.ticker.C():
		return s.state.Snapshot(now), nil
	}
}

// Stop releases the send ticker.
func (s *LiveSource) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
}

// ReplaySource plays a sealed recording back at its original inter-frame
// deltas, optionally scaled by a speed multiplier.
type ReplaySource struct {
	replayer *recorder.Replayer
	speed    float64
	started  time.Time
	clock    timeutil.Clock
}

// NewReplaySource wraps a replayer. speed <= 0 means 1.0x.
func NewReplaySource(r *recorder.Replayer, speed float64) *ReplaySource {
	if speed <= 0 {
		speed = 1.0
	}
	return &ReplaySource{
		replayer: r,
		speed:    speed,
		clock:    timeutil.RealClock{},
	}
}

// SetClock replaces the wall clock. Call before the first Next.
func (s *ReplaySource) SetClock(c timeutil.Clock) { s.clock = c }

// Next returns the next recorded frame once its original offset (scaled by
// the speed multiplier) has elapsed since playback began.
func (s *ReplaySource) Next(ctx context.Context) (mocap.Frame, error) {
	frame, ok := s.replayer.ReadFrame()
	if !ok {
		return mocap.Frame{}, io.EOF
	}
	if s.started.IsZero() {
		s.started = s.clock.Now()
	}
	due := s.started.Add(time.Duration(float64(frame.TimestampNanos) / s.speed))
	if wait := due.Sub(s.clock.Now()); wait > 0 {
		if err := s.sleep(ctx, wait); err != nil {
			return mocap.Frame{}, err
		}
	}
	return frame, nil
}

func (s *ReplaySource) sleep(ctx context.Context, d time.Duration) error {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}
