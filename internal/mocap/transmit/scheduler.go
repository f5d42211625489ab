package transmit

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/mocap/oscenc"
	"github.com/vrmcast/vrmcast/internal/mocap/recorder"
	"github.com/vrmcast/vrmcast/internal/monitoring"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// Scheduler is one pipeline's transmission loop: pull a frame from the
// source, hand it to the recorder when one is attached, encode, send.
// Sends are best-effort; a failure drops that frame and the loop
// continues. No lock is held across a send.
type Scheduler struct {
	src     FrameSource
	enc     oscenc.Encoder
	conn    PacketConn
	profile *vrm.CapabilityProfile

	mu   sync.Mutex
	rec  *recorder.Recorder
	last *mocap.Frame

	framesSent   atomic.Uint64
	sendFailures atomic.Uint64
}

// NewScheduler wires a source, encoder and socket together.
func NewScheduler(src FrameSource, enc oscenc.Encoder, conn PacketConn, profile *vrm.CapabilityProfile) *Scheduler {
	return &Scheduler{src: src, enc: enc, conn: conn, profile: profile}
}

// AttachRecorder taps the output stream. The recorder sees exactly the
// snapshots that get encoded, pre-encode, so recorded data matches what
// was (attempted to be) sent. Passing nil detaches.
func (s *Scheduler) AttachRecorder(r *recorder.Recorder) {
	s.mu.Lock()
	s.rec = r
	s.mu.Unlock()
}

// Recorder returns the currently attached recorder, if any.
func (s *Scheduler) Recorder() *recorder.Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// LastFrame returns a copy of the most recently transmitted frame for
// diagnostics, or false if nothing has been sent yet.
func (s *Scheduler) LastFrame() (mocap.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return mocap.Frame{}, false
	}
	return s.last.Clone(), true
}

// FramesSent returns the number of frames transmitted.
func (s *Scheduler) FramesSent() uint64 { return s.framesSent.Load() }

// SendFailures returns the number of datagrams that failed to send.
func (s *Scheduler) SendFailures() uint64 { return s.sendFailures.Load() }

// Run drives the loop until the context is cancelled or a finite source
// is exhausted. The returned error is nil on clean exhaustion.
func (s *Scheduler) Run(ctx context.Context) error {
	if stopper, ok := s.src.(interface{ Stop() }); ok {
		defer stopper.Stop()
	}
	for {
		frame, err := s.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		s.transmit(frame)
	}
}

func (s *Scheduler) transmit(frame mocap.Frame) {
	s.mu.Lock()
	rec := s.rec
	s.mu.Unlock()

	if rec != nil {
		if err := rec.Record(frame); err != nil {
			// Recording failure never interrupts streaming; the recorder
			// has sealed itself early.
			monitoring.Logf("transmit: recording failed, detaching recorder: %v", err)
			s.AttachRecorder(nil)
		}
	}

	dropped := false
	for _, msg := range s.enc.Encode(frame, s.profile) {
		data, err := msg.MarshalBinary()
		if err != nil {
			monitoring.Logf("transmit: failed to marshal %s: %v", msg.Address, err)
			continue
		}
		if _, err := s.conn.Write(data); err != nil {
			s.sendFailures.Add(1)
			if !dropped {
				// One line per frame, not per message, to keep a dead
				// target from flooding the log.
				monitoring.Logf("transmit: send to %s failed, dropping frame: %v", s.conn.RemoteAddr(), err)
				dropped = true
			}
		}
	}

	s.framesSent.Add(1)
	cp := frame.Clone()
	s.mu.Lock()
	s.last = &cp
	s.mu.Unlock()
}
