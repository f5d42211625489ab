package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/mocap/fusion"
	"github.com/vrmcast/vrmcast/internal/mocap/oscenc"
	"github.com/vrmcast/vrmcast/internal/mocap/recorder"
	"github.com/vrmcast/vrmcast/internal/mocap/transmit"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// State is a pipeline lifecycle state.
type State string

const (
	// StateIdle: no channel state, no scheduler running.
	StateIdle State = "idle"
	// StateStreaming: fusion and transmission active.
	StateStreaming State = "streaming"
	// StateRecording: streaming with a recorder attached.
	StateRecording State = "recording"
	// StateReplaying: a sealed recording drives the scheduler; live
	// fusion is detached.
	StateReplaying State = "replaying"
)

// Settings is everything a pipeline needs to start. The transmission
// target and avatar profile are fixed for the lifetime of a run; changing
// either requires a full restart.
type Settings struct {
	ID   string
	Name string

	// Target.
	Protocol   oscenc.Protocol
	Host       string
	Port       int
	PathPrefix string
	SendRateHz float64

	// Feature enables.
	Pose    bool
	Face    bool
	Hands   bool
	Shrug   bool
	Gaze    bool
	ExtFace bool

	// Smoothing coefficient in (0,1] and uniform root scale.
	Alpha float64
	Scale float64

	// One-Euro gaze tunables; zero uses defaults.
	GazeMinCutoff float64
	GazeBeta      float64

	// Fusion tunables; zero values use the fusion package defaults.
	TickRateHz    float64
	StaleMultiple int
	DecayStep     float64

	// ShrugThreshold overrides the shrug calibration; zero keeps the
	// mapper default.
	ShrugThreshold float64
}

// Pipeline is one independently configured streaming pipeline.
type Pipeline struct {
	settings Settings
	profile  *vrm.CapabilityProfile

	// dial is swappable so tests can run against a mock socket.
	dial func(host string, port int) (transmit.PacketConn, error)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	// done closes when the current run's tasks have all exited. gen
	// identifies the run so a teardown racing replay auto-completion
	// cleans up exactly once.
	done chan struct{}
	gen  uint64

	channels *mocap.ChannelState
	merger   *fusion.Merger
	sched    *transmit.Scheduler
	conn     transmit.PacketConn

	// Active recording identity, set while state is Recording.
	recID   string
	recPath string
}

// New validates settings and returns an Idle pipeline.
func New(settings Settings, profile *vrm.CapabilityProfile) (*Pipeline, error) {
	if profile == nil {
		return nil, &mocap.ConfigError{Field: "profile", Reason: "avatar profile is required"}
	}
	if settings.Host == "" {
		return nil, &mocap.ConfigError{Field: "host", Reason: "transmission target host is required"}
	}
	if settings.Port <= 0 || settings.Port > 65535 {
		return nil, &mocap.ConfigError{Field: "port", Reason: fmt.Sprintf("invalid port %d", settings.Port)}
	}
	if settings.SendRateHz <= 0 {
		return nil, &mocap.ConfigError{Field: "send_rate_hz", Reason: "send rate must be positive"}
	}
	if settings.Alpha <= 0 || settings.Alpha > 1 {
		return nil, &mocap.ConfigError{Field: "alpha", Reason: "smoothing coefficient must be in (0,1]"}
	}
	if _, err := oscenc.New(settings.Protocol, settings.PathPrefix); err != nil {
		return nil, &mocap.ConfigError{Field: "protocol", Reason: err.Error()}
	}
	return &Pipeline{
		settings: settings,
		profile:  profile,
		dial:     transmit.DialUDP,
		state:    StateIdle,
	}, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string { return p.settings.ID }

// Settings returns a copy of the pipeline settings.
func (p *Pipeline) Settings() Settings { return p.settings }

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Intake returns the producer-facing sample slots while streaming, or nil
// when the pipeline is idle or replaying.
func (p *Pipeline) Intake() *fusion.Intake {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.merger == nil {
		return nil
	}
	return p.merger.Intake()
}

// LastFrame returns the most recently transmitted frame for diagnostics.
func (p *Pipeline) LastFrame() (mocap.Frame, bool) {
	p.mu.Lock()
	sched := p.sched
	p.mu.Unlock()
	if sched == nil {
		return mocap.Frame{}, false
	}
	return sched.LastFrame()
}

// Stats reports transmission counters for the current run.
func (p *Pipeline) Stats() (framesSent, sendFailures uint64) {
	p.mu.Lock()
	sched := p.sched
	p.mu.Unlock()
	if sched == nil {
		return 0, 0
	}
	return sched.FramesSent(), sched.SendFailures()
}

// StartStreaming transitions Idle -> Streaming: opens the target socket,
// creates the channel state, and launches the fusion and scheduler tasks.
func (p *Pipeline) StartStreaming() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return &mocap.InvalidStateError{Op: "start streaming", State: string(p.state)}
	}

	channels := mocap.NewChannelState()
	merger, err := fusion.NewMerger(fusion.Config{
		Profile:        p.profile,
		Pose:           p.settings.Pose,
		Face:           p.settings.Face,
		Hands:          p.settings.Hands,
		Shrug:          p.settings.Shrug,
		Gaze:           p.settings.Gaze,
		ExtFace:        p.settings.ExtFace,
		Alpha:          p.settings.Alpha,
		Scale:          p.settings.Scale,
		GazeMinCutoff:  p.settings.GazeMinCutoff,
		GazeBeta:       p.settings.GazeBeta,
		TickRate:       p.settings.TickRateHz,
		StaleMultiple:  p.settings.StaleMultiple,
		DecayStep:      p.settings.DecayStep,
		ShrugThreshold: p.settings.ShrugThreshold,
	}, channels)
	if err != nil {
		return err
	}

	enc, err := oscenc.New(p.settings.Protocol, p.settings.PathPrefix)
	if err != nil {
		return &mocap.ConfigError{Field: "protocol", Reason: err.Error()}
	}
	conn, err := p.dial(p.settings.Host, p.settings.Port)
	if err != nil {
		// Socket allocation is the one failure fatal to a start.
		return fmt.Errorf("pipeline %s: %w", p.settings.ID, err)
	}

	src := transmit.NewLiveSource(channels, p.settings.SendRateHz)
	sched := transmit.NewScheduler(src, enc, conn, p.profile)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.channels = channels
	p.merger = merger
	p.sched = sched
	p.conn = conn
	p.cancel = cancel
	p.done = done
	p.state = StateStreaming

	var runWG sync.WaitGroup
	runWG.Add(2)
	go func() {
		defer runWG.Done()
		merger.Run(ctx)
	}()
	go func() {
		defer runWG.Done()
		if err := sched.Run(ctx); err != nil {
			opsf("pipeline %s: scheduler exited: %v", p.settings.ID, err)
		}
	}()
	go func() {
		runWG.Wait()
		close(done)
	}()

	opsf("pipeline %s: streaming to %s:%d (%s) at %.0f Hz",
		p.settings.ID, p.settings.Host, p.settings.Port, p.settings.Protocol, p.settings.SendRateHz)
	return nil
}

// StopStreaming transitions Streaming (or Recording, sealing the recording
// first) -> Idle, cancelling all tasks and releasing the socket.
func (p *Pipeline) StopStreaming() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateStreaming && p.state != StateRecording {
		return &mocap.InvalidStateError{Op: "stop streaming", State: string(p.state)}
	}
	p.teardownLocked()
	opsf("pipeline %s: streaming stopped", p.settings.ID)
	return nil
}

// StartRecording transitions Streaming -> Recording, attaching a recorder
// writing to path.
func (p *Pipeline) StartRecording(path, recordingID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateStreaming {
		return &mocap.InvalidStateError{Op: "start recording", State: string(p.state)}
	}
	rec, err := recorder.NewRecorder(path, recordingID, p.settings.ID, string(p.settings.Protocol))
	if err != nil {
		return err
	}
	p.sched.AttachRecorder(rec)
	p.recID = recordingID
	p.recPath = rec.Path()
	p.state = StateRecording
	opsf("pipeline %s: recording to %s", p.settings.ID, rec.Path())
	return nil
}

// StopRecording transitions Recording -> Streaming, sealing the recording.
// It returns the identity of the recording it sealed; resolving it any
// other way (registry ordering, directory listing) can pick the wrong
// recording when stop cycles land close together. Stopping with no active
// recording is rejected and leaves every existing recording untouched.
func (p *Pipeline) StopRecording() (recordingID, path string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateRecording {
		return "", "", &mocap.InvalidStateError{Op: "stop recording", State: string(p.state)}
	}
	rec := p.sched.Recorder()
	p.sched.AttachRecorder(nil)
	p.state = StateStreaming
	recordingID, path = p.recID, p.recPath
	p.recID, p.recPath = "", ""
	if rec == nil {
		// Recorder sealed itself early after an IO failure.
		return recordingID, path, nil
	}
	if err := rec.Close(); err != nil {
		return recordingID, path, err
	}
	opsf("pipeline %s: recording sealed, %d frames", p.settings.ID, rec.FrameCount())
	return recordingID, path, nil
}

// StartReplay transitions Idle -> Replaying: the sealed recording at path
// drives the scheduler in place of live fusion. Live feature mappers stay
// detached until the pipeline returns to Idle and is restarted. A finished
// recording returns the pipeline to Idle on its own.
func (p *Pipeline) StartReplay(path string, speed float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return &mocap.InvalidStateError{Op: "start replay", State: string(p.state)}
	}

	rep, err := recorder.NewReplayer(path)
	if err != nil {
		return &mocap.ConfigError{Field: "recording", Reason: err.Error()}
	}
	enc, err := oscenc.New(p.settings.Protocol, p.settings.PathPrefix)
	if err != nil {
		return &mocap.ConfigError{Field: "protocol", Reason: err.Error()}
	}
	conn, err := p.dial(p.settings.Host, p.settings.Port)
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.settings.ID, err)
	}

	src := transmit.NewReplaySource(rep, speed)
	sched := transmit.NewScheduler(src, enc, conn, p.profile)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	gen := p.gen
	p.sched = sched
	p.conn = conn
	p.cancel = cancel
	p.done = done
	p.state = StateReplaying

	go func() {
		err := sched.Run(ctx)
		close(done)
		p.mu.Lock()
		if p.gen == gen && p.state == StateReplaying {
			p.cleanupLocked()
		}
		p.mu.Unlock()
		if err != nil {
			opsf("pipeline %s: replay exited: %v", p.settings.ID, err)
		} else {
			diagf("pipeline %s: replay finished", p.settings.ID)
		}
	}()

	opsf("pipeline %s: replaying %s at %.2fx (%d frames)",
		p.settings.ID, path, speedOrDefault(speed), rep.TotalFrames())
	return nil
}

// StopReplay transitions Replaying -> Idle. It does not resume live
// streaming.
func (p *Pipeline) StopReplay() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReplaying {
		return &mocap.InvalidStateError{Op: "stop replay", State: string(p.state)}
	}
	p.teardownLocked()
	opsf("pipeline %s: replay stopped", p.settings.ID)
	return nil
}

// Stop cancels whatever the pipeline is doing and returns it to Idle.
// Safe to call from any state; a recording in progress is sealed, never
// corrupted.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		p.teardownLocked()
	}
}

// teardownLocked cancels the current run, waits for its tasks to exit and
// cleans up. Caller holds p.mu; the lock is dropped while waiting so the
// replay completion path can take it. The generation check makes the two
// paths clean up exactly once.
func (p *Pipeline) teardownLocked() {
	gen := p.gen
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	done := p.done

	p.mu.Unlock()
	if done != nil {
		<-done
	}
	p.mu.Lock()

	if p.gen != gen || p.state == StateIdle {
		return
	}
	p.cleanupLocked()
}

// cleanupLocked seals any recording, closes the socket, clears run state
// and advances the run generation. Caller holds p.mu.
func (p *Pipeline) cleanupLocked() {
	if p.sched != nil {
		if rec := p.sched.Recorder(); rec != nil {
			if err := rec.Close(); err != nil {
				opsf("pipeline %s: failed to seal recording: %v", p.settings.ID, err)
			}
			p.sched.AttachRecorder(nil)
		}
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.channels = nil
	p.merger = nil
	p.sched = nil
	p.done = nil
	p.cancel = nil
	p.recID = ""
	p.recPath = ""
	p.state = StateIdle
	p.gen++
}

func speedOrDefault(speed float64) float64 {
	if speed <= 0 {
		return 1.0
	}
	return speed
}
