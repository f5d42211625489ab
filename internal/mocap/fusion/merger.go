package fusion

import (
	"context"
	"fmt"
	"time"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/mocap/filter"
	"github.com/vrmcast/vrmcast/internal/mocap/mappers"
	"github.com/vrmcast/vrmcast/internal/monitoring"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// Defaults for the merge loop.
const (
	// DefaultTickRate is the internal fusion tick in Hz, chosen to be at
	// least as fast as any supported producer.
	DefaultTickRate = 60.0
	// DefaultStaleMultiple sizes the staleness window as a multiple of a
	// feature's expected sample period.
	DefaultStaleMultiple = 3
	// DefaultDecayStep is how much a stale expression channel loses per
	// tick on its way to zero.
	DefaultDecayStep = 0.05
)

// Config selects the enabled features and carries the pipeline's smoothing
// parameters. Disabled features contribute no channels at all.
type Config struct {
	Profile *vrm.CapabilityProfile

	Pose    bool
	Face    bool
	Hands   bool
	Shrug   bool
	Gaze    bool
	ExtFace bool

	// Alpha is the pipeline smoothing coefficient in (0,1].
	Alpha float64
	// Scale is the uniform root-position scale.
	Scale float64

	// One-Euro tunables for the gaze mapper. Zero values use the filter
	// package defaults.
	GazeMinCutoff float64
	GazeBeta      float64

	// ShrugThreshold overrides the shrug mapper's neutral ratio. Zero
	// keeps the mapper default.
	ShrugThreshold float64

	// TickRate overrides the fusion tick in Hz. Zero means DefaultTickRate.
	TickRate float64
	// StaleMultiple overrides the staleness window multiple. Zero means
	// DefaultStaleMultiple.
	StaleMultiple int
	// DecayStep overrides the stale expression decay per tick. Zero means
	// DefaultDecayStep.
	DecayStep float64
}

func (c Config) tickInterval() time.Duration {
	rate := c.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return time.Duration(float64(time.Second) / rate)
}

// Merger runs the fusion merge for one pipeline. It is the single writer
// of the pipeline's channel state while streaming is live.
type Merger struct {
	cfg    Config
	state  *mocap.ChannelState
	intake *Intake
	bank   *filter.Bank

	pose    mappers.PoseMapper
	face    mappers.FaceMapper
	hands   mappers.HandsMapper
	shrug   *mappers.ShrugMapper
	gaze    *mappers.GazeMapper
	extFace mappers.ExtFaceMapper

	// Last-seen sequence numbers per intake slot.
	poseSeq, faceSeq, handsSeq, extFaceSeq uint64
}

// NewMerger validates the config and builds a merger writing into state.
func NewMerger(cfg Config, state *mocap.ChannelState) (*Merger, error) {
	if cfg.Profile == nil {
		return nil, &mocap.ConfigError{Field: "profile", Reason: "capability profile is required"}
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		return nil, &mocap.ConfigError{Field: "alpha", Reason: fmt.Sprintf("smoothing coefficient %v outside (0,1]", cfg.Alpha)}
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	shrug := mappers.NewShrugMapper()
	if cfg.ShrugThreshold > 0 {
		shrug.Threshold = cfg.ShrugThreshold
	}
	return &Merger{
		cfg:    cfg,
		state:  state,
		intake: NewIntake(),
		bank:   filter.NewBank(cfg.Alpha),
		shrug:  shrug,
		gaze:   mappers.NewGazeMapper(cfg.GazeMinCutoff, cfg.GazeBeta),
	}, nil
}

// Intake returns the producer-facing sample slots.
func (m *Merger) Intake() *Intake { return m.intake }

// Run drives the merge loop until ctx is cancelled.
func (m *Merger) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.tickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Tick(now)
		}
	}
}

// Tick performs one fusion merge: apply every enabled mapper that has a
// fresh sample, fold the smoothed partial updates into channel state, then
// run the staleness policy. Exposed so tests can drive fusion with a fake
// clock.
func (m *Merger) Tick(now time.Time) {
	if m.cfg.Pose || m.cfg.Shrug {
		if s, seq, fresh := m.intake.takePose(m.poseSeq); fresh {
			m.poseSeq = seq
			if m.cfg.Pose {
				m.apply(mocap.FeaturePose, m.pose.Map(s, m.cfg.Profile, m.cfg.Scale), now)
			}
			if m.cfg.Shrug {
				m.apply(mocap.FeatureShrug, m.shrug.Map(s, m.cfg.Profile, m.cfg.Scale), now)
			}
		}
	}
	if m.cfg.Face || m.cfg.Gaze {
		if s, seq, fresh := m.intake.takeFace(m.faceSeq); fresh {
			m.faceSeq = seq
			if m.cfg.Face {
				m.apply(mocap.FeatureFace, m.face.Map(s, m.cfg.Profile, m.cfg.Scale), now)
			}
			if m.cfg.Gaze {
				m.apply(mocap.FeatureGaze, m.gaze.Map(s, m.cfg.Profile, m.cfg.Scale), now)
			}
		}
	}
	if m.cfg.Hands {
		if s, seq, fresh := m.intake.takeHands(m.handsSeq); fresh {
			m.handsSeq = seq
			m.apply(mocap.FeatureHands, m.hands.Map(s, m.cfg.Profile, m.cfg.Scale), now)
		}
	}
	if m.cfg.ExtFace {
		if s, seq, fresh := m.intake.takeExtFace(m.extFaceSeq); fresh {
			m.extFaceSeq = seq
			m.apply(mocap.FeatureExtFace, m.extFace.Map(s, m.cfg.Profile, m.cfg.Scale), now)
		}
	}

	m.decay(now)
}

func (m *Merger) apply(feature mocap.Feature, update []mocap.Channel, now time.Time) {
	if len(update) == 0 {
		return
	}
	for i := range update {
		update[i] = m.bank.Smooth(update[i])
	}
	m.state.Apply(feature, update, now)
}

func (m *Merger) decay(now time.Time) {
	multiple := m.cfg.StaleMultiple
	if multiple <= 0 {
		multiple = DefaultStaleMultiple
	}
	step := m.cfg.DecayStep
	if step <= 0 {
		step = DefaultDecayStep
	}
	policy := mocap.DecayPolicy{
		Window: func(f mocap.Feature) time.Duration {
			return time.Duration(multiple) * f.ExpectedPeriod()
		},
		Step:    step,
		Neutral: channelNeutral,
	}
	for _, name := range m.state.DecayStale(now, policy) {
		monitoring.Logf("fusion: channel %s stale, decaying", name)
	}
}

var gazeChannels = func() map[string]struct{} {
	m := make(map[string]struct{}, len(vrm.GazeExpressions))
	for _, name := range vrm.GazeExpressions {
		m[name] = struct{}{}
	}
	return m
}()

// channelNeutral is the resting value a stale expression decays toward.
// Gaze channels are recentred so 0.5 is straight ahead; everything else
// rests at zero.
func channelNeutral(name string) float64 {
	if _, ok := gazeChannels[name]; ok {
		return 0.5
	}
	return 0
}
