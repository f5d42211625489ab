// Package oscenc turns frame snapshots into ordered OSC wire messages.
//
// Two schemas are supported: the generic prefix-based OSC scheme and the
// VMC extension protocol. Both encoders emit bones before expressions and
// sort alphabetically within each group, so encoding the same frame twice
// is byte-identical — the property replay verification depends on.
package oscenc

import (
	"fmt"
	"sort"

	"github.com/hypebeast/go-osc/osc"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/monitoring"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// Protocol identifies a wire schema.
type Protocol string

const (
	ProtocolOSC Protocol = "OSC"
	ProtocolVMC Protocol = "VMC"
)

// Encoder converts one frame into its ordered message sequence.
type Encoder interface {
	// Encode returns the wire messages for the frame, re-validating every
	// channel against the profile: out-of-profile channels are dropped and
	// logged, never transmitted.
	Encode(frame mocap.Frame, profile *vrm.CapabilityProfile) []*osc.Message
	// Protocol reports which schema the encoder implements.
	Protocol() Protocol
}

// New returns the encoder for a protocol. The prefix applies to the
// generic OSC scheme only; VMC addresses are fixed by its specification.
func New(protocol Protocol, prefix string) (Encoder, error) {
	switch protocol {
	case ProtocolOSC:
		return NewOSCEncoder(prefix), nil
	case ProtocolVMC:
		return NewVMCEncoder(), nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", protocol)
	}
}

// splitFrame separates a frame into profile-validated bone and expression
// channels, each sorted by name. Channels failing validation are dropped
// with a log line; upstream already filters them, so a hit here indicates
// a bug worth surfacing.
func splitFrame(frame mocap.Frame, profile *vrm.CapabilityProfile) (bones, expressions []mocap.Channel) {
	for _, ch := range frame.Channels {
		switch ch.Kind {
		case mocap.KindBone:
			if !profile.HasBone(ch.Name) {
				monitoring.Logf("oscenc: dropping bone %q absent from profile %q", ch.Name, profile.Name())
				continue
			}
			bones = append(bones, ch)
		case mocap.KindExpression:
			if !profile.HasExpression(ch.Name) {
				monitoring.Logf("oscenc: dropping expression %q absent from profile %q", ch.Name, profile.Name())
				continue
			}
			expressions = append(expressions, ch)
		default:
			monitoring.Logf("oscenc: dropping channel %q with unknown kind %q", ch.Name, ch.Kind)
		}
	}
	sort.Slice(bones, func(i, j int) bool { return bones[i].Name < bones[j].Name })
	sort.Slice(expressions, func(i, j int) bool { return expressions[i].Name < expressions[j].Name })
	return bones, expressions
}

// gazeAxes recentres a stored [0,1] gaze channel value onto signed [-1,1].
func gazeAxis(v float64) float32 {
	return float32((v - 0.5) * 2)
}
