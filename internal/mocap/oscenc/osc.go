package oscenc

import (
	"strings"

	"github.com/hypebeast/go-osc/osc"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// DefaultPrefix is the address prefix for the generic OSC scheme when the
// target does not configure one.
const DefaultPrefix = "/ps"

// OSCEncoder implements the generic prefix-based OSC scheme:
//
//	{prefix}/bone/{Name}/rot   f f f f   quaternion x y z w
//	{prefix}/expr/{Name}       f         expression weight
//	{prefix}/eyes/{left|right} f f       gaze yaw, pitch
//
// The reserved gaze channels are routed to the dedicated /eyes addresses
// rather than the generic expression scheme.
type OSCEncoder struct {
	prefix string
}

// NewOSCEncoder creates an encoder with the given address prefix.
// An empty prefix uses DefaultPrefix; a trailing slash is trimmed.
func NewOSCEncoder(prefix string) *OSCEncoder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &OSCEncoder{prefix: strings.TrimRight(prefix, "/")}
}

// Protocol returns ProtocolOSC.
func (e *OSCEncoder) Protocol() Protocol { return ProtocolOSC }

// Encode emits bones, then expressions, then the per-eye gaze addresses.
func (e *OSCEncoder) Encode(frame mocap.Frame, profile *vrm.CapabilityProfile) []*osc.Message {
	bones, expressions := splitFrame(frame, profile)

	msgs := make([]*osc.Message, 0, len(bones)+len(expressions)+2)
	for _, ch := range bones {
		msg := osc.NewMessage(e.prefix + "/bone/" + ch.Name + "/rot")
		msg.Append(float32(ch.Rotation.X), float32(ch.Rotation.Y), float32(ch.Rotation.Z), float32(ch.Rotation.W))
		msgs = append(msgs, msg)
	}

	gaze := make(map[string]float64, 4)
	for _, ch := range expressions {
		if isGazeChannel(ch.Name) {
			gaze[ch.Name] = ch.Value
			continue
		}
		msg := osc.NewMessage(e.prefix + "/expr/" + ch.Name)
		msg.Append(float32(ch.Value))
		msgs = append(msgs, msg)
	}

	msgs = e.appendEye(msgs, "left", gaze, vrm.GazeYawLeft, vrm.GazePitchLeft)
	msgs = e.appendEye(msgs, "right", gaze, vrm.GazeYawRight, vrm.GazePitchRight)
	return msgs
}

// appendEye emits one /eyes address when both axes for that eye are live.
func (e *OSCEncoder) appendEye(msgs []*osc.Message, side string, gaze map[string]float64, yawName, pitchName string) []*osc.Message {
	yaw, okYaw := gaze[yawName]
	pitch, okPitch := gaze[pitchName]
	if !okYaw || !okPitch {
		return msgs
	}
	msg := osc.NewMessage(e.prefix + "/eyes/" + side)
	msg.Append(gazeAxis(yaw), gazeAxis(pitch))
	return append(msgs, msg)
}

func isGazeChannel(name string) bool {
	switch name {
	case vrm.GazeYawLeft, vrm.GazePitchLeft, vrm.GazeYawRight, vrm.GazePitchRight:
		return true
	}
	return false
}
