package oscenc

import (
	"github.com/hypebeast/go-osc/osc"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// VMC extension addresses.
const (
	vmcRootAddr       = "/VMC/Ext/Root/Pos"
	vmcBoneAddr       = "/VMC/Ext/Bone/Pos"
	vmcBlendAddr      = "/VMC/Ext/Blend/Val"
	vmcBlendApplyAddr = "/VMC/Ext/Blend/Apply"
)

// VMCEncoder implements the VMC extension protocol: one root transform per
// frame, a Bone/Pos message per bone channel, a Blend/Val message per
// expression channel (gaze folded in under its reserved names) and a
// terminating Blend/Apply.
type VMCEncoder struct{}

// NewVMCEncoder creates a VMC encoder.
func NewVMCEncoder() *VMCEncoder { return &VMCEncoder{} }

// Protocol returns ProtocolVMC.
func (e *VMCEncoder) Protocol() Protocol { return ProtocolVMC }

// Encode emits root, bones, expressions, Blend/Apply, in that order.
func (e *VMCEncoder) Encode(frame mocap.Frame, profile *vrm.CapabilityProfile) []*osc.Message {
	bones, expressions := splitFrame(frame, profile)

	msgs := make([]*osc.Message, 0, len(bones)+len(expressions)+2)

	// Root transform comes from the Hips channel when the frame has one;
	// otherwise the avatar root stays at origin.
	root := osc.NewMessage(vmcRootAddr)
	rootCh, hasRoot := frame.Channels["Hips"]
	if hasRoot && profile.HasBone("Hips") {
		appendTransform(root, "root", rootCh)
	} else {
		appendTransform(root, "root", mocap.Channel{Rotation: mocap.Identity})
	}
	msgs = append(msgs, root)

	for _, ch := range bones {
		msg := osc.NewMessage(vmcBoneAddr)
		appendTransform(msg, ch.Name, ch)
		msgs = append(msgs, msg)
	}

	for _, ch := range expressions {
		msg := osc.NewMessage(vmcBlendAddr)
		msg.Append(ch.Name, float32(ch.Value))
		msgs = append(msgs, msg)
	}
	msgs = append(msgs, osc.NewMessage(vmcBlendApplyAddr))
	return msgs
}

// appendTransform appends the VMC name + position + rotation argument run.
func appendTransform(msg *osc.Message, name string, ch mocap.Channel) {
	msg.Append(name,
		float32(ch.Position.X), float32(ch.Position.Y), float32(ch.Position.Z),
		float32(ch.Rotation.X), float32(ch.Rotation.Y), float32(ch.Rotation.Z), float32(ch.Rotation.W))
}
