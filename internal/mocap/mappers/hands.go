package mappers

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// fingerBone spans one finger segment between two of the 21 hand landmarks.
// The unprefixed bone name gains a Left/Right prefix per detected hand.
type fingerBone struct {
	name     string
	from, to int
}

var fingerBones = []fingerBone{
	{"ThumbProximal", mocap.HandThumbCMC, mocap.HandThumbMCP},
	{"ThumbIntermediate", mocap.HandThumbMCP, mocap.HandThumbIP},
	{"ThumbDistal", mocap.HandThumbIP, mocap.HandThumbTip},
	{"IndexProximal", mocap.HandIndexMCP, mocap.HandIndexPIP},
	{"IndexIntermediate", mocap.HandIndexPIP, mocap.HandIndexDIP},
	{"IndexDistal", mocap.HandIndexDIP, mocap.HandIndexTip},
	{"MiddleProximal", mocap.HandMiddleMCP, mocap.HandMiddlePIP},
	{"MiddleIntermediate", mocap.HandMiddlePIP, mocap.HandMiddleDIP},
	{"MiddleDistal", mocap.HandMiddleDIP, mocap.HandMiddleTip},
	{"RingProximal", mocap.HandRingMCP, mocap.HandRingPIP},
	{"RingIntermediate", mocap.HandRingPIP, mocap.HandRingDIP},
	{"RingDistal", mocap.HandRingDIP, mocap.HandRingTip},
	{"LittleProximal", mocap.HandLittleMCP, mocap.HandLittlePIP},
	{"LittleIntermediate", mocap.HandLittlePIP, mocap.HandLittleDIP},
	{"LittleDistal", mocap.HandLittleDIP, mocap.HandLittleTip},
}

// fingerRef is the reference direction for a straight finger: fingertips up
// in landmark space.
var fingerRef = r3.Vec{Y: -1}

// HandsMapper converts per-hand landmark sets into finger bone rotations.
// Each hand is mapped independently; a hand with no landmarks this sample
// contributes nothing. Stateless.
type HandsMapper struct{}

// Map emits finger rotations for every detected hand.
func (HandsMapper) Map(s mocap.HandSample, profile *vrm.CapabilityProfile, _ float64) []mocap.Channel {
	var out []mocap.Channel
	out = appendHand(out, "Left", s.Left, profile)
	out = appendHand(out, "Right", s.Right, profile)
	return out
}

func appendHand(out []mocap.Channel, side string, lm []r3.Vec, profile *vrm.CapabilityProfile) []mocap.Channel {
	if len(lm) < mocap.HandLandmarkCount {
		return out
	}
	for _, fb := range fingerBones {
		bone := side + fb.name
		if !profile.HasBone(bone) {
			continue
		}
		seg := r3.Sub(lm[fb.to], lm[fb.from])
		out = append(out, mocap.Channel{
			Kind:     mocap.KindBone,
			Name:     bone,
			Rotation: mocap.RotationBetween(fingerRef, seg),
		})
	}
	return out
}
