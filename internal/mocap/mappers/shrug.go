package mappers

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// ShrugMapper derives a per-side shrug scalar from pose landmarks.
//
// Shrugging pulls the shoulder toward the nose, so the shoulder-to-nose
// distance shrinks. That distance is normalised by torso length
// (shoulder-to-hip) to stay independent of subject size and camera
// distance; the neutral-pose ratio is the calibration threshold. Shoulder
// roll (the angle of the shoulder line) tilts both sides.
//
// Output routing per side: the shoulder bone when the profile has it, else
// the shrug expression channel, else nothing. Never both.
type ShrugMapper struct {
	// Threshold is the neutral normalised shoulder-to-nose ratio.
	Threshold float64
}

// shrugMaxRadians is the shoulder rotation at a full shrug.
const shrugMaxRadians = 0.35

// NewShrugMapper returns a shrug mapper with the default calibration.
func NewShrugMapper() *ShrugMapper {
	return &ShrugMapper{Threshold: 0.8}
}

// Map emits at most one channel per side.
func (m *ShrugMapper) Map(s mocap.PoseSample, profile *vrm.CapabilityProfile, _ float64) []mocap.Channel {
	if len(s.Landmarks) < mocap.PoseLandmarkCount {
		return nil
	}
	lm := s.Landmarks
	nose := lm[mocap.PoseNose]
	lShoulder := lm[mocap.PoseLeftShoulder]
	rShoulder := lm[mocap.PoseRightShoulder]
	lHip := lm[mocap.PoseLeftHip]
	rHip := lm[mocap.PoseRightHip]

	refL := r3.Norm(r3.Sub(lShoulder, lHip))
	refR := r3.Norm(r3.Sub(rShoulder, rHip))
	if refL == 0 || refR == 0 {
		return nil
	}

	left := clamp01(1 - r3.Norm(r3.Sub(lShoulder, nose))/refL/m.Threshold)
	right := clamp01(1 - r3.Norm(r3.Sub(rShoulder, nose))/refR/m.Threshold)

	// Shoulder line roll, positive when the left shoulder rides high.
	roll := math.Atan2(rShoulder.Y-lShoulder.Y, rShoulder.X-lShoulder.X)

	var out []mocap.Channel
	out = appendShrug(out, profile, "LeftShoulder", vrm.ShrugLeftExpression, left, left*shrugMaxRadians+roll/2)
	out = appendShrug(out, profile, "RightShoulder", vrm.ShrugRightExpression, right, -(right*shrugMaxRadians)+roll/2)
	return out
}

func appendShrug(out []mocap.Channel, profile *vrm.CapabilityProfile, bone, expr string, amount, angle float64) []mocap.Channel {
	switch {
	case profile.HasBone(bone):
		return append(out, mocap.Channel{
			Kind:     mocap.KindBone,
			Name:     bone,
			Rotation: axisAngle(r3.Vec{Z: 1}, angle),
		})
	case profile.HasExpression(expr):
		return append(out, mocap.Channel{
			Kind:  mocap.KindExpression,
			Name:  expr,
			Value: amount,
		})
	}
	return out
}
