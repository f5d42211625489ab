package mappers

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// boneAxis describes one limb segment: the landmark pair spanning it and
// the direction that segment points in the reference T-pose. Joint rotation
// is the shortest arc carrying the reference direction onto the measured
// segment.
//
// Landmark space is normalised image coordinates: +X right, +Y down,
// +Z toward the camera. In that frame a T-pose has arms along ±X and the
// torso/legs along ±Y.
type boneAxis struct {
	bone     string
	from, to int
	ref      r3.Vec
}

var poseBoneAxes = []boneAxis{
	{"LeftUpperArm", mocap.PoseLeftShoulder, mocap.PoseLeftElbow, r3.Vec{X: 1}},
	{"LeftLowerArm", mocap.PoseLeftElbow, mocap.PoseLeftWrist, r3.Vec{X: 1}},
	{"RightUpperArm", mocap.PoseRightShoulder, mocap.PoseRightElbow, r3.Vec{X: -1}},
	{"RightLowerArm", mocap.PoseRightElbow, mocap.PoseRightWrist, r3.Vec{X: -1}},
	{"LeftUpperLeg", mocap.PoseLeftHip, mocap.PoseLeftKnee, r3.Vec{Y: 1}},
	{"LeftLowerLeg", mocap.PoseLeftKnee, mocap.PoseLeftAnkle, r3.Vec{Y: 1}},
	{"RightUpperLeg", mocap.PoseRightHip, mocap.PoseRightKnee, r3.Vec{Y: 1}},
	{"RightLowerLeg", mocap.PoseRightKnee, mocap.PoseRightAnkle, r3.Vec{Y: 1}},
}

// PoseMapper converts body landmarks into joint rotations via the T-pose
// bone axis table. Stateless.
type PoseMapper struct{}

// Map emits joint rotations for every profile bone the landmark set can
// drive. A short or empty landmark set yields an empty update.
func (PoseMapper) Map(s mocap.PoseSample, profile *vrm.CapabilityProfile, scale float64) []mocap.Channel {
	if len(s.Landmarks) < mocap.PoseLandmarkCount {
		return nil
	}
	lm := s.Landmarks

	var out []mocap.Channel
	for _, ax := range poseBoneAxes {
		if !profile.HasBone(ax.bone) {
			continue
		}
		seg := r3.Sub(lm[ax.to], lm[ax.from])
		out = append(out, mocap.Channel{
			Kind:     mocap.KindBone,
			Name:     ax.bone,
			Rotation: mocap.RotationBetween(ax.ref, seg),
		})
	}

	hipMid := midpoint(lm[mocap.PoseLeftHip], lm[mocap.PoseRightHip])
	shoulderMid := midpoint(lm[mocap.PoseLeftShoulder], lm[mocap.PoseRightShoulder])

	if profile.HasBone("Spine") {
		out = append(out, mocap.Channel{
			Kind:     mocap.KindBone,
			Name:     "Spine",
			Rotation: mocap.RotationBetween(r3.Vec{Y: -1}, r3.Sub(shoulderMid, hipMid)),
		})
	}
	if profile.HasBone("Neck") {
		out = append(out, mocap.Channel{
			Kind:     mocap.KindBone,
			Name:     "Neck",
			Rotation: mocap.RotationBetween(r3.Vec{Y: -1}, r3.Sub(lm[mocap.PoseNose], shoulderMid)),
		})
	}
	if profile.HasBone("Hips") {
		// Root: orientation from the hip line, position delta from the hip
		// midpoint relative to image centre, scaled by the pipeline scale.
		// Image Y grows downward, avatar Y grows upward.
		hipLine := r3.Sub(lm[mocap.PoseRightHip], lm[mocap.PoseLeftHip])
		out = append(out, mocap.Channel{
			Kind:     mocap.KindBone,
			Name:     "Hips",
			Rotation: mocap.RotationBetween(r3.Vec{X: -1}, hipLine),
			Position: r3.Vec{
				X: (hipMid.X - 0.5) * scale,
				Y: (0.5 - hipMid.Y) * scale,
				Z: hipMid.Z * scale,
			},
		})
	}
	return out
}

func midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

// axisAngle builds a rotation of angle radians around a unit axis.
func axisAngle(axis r3.Vec, angle float64) mocap.Rotation {
	n := r3.Norm(axis)
	if n < 1e-12 {
		return mocap.Identity
	}
	axis = r3.Scale(1/n, axis)
	s := math.Sin(angle / 2)
	return mocap.Rotation{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: math.Cos(angle / 2)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
