package mappers

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/mocap/filter"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// GazeMapper derives per-eye yaw/pitch from the iris landmark centroids and
// stabilises them with One-Euro filters before emitting. The iris centroid
// in normalised image coordinates is already a usable yaw/pitch proxy:
// 0.5 means straight ahead on both axes, which matches the reserved gaze
// channel encoding directly.
//
// The four filters (two eyes x two axes) are the mapper's private state.
type GazeMapper struct {
	leftYaw    *filter.OneEuro
	leftPitch  *filter.OneEuro
	rightYaw   *filter.OneEuro
	rightPitch *filter.OneEuro
}

// NewGazeMapper creates a gaze mapper with the given One-Euro tunables.
func NewGazeMapper(minCutoff, beta float64) *GazeMapper {
	return &GazeMapper{
		leftYaw:    filter.NewOneEuro(minCutoff, beta),
		leftPitch:  filter.NewOneEuro(minCutoff, beta),
		rightYaw:   filter.NewOneEuro(minCutoff, beta),
		rightPitch: filter.NewOneEuro(minCutoff, beta),
	}
}

// Map emits the reserved gaze expression channels the profile exposes.
// Samples without iris refinement landmarks produce an empty update.
func (m *GazeMapper) Map(s mocap.FaceSample, profile *vrm.CapabilityProfile, _ float64) []mocap.Channel {
	if len(s.Landmarks) < mocap.FaceLandmarkCount {
		return nil
	}
	left := centroid(s.Landmarks[mocap.LeftIrisStart:mocap.LeftIrisEnd])
	right := centroid(s.Landmarks[mocap.RightIrisStart:mocap.RightIrisEnd])

	values := []struct {
		name string
		v    float64
	}{
		{vrm.GazeYawLeft, m.leftYaw.Filter(left.X, s.CapturedAt)},
		{vrm.GazePitchLeft, m.leftPitch.Filter(left.Y, s.CapturedAt)},
		{vrm.GazeYawRight, m.rightYaw.Filter(right.X, s.CapturedAt)},
		{vrm.GazePitchRight, m.rightPitch.Filter(right.Y, s.CapturedAt)},
	}

	var out []mocap.Channel
	for _, gv := range values {
		if !profile.HasExpression(gv.name) {
			continue
		}
		out = append(out, mocap.Channel{
			Kind:  mocap.KindExpression,
			Name:  gv.name,
			Value: clamp01(gv.v),
		})
	}
	return out
}

func centroid(points []r3.Vec) r3.Vec {
	var sum r3.Vec
	for _, p := range points {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(points)), sum)
}
