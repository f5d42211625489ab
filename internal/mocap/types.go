// Package mocap defines the core data model for the motion streaming
// pipeline: channels, the per-pipeline channel state, and the immutable
// frame snapshots exchanged between fusion, transmission and recording.
package mocap

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// ChannelKind discriminates bone channels from expression channels.
type ChannelKind string

const (
	// KindBone is a rotation channel addressed by humanoid bone name.
	KindBone ChannelKind = "bone"
	// KindExpression is a scalar [0,1] channel addressed by blendshape name.
	KindExpression ChannelKind = "expression"
)

// Channel is the current value of one addressable avatar channel.
// Bone channels carry a rotation and, for the root bone only, a position
// delta. Expression channels carry a scalar weight in [0,1].
type Channel struct {
	Kind     ChannelKind `json:"kind"`
	Name     string      `json:"name"`
	Rotation Rotation    `json:"rot,omitempty"`
	Position r3.Vec      `json:"pos,omitempty"`
	Value    float64     `json:"value,omitempty"`
}

// Frame is an immutable snapshot of channel state at a point in time: the
// unit handed from the transmission scheduler to the encoder and recorder.
// Timestamp is nanoseconds; recordings store it relative to the first frame.
type Frame struct {
	TimestampNanos int64              `json:"t_ns"`
	Channels       map[string]Channel `json:"channels"`
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	out := Frame{TimestampNanos: f.TimestampNanos, Channels: make(map[string]Channel, len(f.Channels))}
	for k, v := range f.Channels {
		out.Channels[k] = v
	}
	return out
}

// Feature identifies one tracking feature contributing to fusion.
type Feature string

const (
	FeaturePose    Feature = "pose"
	FeatureFace    Feature = "face"
	FeatureHands   Feature = "hands"
	FeatureShrug   Feature = "shrug"
	FeatureGaze    Feature = "gaze"
	FeatureExtFace Feature = "extface"
)

// Features lists all known features in a stable order.
var Features = []Feature{FeaturePose, FeatureFace, FeatureHands, FeatureShrug, FeatureGaze, FeatureExtFace}

// ExpectedPeriod returns the nominal interval between samples for a feature.
// Camera-driven features run at camera rate (~30 fps); the external face
// feed is typically 60 fps. Used to size staleness windows.
func (f Feature) ExpectedPeriod() time.Duration {
	switch f {
	case FeatureExtFace:
		return time.Second / 60
	default:
		return time.Second / 30
	}
}
