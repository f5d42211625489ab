package mappers

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// Face mesh landmark indices for the blink / jaw heuristics.
const (
	leftEyeUpper  = 386
	leftEyeLower  = 374
	leftEyeInner  = 362
	leftEyeOuter  = 263
	rightEyeUpper = 159
	rightEyeLower = 145
	rightEyeInner = 133
	rightEyeOuter = 33
	upperLipInner = 13
	lowerLipInner = 14
	mouthCornerL  = 291
	mouthCornerR  = 61
)

// Eye aspect ratios at which an eye counts fully open / fully closed, and
// the mouth ratio at which the jaw counts fully open.
const (
	eyeOpenRatio   = 0.28
	eyeClosedRatio = 0.10
	jawOpenRatio   = 0.5
)

// FaceMapper derives the basic camera-driven expressions from face mesh
// geometry: per-eye blink from the eye aspect ratio and jaw opening from
// the inner-lip gap. Richer expression detail comes from the external
// face-capture feed when enabled; this mapper keeps a bare camera setup
// expressive. Stateless.
type FaceMapper struct{}

// Map emits blink and jaw channels present in the profile.
func (FaceMapper) Map(s mocap.FaceSample, profile *vrm.CapabilityProfile, _ float64) []mocap.Channel {
	// The heuristics only need the base 468-point mesh.
	if len(s.Landmarks) < mocap.RightIrisStart {
		return nil
	}
	lm := s.Landmarks

	var out []mocap.Channel
	if profile.HasExpression("eyeBlink_L") {
		out = append(out, mocap.Channel{
			Kind:  mocap.KindExpression,
			Name:  "eyeBlink_L",
			Value: blinkAmount(lm[leftEyeUpper], lm[leftEyeLower], lm[leftEyeInner], lm[leftEyeOuter]),
		})
	}
	if profile.HasExpression("eyeBlink_R") {
		out = append(out, mocap.Channel{
			Kind:  mocap.KindExpression,
			Name:  "eyeBlink_R",
			Value: blinkAmount(lm[rightEyeUpper], lm[rightEyeLower], lm[rightEyeInner], lm[rightEyeOuter]),
		})
	}
	if profile.HasExpression("jawOpen") {
		width := r3.Norm(r3.Sub(lm[mouthCornerL], lm[mouthCornerR]))
		if width > 0 {
			gap := r3.Norm(r3.Sub(lm[upperLipInner], lm[lowerLipInner]))
			out = append(out, mocap.Channel{
				Kind:  mocap.KindExpression,
				Name:  "jawOpen",
				Value: clamp01(gap / width / jawOpenRatio),
			})
		}
	}
	return out
}

// blinkAmount maps the eye aspect ratio (lid gap over eye width) onto
// [0,1], 1 meaning fully closed.
func blinkAmount(upper, lower, inner, outer r3.Vec) float64 {
	width := r3.Norm(r3.Sub(outer, inner))
	if width == 0 {
		return 0
	}
	ratio := r3.Norm(r3.Sub(upper, lower)) / width
	return clamp01((eyeOpenRatio - ratio) / (eyeOpenRatio - eyeClosedRatio))
}
