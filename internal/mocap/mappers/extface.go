package mappers

import (
	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

// ExtFaceMapper merges the external face-capture weight vector 1:1 into
// profile expression channels. The collaborator has already decoded its own
// wire format; this mapper only routes and clamps. Stateless.
type ExtFaceMapper struct{}

// Map emits one expression channel per recognised weight the profile
// exposes. Unknown names (not in the ARKit vocabulary) are skipped so a
// chatty source cannot invent channels.
func (ExtFaceMapper) Map(s mocap.ExtFaceSample, profile *vrm.CapabilityProfile, _ float64) []mocap.Channel {
	if len(s.Weights) == 0 {
		return nil
	}
	out := make([]mocap.Channel, 0, len(s.Weights))
	for _, name := range vrm.ARKitBlendshapes {
		w, ok := s.Weights[name]
		if !ok || !profile.HasExpression(name) {
			continue
		}
		out = append(out, mocap.Channel{
			Kind:  mocap.KindExpression,
			Name:  name,
			Value: clamp01(w),
		})
	}
	return out
}
