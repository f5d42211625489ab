package mappers

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/vrm"
)

func mustProfile(t *testing.T, bones, expressions []string) *vrm.CapabilityProfile {
	t.Helper()
	p, err := vrm.NewProfile("test", bones, expressions)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// tPoseLandmarks builds a full pose landmark set in an upright T-pose:
// arms along ±X, torso along -Y (image Y grows downward).
func tPoseLandmarks() []r3.Vec {
	lm := make([]r3.Vec, mocap.PoseLandmarkCount)
	lm[mocap.PoseNose] = r3.Vec{X: 0.5, Y: 0.2}
	lm[mocap.PoseLeftShoulder] = r3.Vec{X: 0.6, Y: 0.35}
	lm[mocap.PoseRightShoulder] = r3.Vec{X: 0.4, Y: 0.35}
	lm[mocap.PoseLeftElbow] = r3.Vec{X: 0.75, Y: 0.35}
	lm[mocap.PoseRightElbow] = r3.Vec{X: 0.25, Y: 0.35}
	lm[mocap.PoseLeftWrist] = r3.Vec{X: 0.9, Y: 0.35}
	lm[mocap.PoseRightWrist] = r3.Vec{X: 0.1, Y: 0.35}
	lm[mocap.PoseLeftHip] = r3.Vec{X: 0.55, Y: 0.6}
	lm[mocap.PoseRightHip] = r3.Vec{X: 0.45, Y: 0.6}
	lm[mocap.PoseLeftKnee] = r3.Vec{X: 0.55, Y: 0.8}
	lm[mocap.PoseRightKnee] = r3.Vec{X: 0.45, Y: 0.8}
	lm[mocap.PoseLeftAnkle] = r3.Vec{X: 0.55, Y: 0.95}
	lm[mocap.PoseRightAnkle] = r3.Vec{X: 0.45, Y: 0.95}
	return lm
}

func channelByName(chs []mocap.Channel, name string) (mocap.Channel, bool) {
	for _, ch := range chs {
		if ch.Name == name {
			return ch, true
		}
	}
	return mocap.Channel{}, false
}

func TestPoseMapperTPoseIsNearIdentity(t *testing.T) {
	profile := mustProfile(t, []string{"LeftUpperArm", "RightUpperArm", "LeftUpperLeg"}, nil)
	out := PoseMapper{}.Map(mocap.PoseSample{Landmarks: tPoseLandmarks()}, profile, 1.0)

	for _, name := range []string{"LeftUpperArm", "RightUpperArm", "LeftUpperLeg"} {
		ch, ok := channelByName(out, name)
		if !ok {
			t.Fatalf("missing channel %s in %v", name, out)
		}
		if ch.Kind != mocap.KindBone {
			t.Errorf("%s kind = %q, want bone", name, ch.Kind)
		}
		// segment matches the reference axis, so rotation is identity
		if math.Abs(ch.Rotation.Dot(mocap.Identity)) < 0.999 {
			t.Errorf("%s not near identity in T-pose: %v", name, ch.Rotation)
		}
	}
}

func TestPoseMapperRespectsProfile(t *testing.T) {
	profile := mustProfile(t, []string{"LeftUpperArm"}, nil)
	out := PoseMapper{}.Map(mocap.PoseSample{Landmarks: tPoseLandmarks()}, profile, 1.0)
	if len(out) != 1 || out[0].Name != "LeftUpperArm" {
		t.Errorf("profile gating failed: %v", out)
	}
}

func TestPoseMapperShortLandmarkSet(t *testing.T) {
	profile := mustProfile(t, []string{"Head"}, nil)
	if out := (PoseMapper{}).Map(mocap.PoseSample{Landmarks: make([]r3.Vec, 5)}, profile, 1.0); out != nil {
		t.Errorf("short landmark set produced %v, want nil", out)
	}
}

func TestPoseMapperHipsPositionScaling(t *testing.T) {
	profile := mustProfile(t, []string{"Hips"}, nil)
	lm := tPoseLandmarks()
	out := PoseMapper{}.Map(mocap.PoseSample{Landmarks: lm}, profile, 2.0)
	hips, ok := channelByName(out, "Hips")
	if !ok {
		t.Fatal("no Hips channel")
	}
	// hip midpoint is (0.5, 0.6): centred in X, 0.1 below centre in image
	// space which maps to -0.1 avatar Y, doubled by scale
	if math.Abs(hips.Position.X) > 1e-9 {
		t.Errorf("Hips X = %v, want 0", hips.Position.X)
	}
	if math.Abs(hips.Position.Y-(-0.2)) > 1e-9 {
		t.Errorf("Hips Y = %v, want -0.2", hips.Position.Y)
	}
}

func TestHandsMapperBothHands(t *testing.T) {
	profile := mustProfile(t, []string{"LeftIndexProximal", "RightIndexProximal"}, nil)

	// straight fingers pointing up in image space
	hand := make([]r3.Vec, mocap.HandLandmarkCount)
	for i := range hand {
		hand[i] = r3.Vec{X: 0.5, Y: 1 - float64(i)*0.01}
	}
	out := HandsMapper{}.Map(mocap.HandSample{Left: hand, Right: hand}, profile, 1.0)
	if len(out) != 2 {
		t.Fatalf("got %d channels, want 2: %v", len(out), out)
	}
	if _, ok := channelByName(out, "LeftIndexProximal"); !ok {
		t.Error("missing LeftIndexProximal")
	}
	if _, ok := channelByName(out, "RightIndexProximal"); !ok {
		t.Error("missing RightIndexProximal")
	}
}

func TestHandsMapperMissingHandContributesNothing(t *testing.T) {
	profile := mustProfile(t, []string{"LeftIndexProximal", "RightIndexProximal"}, nil)
	hand := make([]r3.Vec, mocap.HandLandmarkCount)
	for i := range hand {
		hand[i] = r3.Vec{Y: -float64(i)}
	}
	out := HandsMapper{}.Map(mocap.HandSample{Right: hand}, profile, 1.0)
	for _, ch := range out {
		if ch.Name[0] == 'L' {
			t.Errorf("undetected left hand emitted %s", ch.Name)
		}
	}
}

func TestFaceMapperBlinkAndJaw(t *testing.T) {
	profile := mustProfile(t, nil, []string{"eyeBlink_L", "eyeBlink_R", "jawOpen"})
	lm := make([]r3.Vec, mocap.FaceLandmarkCount)

	// left eye wide open (gap/width well above open ratio), right eye shut
	lm[leftEyeInner] = r3.Vec{X: 0.55, Y: 0.4}
	lm[leftEyeOuter] = r3.Vec{X: 0.65, Y: 0.4}
	lm[leftEyeUpper] = r3.Vec{X: 0.6, Y: 0.38}
	lm[leftEyeLower] = r3.Vec{X: 0.6, Y: 0.42}
	lm[rightEyeInner] = r3.Vec{X: 0.45, Y: 0.4}
	lm[rightEyeOuter] = r3.Vec{X: 0.35, Y: 0.4}
	lm[rightEyeUpper] = r3.Vec{X: 0.4, Y: 0.4}
	lm[rightEyeLower] = r3.Vec{X: 0.4, Y: 0.4}

	// mouth half open: gap/width = 0.25, ratio 0.5 of jawOpenRatio
	lm[mouthCornerR] = r3.Vec{X: 0.45, Y: 0.6}
	lm[mouthCornerL] = r3.Vec{X: 0.55, Y: 0.6}
	lm[upperLipInner] = r3.Vec{X: 0.5, Y: 0.5875}
	lm[lowerLipInner] = r3.Vec{X: 0.5, Y: 0.6125}

	out := FaceMapper{}.Map(mocap.FaceSample{Landmarks: lm}, profile, 1.0)

	blinkL, _ := channelByName(out, "eyeBlink_L")
	if blinkL.Value != 0 {
		t.Errorf("open left eye blink = %v, want 0", blinkL.Value)
	}
	blinkR, _ := channelByName(out, "eyeBlink_R")
	if blinkR.Value != 1 {
		t.Errorf("closed right eye blink = %v, want 1", blinkR.Value)
	}
	jaw, _ := channelByName(out, "jawOpen")
	if math.Abs(jaw.Value-0.5) > 1e-9 {
		t.Errorf("jawOpen = %v, want 0.5", jaw.Value)
	}
}

func TestFaceMapperProfileWithoutFaceChannels(t *testing.T) {
	profile := mustProfile(t, []string{"Head"}, nil)
	lm := make([]r3.Vec, mocap.FaceLandmarkCount)
	if out := (FaceMapper{}).Map(mocap.FaceSample{Landmarks: lm}, profile, 1.0); len(out) != 0 {
		t.Errorf("profile without face expressions produced %v", out)
	}
}

func TestGazeMapperEmitsRecentredChannels(t *testing.T) {
	profile := mustProfile(t, nil, vrm.GazeExpressions)
	m := NewGazeMapper(0, 0)

	lm := make([]r3.Vec, mocap.FaceLandmarkCount)
	for i := mocap.RightIrisStart; i < mocap.RightIrisEnd; i++ {
		lm[i] = r3.Vec{X: 0.3, Y: 0.5}
	}
	for i := mocap.LeftIrisStart; i < mocap.LeftIrisEnd; i++ {
		lm[i] = r3.Vec{X: 0.7, Y: 0.5}
	}

	out := m.Map(mocap.FaceSample{Landmarks: lm, CapturedAt: time.Unix(0, 0)}, profile, 1.0)
	if len(out) != 4 {
		t.Fatalf("got %d channels, want 4: %v", len(out), out)
	}
	yawL, _ := channelByName(out, vrm.GazeYawLeft)
	if math.Abs(yawL.Value-0.7) > 1e-9 {
		t.Errorf("left yaw = %v, want 0.7 (first sample unfiltered)", yawL.Value)
	}
	pitchR, _ := channelByName(out, vrm.GazePitchRight)
	if math.Abs(pitchR.Value-0.5) > 1e-9 {
		t.Errorf("right pitch = %v, want 0.5 centre", pitchR.Value)
	}
}

func TestGazeMapperClampsToUnitRange(t *testing.T) {
	profile := mustProfile(t, nil, vrm.GazeExpressions)
	m := NewGazeMapper(0, 0)
	lm := make([]r3.Vec, mocap.FaceLandmarkCount)
	for i := mocap.RightIrisStart; i < mocap.FaceLandmarkCount; i++ {
		lm[i] = r3.Vec{X: 1.4, Y: -0.2}
	}
	out := m.Map(mocap.FaceSample{Landmarks: lm, CapturedAt: time.Unix(0, 0)}, profile, 1.0)
	for _, ch := range out {
		if ch.Value < 0 || ch.Value > 1 {
			t.Errorf("%s = %v out of [0,1]", ch.Name, ch.Value)
		}
	}
}

func TestGazeMapperWithoutIrisLandmarks(t *testing.T) {
	profile := mustProfile(t, nil, vrm.GazeExpressions)
	m := NewGazeMapper(0, 0)
	lm := make([]r3.Vec, mocap.RightIrisStart) // base mesh only
	if out := m.Map(mocap.FaceSample{Landmarks: lm, CapturedAt: time.Now()}, profile, 1.0); out != nil {
		t.Errorf("sample without iris points produced %v, want nil", out)
	}
}

func TestShrugMapperPrefersBoneOverExpression(t *testing.T) {
	m := NewShrugMapper()
	lm := tPoseLandmarks()

	both := mustProfile(t, []string{"LeftShoulder"}, []string{vrm.ShrugLeftExpression})
	out := m.Map(mocap.PoseSample{Landmarks: lm}, both, 1.0)
	ch, ok := channelByName(out, "LeftShoulder")
	if !ok {
		t.Fatalf("bone channel missing: %v", out)
	}
	if ch.Kind != mocap.KindBone {
		t.Errorf("kind = %q, want bone", ch.Kind)
	}
	if _, dup := channelByName(out, vrm.ShrugLeftExpression); dup {
		t.Error("bone and expression emitted for the same side")
	}
}

func TestShrugMapperExpressionFallback(t *testing.T) {
	m := NewShrugMapper()
	lm := tPoseLandmarks()
	// raise the left shoulder toward the nose for a visible shrug
	lm[mocap.PoseLeftShoulder] = r3.Vec{X: 0.55, Y: 0.25}

	exprOnly := mustProfile(t, nil, []string{vrm.ShrugLeftExpression, vrm.ShrugRightExpression})
	out := m.Map(mocap.PoseSample{Landmarks: lm}, exprOnly, 1.0)

	left, ok := channelByName(out, vrm.ShrugLeftExpression)
	if !ok {
		t.Fatalf("no left shrug expression: %v", out)
	}
	if left.Kind != mocap.KindExpression || left.Value <= 0 || left.Value > 1 {
		t.Errorf("left shrug = %+v, want expression in (0,1]", left)
	}
	right, ok := channelByName(out, vrm.ShrugRightExpression)
	if !ok {
		t.Fatalf("no right shrug expression: %v", out)
	}
	if right.Value < 0 || right.Value > 1 {
		t.Errorf("right shrug out of range: %v", right.Value)
	}
}

func TestShrugMapperNeitherChannelAvailable(t *testing.T) {
	m := NewShrugMapper()
	none := mustProfile(t, []string{"Head"}, []string{"joy"})
	if out := m.Map(mocap.PoseSample{Landmarks: tPoseLandmarks()}, none, 1.0); len(out) != 0 {
		t.Errorf("profile without shrug channels produced %v", out)
	}
}

func TestExtFaceMapperRoutesAndClamps(t *testing.T) {
	profile := mustProfile(t, nil, []string{"jawOpen", "mouthSmile_L"})
	out := ExtFaceMapper{}.Map(mocap.ExtFaceSample{Weights: map[string]float64{
		"jawOpen":      0.4,
		"mouthSmile_L": 1.7,  // clamped
		"mouthSmile_R": 0.5,  // not in profile
		"madeUpMorph":  0.9,  // not in the ARKit vocabulary
	}}, profile, 1.0)

	if len(out) != 2 {
		t.Fatalf("got %d channels, want 2: %v", len(out), out)
	}
	jaw, _ := channelByName(out, "jawOpen")
	if jaw.Value != 0.4 {
		t.Errorf("jawOpen = %v, want 0.4", jaw.Value)
	}
	smile, _ := channelByName(out, "mouthSmile_L")
	if smile.Value != 1 {
		t.Errorf("mouthSmile_L = %v, want clamp to 1", smile.Value)
	}
}

func TestExtFaceMapperEmptyWeights(t *testing.T) {
	profile := mustProfile(t, nil, []string{"jawOpen"})
	if out := (ExtFaceMapper{}).Map(mocap.ExtFaceSample{}, profile, 1.0); out != nil {
		t.Errorf("empty weight vector produced %v, want nil", out)
	}
}
