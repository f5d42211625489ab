// Package vrm defines the channel vocabularies an avatar model can expose
// and the CapabilityProfile derived from a loaded model.
//
// Model-file parsing lives outside this module; profiles arrive as JSON
// documents listing the humanoid bones and expression targets the model
// actually has. Everything downstream (mappers, fusion, encoders) addresses
// channels only through a profile.
package vrm

// HumanoidBones is the fixed VRM humanoid bone vocabulary. A profile may
// only declare bone channels drawn from this set.
var HumanoidBones = []string{
	"Hips", "Spine", "Chest", "UpperChest", "Neck", "Head",
	"LeftEye", "RightEye", "Jaw",
	"LeftShoulder", "LeftUpperArm", "LeftLowerArm", "LeftHand",
	"RightShoulder", "RightUpperArm", "RightLowerArm", "RightHand",
	"LeftUpperLeg", "LeftLowerLeg", "LeftFoot", "LeftToes",
	"RightUpperLeg", "RightLowerLeg", "RightFoot", "RightToes",
	"LeftThumbProximal", "LeftThumbIntermediate", "LeftThumbDistal",
	"LeftIndexProximal", "LeftIndexIntermediate", "LeftIndexDistal",
	"LeftMiddleProximal", "LeftMiddleIntermediate", "LeftMiddleDistal",
	"LeftRingProximal", "LeftRingIntermediate", "LeftRingDistal",
	"LeftLittleProximal", "LeftLittleIntermediate", "LeftLittleDistal",
	"RightThumbProximal", "RightThumbIntermediate", "RightThumbDistal",
	"RightIndexProximal", "RightIndexIntermediate", "RightIndexDistal",
	"RightMiddleProximal", "RightMiddleIntermediate", "RightMiddleDistal",
	"RightRingProximal", "RightRingIntermediate", "RightRingDistal",
	"RightLittleProximal", "RightLittleIntermediate", "RightLittleDistal",
}

// ARKitBlendshapes is the fixed-order 52-entry ARKit blendshape vocabulary
// produced by Perfect Sync face-capture applications. Order matters: the
// external face collaborator delivers weights in this order.
var ARKitBlendshapes = []string{
	"browDown_L", "browDown_R", "browInnerUp", "browOuterUp_L", "browOuterUp_R",
	"cheekPuff", "cheekSquint_L", "cheekSquint_R", "eyeBlink_L", "eyeBlink_R",
	"eyeLookDown_L", "eyeLookDown_R", "eyeLookIn_L", "eyeLookIn_R", "eyeLookOut_L",
	"eyeLookOut_R", "eyeLookUp_L", "eyeLookUp_R", "eyeSquint_L", "eyeSquint_R",
	"eyeWide_L", "eyeWide_R", "jawForward", "jawLeft", "jawOpen", "jawRight",
	"mouthClose", "mouthDimple_L", "mouthDimple_R", "mouthFrown_L", "mouthFrown_R",
	"mouthFunnel", "mouthLeft", "mouthLowerDown_L", "mouthLowerDown_R", "mouthPress_L",
	"mouthPress_R", "mouthPucker", "mouthRight", "mouthRollLower", "mouthRollUpper",
	"mouthShrugLower", "mouthShrugUpper", "mouthSmile_L", "mouthSmile_R",
	"mouthStretch_L", "mouthStretch_R", "mouthUpperUp_L", "mouthUpperUp_R",
	"noseSneer_L", "noseSneer_R", "tongueOut",
}

// Reserved expression channel names for gaze. Values are stored recentred to
// [0,1] with 0.5 meaning straight ahead; encoders decode back to signed
// yaw/pitch where their schema calls for it.
const (
	GazeYawLeft    = "eyeYaw_L"
	GazePitchLeft  = "eyePitch_L"
	GazeYawRight   = "eyeYaw_R"
	GazePitchRight = "eyePitch_R"
)

// Shrug channel names. The shrug mapper prefers the shoulder bones when the
// profile has them and falls back to these expression channels otherwise.
const (
	ShrugLeftExpression  = "shrug_L"
	ShrugRightExpression = "shrug_R"
)

// GazeExpressions lists the reserved gaze channel names in encode order.
var GazeExpressions = []string{GazeYawLeft, GazePitchLeft, GazeYawRight, GazePitchRight}

var humanoidBoneSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(HumanoidBones))
	for _, b := range HumanoidBones {
		m[b] = struct{}{}
	}
	return m
}()

// IsHumanoidBone reports whether name is part of the humanoid vocabulary.
func IsHumanoidBone(name string) bool {
	_, ok := humanoidBoneSet[name]
	return ok
}
