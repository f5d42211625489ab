package mocap

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Landmark counts for the upstream estimators.
const (
	PoseLandmarkCount = 33
	HandLandmarkCount = 21
	// FaceLandmarkCount includes the 10 refined iris points appended to the
	// 468-point mesh.
	FaceLandmarkCount = 478
)

// MediaPipe pose landmark indices used by the mappers.
const (
	PoseNose          = 0
	PoseLeftShoulder  = 11
	PoseRightShoulder = 12
	PoseLeftElbow     = 13
	PoseRightElbow    = 14
	PoseLeftWrist     = 15
	PoseRightWrist    = 16
	PoseLeftHip       = 23
	PoseRightHip      = 24
	PoseLeftKnee      = 25
	PoseRightKnee     = 26
	PoseLeftAnkle     = 27
	PoseRightAnkle    = 28
)

// Hand landmark indices (21-point MediaPipe hand model).
const (
	HandWrist          = 0
	HandThumbCMC       = 1
	HandThumbMCP       = 2
	HandThumbIP        = 3
	HandThumbTip       = 4
	HandIndexMCP       = 5
	HandIndexPIP       = 6
	HandIndexDIP       = 7
	HandIndexTip       = 8
	HandMiddleMCP      = 9
	HandMiddlePIP      = 10
	HandMiddleDIP      = 11
	HandMiddleTip      = 12
	HandRingMCP        = 13
	HandRingPIP        = 14
	HandRingDIP        = 15
	HandRingTip        = 16
	HandLittleMCP      = 17
	HandLittlePIP      = 18
	HandLittleDIP      = 19
	HandLittleTip      = 20
)

// Iris landmark ranges within the refined face mesh.
const (
	RightIrisStart = 468
	RightIrisEnd   = 473 // exclusive
	LeftIrisStart  = 473
	LeftIrisEnd    = 478 // exclusive
)

// PoseSample is one body landmark set from the pose estimator.
type PoseSample struct {
	Landmarks  []r3.Vec
	CapturedAt time.Time
}

// HandSample carries per-hand landmark sets from the hand estimator. A nil
// slice means that hand was not detected this sample.
type HandSample struct {
	Left       []r3.Vec
	Right      []r3.Vec
	CapturedAt time.Time
}

// FaceSample is one face mesh landmark set, iris points included.
type FaceSample struct {
	Landmarks  []r3.Vec
	CapturedAt time.Time
}

// ExtFaceSample is an already-decoded expression weight vector from the
// external face-capture collaborator. Keys are ARKit blendshape names,
// values are in [0,1].
type ExtFaceSample struct {
	Weights    map[string]float64
	CapturedAt time.Time
}
