// Package fusion merges the latest output of every enabled feature mapper
// into one coherent channel state per tick.
//
// Producers run at their own cadence and never block the merge loop: each
// feature has a single latest-value slot, and the tick reads whatever the
// most recent completed sample is (last-value-wins). A feature that
// produced nothing since the previous tick is left untouched; its channels
// persist until the staleness policy takes over.
package fusion

import (
	"sync"

	"github.com/vrmcast/vrmcast/internal/mocap"
)

// Intake holds the per-feature latest-value slots for one pipeline.
// Offer* calls are safe from any goroutine and overwrite the previous
// sample; sequence numbers let the merge tick detect fresh data without
// blocking on producers.
type Intake struct {
	mu sync.Mutex

	pose    mocap.PoseSample
	poseSeq uint64

	face    mocap.FaceSample
	faceSeq uint64

	hands    mocap.HandSample
	handsSeq uint64

	extFace    mocap.ExtFaceSample
	extFaceSeq uint64
}

// NewIntake returns an empty intake.
func NewIntake() *Intake { return &Intake{} }

// OfferPose publishes a new pose sample.
func (in *Intake) OfferPose(s mocap.PoseSample) {
	in.mu.Lock()
	in.pose = s
	in.poseSeq++
	in.mu.Unlock()
}

// OfferFace publishes a new face mesh sample.
func (in *Intake) OfferFace(s mocap.FaceSample) {
	in.mu.Lock()
	in.face = s
	in.faceSeq++
	in.mu.Unlock()
}

// OfferHands publishes a new hand sample.
func (in *Intake) OfferHands(s mocap.HandSample) {
	in.mu.Lock()
	in.hands = s
	in.handsSeq++
	in.mu.Unlock()
}

// OfferExtFace publishes a new external face-capture sample.
func (in *Intake) OfferExtFace(s mocap.ExtFaceSample) {
	in.mu.Lock()
	in.extFace = s
	in.extFaceSeq++
	in.mu.Unlock()
}

// takePose returns the current pose sample and whether it is newer than
// sinceSeq. Same shape for the other features.
func (in *Intake) takePose(sinceSeq uint64) (mocap.PoseSample, uint64, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.pose, in.poseSeq, in.poseSeq != sinceSeq
}

func (in *Intake) takeFace(sinceSeq uint64) (mocap.FaceSample, uint64, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.face, in.faceSeq, in.faceSeq != sinceSeq
}

func (in *Intake) takeHands(sinceSeq uint64) (mocap.HandSample, uint64, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.hands, in.handsSeq, in.handsSeq != sinceSeq
}

func (in *Intake) takeExtFace(sinceSeq uint64) (mocap.ExtFaceSample, uint64, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.extFace, in.extFaceSeq, in.extFaceSeq != sinceSeq
}
