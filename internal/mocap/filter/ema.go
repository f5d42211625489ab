// Package filter provides the temporal smoothing primitives applied to
// channel values before transmission: exponential moving averages for
// scalars and rotations, and the adaptive One-Euro filter for
// jitter-sensitive signals such as gaze.
//
// Filter state is strictly per channel and per pipeline. Two pipelines
// tracking the same camera never share filter instances.
package filter

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/vrmcast/vrmcast/internal/mocap"
)

// EMA is a scalar exponential moving average:
//
//	v_t = alpha*raw_t + (1-alpha)*v_{t-1}
//
// Higher alpha tracks faster, lower alpha smooths more. The first sample
// passes through unchanged.
type EMA struct {
	alpha  float64
	primed bool
	v      float64
}

// NewEMA creates a scalar EMA with the given coefficient in (0,1].
func NewEMA(alpha float64) *EMA {
	return &EMA{alpha: alpha}
}

// Filter folds one raw sample into the average and returns the smoothed value.
func (e *EMA) Filter(raw float64) float64 {
	if !e.primed {
		e.primed = true
		e.v = raw
		return raw
	}
	e.v = e.alpha*raw + (1-e.alpha)*e.v
	return e.v
}

// RotationEMA smooths bone rotations by spherically interpolating from the
// previous output toward each raw sample. Slerp, never componentwise
// blending, so the output stays unit length on the shortest rotation path.
type RotationEMA struct {
	alpha  float64
	primed bool
	v      mocap.Rotation
}

// NewRotationEMA creates a rotation EMA with the given coefficient in (0,1].
func NewRotationEMA(alpha float64) *RotationEMA {
	return &RotationEMA{alpha: alpha}
}

// Filter folds one raw rotation into the average.
func (e *RotationEMA) Filter(raw mocap.Rotation) mocap.Rotation {
	raw = raw.Normalized()
	if !e.primed {
		e.primed = true
		e.v = raw
		return raw
	}
	e.v = mocap.Slerp(e.v, raw, e.alpha)
	return e.v
}

// VecEMA smooths a position vector componentwise with one coefficient.
// The first sample passes through unchanged.
type VecEMA struct {
	alpha  float64
	primed bool
	v      r3.Vec
}

// NewVecEMA creates a vector EMA with the given coefficient in (0,1].
func NewVecEMA(alpha float64) *VecEMA {
	return &VecEMA{alpha: alpha}
}

// Filter folds one raw vector into the average.
func (e *VecEMA) Filter(raw r3.Vec) r3.Vec {
	if !e.primed {
		e.primed = true
		e.v = raw
		return raw
	}
	e.v = r3.Add(r3.Scale(e.alpha, raw), r3.Scale(1-e.alpha, e.v))
	return e.v
}

// Bank holds per-channel EMA state for one pipeline, applying the
// pipeline's smoothing coefficient to every channel that passes through
// fusion. Channels are keyed by name; state is created lazily on first use.
type Bank struct {
	alpha   float64
	scalars map[string]*EMA
	rots    map[string]*RotationEMA
	vecs    map[string]*VecEMA
}

// NewBank creates a filter bank with the pipeline smoothing coefficient.
func NewBank(alpha float64) *Bank {
	return &Bank{
		alpha:   alpha,
		scalars: make(map[string]*EMA),
		rots:    make(map[string]*RotationEMA),
		vecs:    make(map[string]*VecEMA),
	}
}

// Smooth returns a smoothed copy of the channel, routing bone rotations
// through slerp EMA and expression scalars through plain EMA. Root position
// deltas are smoothed componentwise with the same coefficient.
func (b *Bank) Smooth(ch mocap.Channel) mocap.Channel {
	switch ch.Kind {
	case mocap.KindBone:
		r, ok := b.rots[ch.Name]
		if !ok {
			r = NewRotationEMA(b.alpha)
			b.rots[ch.Name] = r
		}
		ch.Rotation = r.Filter(ch.Rotation)
		v, ok := b.vecs[ch.Name]
		if !ok {
			v = NewVecEMA(b.alpha)
			b.vecs[ch.Name] = v
		}
		ch.Position = v.Filter(ch.Position)
	case mocap.KindExpression:
		s, ok := b.scalars[ch.Name]
		if !ok {
			s = NewEMA(b.alpha)
			b.scalars[ch.Name] = s
		}
		ch.Value = s.Filter(ch.Value)
	}
	return ch
}
