package filter

import (
	"math"
	"time"
)

// OneEuro is an adaptive low-pass filter: the cutoff frequency rises with
// signal velocity, so slow movements are heavily smoothed while fast ones
// track with low lag.
//
//	fc = minCutoff + beta*|velocity|
//
// The derivative estimate is itself low-pass filtered at dCutoff. The first
// sample per channel is passed through unchanged, and a non-increasing
// timestamp returns the previous output rather than dividing by a zero
// time delta.
type OneEuro struct {
	minCutoff float64
	beta      float64
	dCutoff   float64

	primed bool
	xPrev  float64
	dxPrev float64
	tPrev  time.Time
}

// OneEuroDefaults are the baseline tunables used for gaze.
const (
	DefaultMinCutoff = 1.0
	DefaultBeta      = 0.05
	DefaultDCutoff   = 1.0
)

// NewOneEuro creates a One-Euro filter. Non-positive minCutoff or dCutoff
// fall back to the defaults.
func NewOneEuro(minCutoff, beta float64) *OneEuro {
	if minCutoff <= 0 {
		minCutoff = DefaultMinCutoff
	}
	return &OneEuro{minCutoff: minCutoff, beta: beta, dCutoff: DefaultDCutoff}
}

func smoothingFactor(te, cutoff float64) float64 {
	r := 2 * math.Pi * cutoff * te
	return r / (r + 1)
}

// Filter folds one timestamped sample and returns the filtered value.
func (f *OneEuro) Filter(x float64, t time.Time) float64 {
	if !f.primed {
		f.primed = true
		f.xPrev = x
		f.dxPrev = 0
		f.tPrev = t
		return x
	}

	te := t.Sub(f.tPrev).Seconds()
	if te <= 0 {
		return f.xPrev
	}

	ad := smoothingFactor(te, f.dCutoff)
	dx := (x - f.xPrev) / te
	dxHat := ad*dx + (1-ad)*f.dxPrev

	cutoff := f.minCutoff + f.beta*math.Abs(dxHat)
	a := smoothingFactor(te, cutoff)
	xHat := a*x + (1-a)*f.xPrev

	f.xPrev = xHat
	f.dxPrev = dxHat
	f.tPrev = t
	return xHat
}
