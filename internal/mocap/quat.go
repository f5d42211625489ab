package mocap

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Rotation is a unit quaternion in (x, y, z, w) component order, the order
// both wire protocols use.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the no-rotation quaternion.
var Identity = Rotation{W: 1}

func (r Rotation) num() quat.Number {
	return quat.Number{Real: r.W, Imag: r.X, Jmag: r.Y, Kmag: r.Z}
}

func fromNum(q quat.Number) Rotation {
	return Rotation{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

// Norm returns the quaternion magnitude.
func (r Rotation) Norm() float64 {
	return quat.Abs(r.num())
}

// Normalized returns r scaled to unit length. A degenerate zero quaternion
// normalises to identity rather than propagating NaNs.
func (r Rotation) Normalized() Rotation {
	n := r.Norm()
	if n < 1e-12 {
		return Identity
	}
	return Rotation{X: r.X / n, Y: r.Y / n, Z: r.Z / n, W: r.W / n}
}

// Dot returns the four-component dot product of two rotations.
func (r Rotation) Dot(o Rotation) float64 {
	return r.X*o.X + r.Y*o.Y + r.Z*o.Z + r.W*o.W
}

// Mul returns the Hamilton product r*o.
func (r Rotation) Mul(o Rotation) Rotation {
	return fromNum(quat.Mul(r.num(), o.num()))
}

// Slerp spherically interpolates from a toward b by t in [0,1], taking the
// shortest path on the rotation sphere. The result is always unit length.
func Slerp(a, b Rotation, t float64) Rotation {
	a = a.Normalized()
	b = b.Normalized()

	d := a.Dot(b)
	// Take the shorter arc: q and -q are the same rotation.
	if d < 0 {
		b = Rotation{X: -b.X, Y: -b.Y, Z: -b.Z, W: -b.W}
		d = -d
	}
	if d > 0.9995 {
		// Nearly parallel: fall back to nlerp to avoid dividing by a
		// vanishing sin(theta).
		out := Rotation{
			X: a.X + t*(b.X-a.X),
			Y: a.Y + t*(b.Y-a.Y),
			Z: a.Z + t*(b.Z-a.Z),
			W: a.W + t*(b.W-a.W),
		}
		return out.Normalized()
	}

	theta := math.Acos(d)
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sinTheta
	wb := math.Sin(t*theta) / sinTheta
	out := Rotation{
		X: wa*a.X + wb*b.X,
		Y: wa*a.Y + wb*b.Y,
		Z: wa*a.Z + wb*b.Z,
		W: wa*a.W + wb*b.W,
	}
	return out.Normalized()
}

// RotationBetween returns the shortest-arc rotation carrying unit vector
// from onto unit vector to. Inputs need not be normalised; zero-length
// inputs yield identity.
func RotationBetween(from, to r3.Vec) Rotation {
	fn := r3.Norm(from)
	tn := r3.Norm(to)
	if fn < 1e-12 || tn < 1e-12 {
		return Identity
	}
	from = r3.Scale(1/fn, from)
	to = r3.Scale(1/tn, to)

	d := r3.Dot(from, to)
	if d < -0.999999 {
		// Antiparallel: rotate 180 degrees around any axis orthogonal to from.
		axis := r3.Cross(from, r3.Vec{X: 1})
		if r3.Norm(axis) < 1e-6 {
			axis = r3.Cross(from, r3.Vec{Y: 1})
		}
		axis = r3.Scale(1/r3.Norm(axis), axis)
		return Rotation{X: axis.X, Y: axis.Y, Z: axis.Z, W: 0}
	}

	c := r3.Cross(from, to)
	r := Rotation{X: c.X, Y: c.Y, Z: c.Z, W: 1 + d}
	return r.Normalized()
}
