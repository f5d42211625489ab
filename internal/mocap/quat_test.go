package mocap

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const quatTol = 1e-9

func rotationsClose(a, b Rotation, tol float64) bool {
	// q and -q are the same rotation
	if a.Dot(b) < 0 {
		b = Rotation{X: -b.X, Y: -b.Y, Z: -b.Z, W: -b.W}
	}
	return math.Abs(a.X-b.X) < tol &&
		math.Abs(a.Y-b.Y) < tol &&
		math.Abs(a.Z-b.Z) < tol &&
		math.Abs(a.W-b.W) < tol
}

func TestNormalizedUnitLength(t *testing.T) {
	r := Rotation{X: 1, Y: 2, Z: 3, W: 4}.Normalized()
	if math.Abs(r.Norm()-1) > quatTol {
		t.Errorf("normalized rotation has norm %v, want 1", r.Norm())
	}
}

func TestNormalizedZeroQuaternion(t *testing.T) {
	r := Rotation{}.Normalized()
	if r != Identity {
		t.Errorf("zero quaternion normalised to %v, want identity", r)
	}
}

func TestSlerpEndpoints(t *testing.T) {
	a := Identity
	// 90 degrees about Y
	b := Rotation{Y: math.Sin(math.Pi / 4), W: math.Cos(math.Pi / 4)}

	if got := Slerp(a, b, 0); !rotationsClose(got, a, quatTol) {
		t.Errorf("Slerp(a,b,0) = %v, want %v", got, a)
	}
	if got := Slerp(a, b, 1); !rotationsClose(got, b, quatTol) {
		t.Errorf("Slerp(a,b,1) = %v, want %v", got, b)
	}
}

func TestSlerpMidpointIsHalfAngle(t *testing.T) {
	a := Identity
	b := Rotation{Y: math.Sin(math.Pi / 4), W: math.Cos(math.Pi / 4)} // 90 deg about Y
	mid := Slerp(a, b, 0.5)

	want := Rotation{Y: math.Sin(math.Pi / 8), W: math.Cos(math.Pi / 8)} // 45 deg about Y
	if !rotationsClose(mid, want, 1e-6) {
		t.Errorf("Slerp midpoint = %v, want %v", mid, want)
	}
}

func TestSlerpAlwaysUnitLength(t *testing.T) {
	a := Rotation{X: 0.3, Y: -0.2, Z: 0.6, W: 0.2}
	b := Rotation{X: -0.5, Y: 0.5, Z: 0.1, W: 0.9}
	for _, tt := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.99, 1} {
		got := Slerp(a, b, tt)
		if math.Abs(got.Norm()-1) > 1e-9 {
			t.Errorf("Slerp(t=%v) norm = %v, want 1", tt, got.Norm())
		}
	}
}

func TestSlerpTakesShortestArc(t *testing.T) {
	a := Rotation{W: 1}
	// -a is the same rotation; slerp must not swing through the sphere
	b := Rotation{W: -1}
	got := Slerp(a, b, 0.5)
	if !rotationsClose(got, a, 1e-6) {
		t.Errorf("Slerp between q and -q drifted to %v", got)
	}
}

func TestRotationBetweenMapsFromOntoTo(t *testing.T) {
	tests := []struct {
		name     string
		from, to r3.Vec
	}{
		{"x to y", r3.Vec{X: 1}, r3.Vec{Y: 1}},
		{"y to z", r3.Vec{Y: 1}, r3.Vec{Z: 1}},
		{"diagonal", r3.Vec{X: 1, Y: 1}, r3.Vec{X: -1, Z: 2}},
		{"unnormalised inputs", r3.Vec{X: 5}, r3.Vec{Y: 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RotationBetween(tt.from, tt.to)
			if math.Abs(r.Norm()-1) > quatTol {
				t.Fatalf("result not unit length: %v", r.Norm())
			}
			got := rotateVec(r, r3.Scale(1/r3.Norm(tt.from), tt.from))
			want := r3.Scale(1/r3.Norm(tt.to), tt.to)
			if r3.Norm(r3.Sub(got, want)) > 1e-9 {
				t.Errorf("rotated %v to %v, want %v", tt.from, got, want)
			}
		})
	}
}

func TestRotationBetweenParallel(t *testing.T) {
	r := RotationBetween(r3.Vec{X: 1}, r3.Vec{X: 2})
	if !rotationsClose(r, Identity, quatTol) {
		t.Errorf("parallel vectors produced %v, want identity", r)
	}
}

func TestRotationBetweenAntiparallel(t *testing.T) {
	from := r3.Vec{X: 1}
	to := r3.Vec{X: -1}
	r := RotationBetween(from, to)
	if math.Abs(r.Norm()-1) > quatTol {
		t.Fatalf("result not unit length: %v", r.Norm())
	}
	got := rotateVec(r, from)
	if r3.Norm(r3.Sub(got, to)) > 1e-9 {
		t.Errorf("antiparallel rotation maps %v to %v, want %v", from, got, to)
	}
}

func TestRotationBetweenZeroVector(t *testing.T) {
	if r := RotationBetween(r3.Vec{}, r3.Vec{X: 1}); r != Identity {
		t.Errorf("zero from-vector produced %v, want identity", r)
	}
}

// rotateVec applies the rotation to a vector via q*v*q^-1.
func rotateVec(r Rotation, v r3.Vec) r3.Vec {
	p := Rotation{X: v.X, Y: v.Y, Z: v.Z}
	conj := Rotation{X: -r.X, Y: -r.Y, Z: -r.Z, W: r.W}
	out := r.Mul(p).Mul(conj)
	return r3.Vec{X: out.X, Y: out.Y, Z: out.Z}
}
