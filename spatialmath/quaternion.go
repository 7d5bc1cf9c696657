package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Angles below this are treated as zero rotations when extracting an axis,
// since the axis of a vanishing rotation is numerically undefined.
const angleEpsilon = 1e-6

// Normalize scales a quaternion onto the unit sphere. A zero quaternion
// (malformed upstream data) normalizes to the identity rather than NaN.
func Normalize(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// QuatRotate rotates vector v by unit quaternion q.
func QuatRotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// RotationVector returns the axis of q scaled by its rotation angle. The
// quaternion is first normalized, and flipped onto the positive-real
// hemisphere so the extracted rotation is the minimal one. The angle is
// 2·acos(w) with w clamped to [-1, 1]; below angleEpsilon the axis is
// defined as zero to avoid dividing by a vanishing angle.
func RotationVector(q quat.Number) r3.Vector {
	q = Normalize(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	w := q.Real
	if w > 1 {
		w = 1
	} else if w < -1 {
		w = -1
	}
	angle := 2 * math.Acos(w)
	if angle < angleEpsilon {
		return r3.Vector{}
	}
	axis := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	n := axis.Norm()
	if n == 0 {
		return r3.Vector{}
	}
	return axis.Mul(angle / n)
}

// QuaternionAlmostEqual reports whether two quaternions represent nearly
// the same rotation, accounting for the double cover (q and -q).
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	return quatDist(a, b) < tol || quatDist(a, quat.Scale(-1, b)) < tol
}

func quatDist(a, b quat.Number) float64 {
	d := quat.Sub(a, b)
	return math.Sqrt(d.Real*d.Real + d.Imag*d.Imag + d.Jmag*d.Jmag + d.Kmag*d.Kmag)
}
