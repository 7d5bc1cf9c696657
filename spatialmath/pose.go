// Package spatialmath defines the spatial mathematical operations used by
// the teleoperation engine: poses, rigid transforms and twists.
package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a position and an orientation in 3D Euclidean space. The
// orientation is a unit quaternion, scalar-first. A Pose doubles as a
// rigid frame-to-frame transform; Compose and PoseInverse treat it as one.
type Pose struct {
	Point       r3.Vector
	Orientation quat.Number
}

// NewZeroPose returns a pose with no translation and no rotation.
func NewZeroPose() *Pose {
	return &Pose{Orientation: quat.Number{Real: 1}}
}

// NewPose returns a pose from a point and an orientation. The orientation
// is normalized so that upstream drift does not propagate.
func NewPose(pt r3.Vector, o quat.Number) *Pose {
	return &Pose{Point: pt, Orientation: Normalize(o)}
}

// Clone returns a copy of the pose.
func (p *Pose) Clone() *Pose {
	return &Pose{Point: p.Point, Orientation: p.Orientation}
}

// Compose treats a and b as transforms and returns a∘b, the transform
// which applies b first and then a. The resulting orientation is
// renormalized; this is the only defense against unit-norm drift over
// long runs.
func Compose(a, b *Pose) *Pose {
	return &Pose{
		Point:       a.Point.Add(QuatRotate(a.Orientation, b.Point)),
		Orientation: Normalize(quat.Mul(a.Orientation, b.Orientation)),
	}
}

// PoseInverse returns the transform undoing p, such that
// Compose(p, PoseInverse(p)) is the zero pose.
func PoseInverse(p *Pose) *Pose {
	conj := quat.Conj(p.Orientation)
	return &Pose{
		Point:       QuatRotate(conj, p.Point).Mul(-1),
		Orientation: Normalize(conj),
	}
}

// PoseBetween returns the pose of b relative to a, i.e. the transform E
// with Compose(a, E) == b.
func PoseBetween(a, b *Pose) *Pose {
	return Compose(PoseInverse(a), b)
}

// PoseDelta returns the minimal twist carrying a to b: the linear part is
// the relative translation, the angular part is the rotation vector of the
// relative orientation. The result carries no frame tag; the caller owns
// frame bookkeeping.
func PoseDelta(a, b *Pose) Twist {
	e := PoseBetween(a, b)
	return Twist{
		Linear:  e.Point,
		Angular: RotationVector(e.Orientation),
	}
}

// PoseAlmostEqual reports whether two poses are equal within a small
// floating-point tolerance.
func PoseAlmostEqual(a, b *Pose) bool {
	return a.Point.Sub(b.Point).Norm() < 1e-8 &&
		QuaternionAlmostEqual(a.Orientation, b.Orientation, 1e-8)
}
