package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"

	"github.com/aldogalvan/force-dimension-ws/utils"
)

// The engine is scalar-first (w, x, y, z) throughout. Upstream devices
// differ on ordering, so conversion happens exactly once, at the wire
// boundary, through the two functions below.

// QuatFromWXYZ builds a quaternion from scalar-first components,
// normalizing defensively.
func QuatFromWXYZ(c [4]float64) quat.Number {
	return Normalize(quat.Number{Real: c[0], Imag: c[1], Jmag: c[2], Kmag: c[3]})
}

// QuatToWXYZ returns the scalar-first components of q.
func QuatToWXYZ(q quat.Number) [4]float64 {
	return [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}
}

// QuatFromXYZW builds a quaternion from scalar-last components, the
// ordering used by some device SDKs, normalizing defensively.
func QuatFromXYZW(c [4]float64) quat.Number {
	return Normalize(quat.Number{Real: c[3], Imag: c[0], Jmag: c[1], Kmag: c[2]})
}

// QuatToXYZW returns the scalar-last components of q.
func QuatToXYZW(q quat.Number) [4]float64 {
	return [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real}
}

// QuatFromEulerDegrees builds the rotation quaternion for intrinsic XYZ
// (roll, pitch, yaw) angles given in degrees. Used for the fixed
// frame-alignment rotations supplied in configuration.
func QuatFromEulerDegrees(roll, pitch, yaw float64) quat.Number {
	q := mgl64.AnglesToQuat(utils.DegToRad(roll), utils.DegToRad(pitch), utils.DegToRad(yaw), mgl64.XYZ)
	return Normalize(quat.Number{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]})
}
