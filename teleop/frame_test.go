package teleop

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/aldogalvan/force-dimension-ws/spatialmath"
)

func TestFrameMapperRejectsBadSigns(t *testing.T) {
	_, err := NewFrameMapper("dev", quat.Number{Real: 1}, [3]float64{1, 0, 1})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewFrameMapper("dev", quat.Number{Real: 1}, [3]float64{1, 1, 0.5})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFrameMapperTranslationSign(t *testing.T) {
	// z negation is an explicit parameter, not a buried constant.
	m, err := NewFrameMapper("dev", quat.Number{Real: 1}, [3]float64{1, 1, -1})
	test.That(t, err, test.ShouldBeNil)

	p := spatialmath.NewPose(r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}, quat.Number{Real: 1})
	mapped := m.PoseToTeleop(p)
	test.That(t, mapped.Point.X, test.ShouldAlmostEqual, 0.1)
	test.That(t, mapped.Point.Y, test.ShouldAlmostEqual, 0.2)
	test.That(t, mapped.Point.Z, test.ShouldAlmostEqual, -0.3)

	tw := m.TwistToTeleop(spatialmath.Twist{Linear: r3.Vector{Z: 1}, Angular: r3.Vector{Z: 1}})
	test.That(t, tw.Linear.Z, test.ShouldAlmostEqual, -1)
	// Signs apply to translations only, never angular quantities.
	test.That(t, tw.Angular.Z, test.ShouldAlmostEqual, 1)
	test.That(t, tw.Frame, test.ShouldEqual, FrameTeleop)
}

func TestFrameMapperAlignmentRotation(t *testing.T) {
	// +90 degrees about z: device +x is teleop +y.
	align := quat.Number{Real: math.Cos(math.Pi / 4), Kmag: math.Sin(math.Pi / 4)}
	m, err := NewFrameMapper("dev", align, [3]float64{1, 1, 1})
	test.That(t, err, test.ShouldBeNil)

	p := spatialmath.NewPose(r3.Vector{X: 1}, quat.Number{Real: 1})
	mapped := m.PoseToTeleop(p)
	test.That(t, mapped.Point.X, test.ShouldAlmostEqual, 0)
	test.That(t, mapped.Point.Y, test.ShouldAlmostEqual, 1, 1e-10)

	// A rotation about the device x axis becomes one about teleop y.
	angle := 0.5
	p2 := spatialmath.NewPose(r3.Vector{}, quat.Number{Real: math.Cos(angle / 2), Imag: math.Sin(angle / 2)})
	rv := spatialmath.RotationVector(m.PoseToTeleop(p2).Orientation)
	test.That(t, rv.X, test.ShouldAlmostEqual, 0, 1e-10)
	test.That(t, rv.Y, test.ShouldAlmostEqual, angle, 1e-10)
	test.That(t, rv.Z, test.ShouldAlmostEqual, 0, 1e-10)
}

func TestFrameMapperWrenchRoundTrip(t *testing.T) {
	align := spatialmath.QuatFromEulerDegrees(30, -45, 60)
	m, err := NewFrameMapper("dev", align, [3]float64{1, -1, 1})
	test.That(t, err, test.ShouldBeNil)

	// Mapping a device twist to teleop and the matching wrench back must
	// invert exactly.
	tw := m.TwistToTeleop(spatialmath.Twist{Linear: r3.Vector{X: 0.3, Y: -0.1, Z: 0.7}, Angular: r3.Vector{X: 1, Y: 2, Z: 3}})
	force, torque := m.WrenchToDevice(tw.Linear, tw.Angular)
	test.That(t, force.X, test.ShouldAlmostEqual, 0.3, 1e-10)
	test.That(t, force.Y, test.ShouldAlmostEqual, -0.1, 1e-10)
	test.That(t, force.Z, test.ShouldAlmostEqual, 0.7, 1e-10)
	test.That(t, torque.X, test.ShouldAlmostEqual, 1, 1e-10)
	test.That(t, torque.Y, test.ShouldAlmostEqual, 2, 1e-10)
	test.That(t, torque.Z, test.ShouldAlmostEqual, 3, 1e-10)
}
