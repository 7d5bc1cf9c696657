package teleop

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestJoystickGainsValidate(t *testing.T) {
	test.That(t, JoystickGains{Kp: 150, Kd: 5}.Validate(), test.ShouldBeNil)
	test.That(t, JoystickGains{}.Validate(), test.ShouldNotBeNil)
	test.That(t, JoystickGains{Kp: 150, Kd: -1}.Validate(), test.ShouldNotBeNil)
}

func TestJoystickCenteringForce(t *testing.T) {
	// Device displaced 0.1 m on x at rest with kp=150, kd=5 feels a
	// restoring force of (-15, 0, 0) before any frame transform.
	jc, err := NewJoystickController(JoystickGains{Kp: 150, Kd: 5}, identityMapper(t))
	test.That(t, err, test.ShouldBeNil)

	raw := *newDeviceState("dev")
	raw.Pose.Point = r3.Vector{X: 0.1}
	w := jc.Feedback(raw)
	test.That(t, w.Force.X, test.ShouldAlmostEqual, -15, 1e-10)
	test.That(t, w.Force.Y, test.ShouldAlmostEqual, 0)
	test.That(t, w.Force.Z, test.ShouldAlmostEqual, 0)
	test.That(t, w.GripperForce, test.ShouldAlmostEqual, 0)
}

func TestJoystickDamping(t *testing.T) {
	jc, err := NewJoystickController(JoystickGains{Kp: 150, Kd: 5}, identityMapper(t))
	test.That(t, err, test.ShouldBeNil)

	raw := *newDeviceState("dev")
	raw.Pose.Point = r3.Vector{X: 0.1}
	raw.Twist.Linear = r3.Vector{X: 0.2}
	w := jc.Feedback(raw)
	test.That(t, w.Force.X, test.ShouldAlmostEqual, -15-5*0.2, 1e-10)
}

func TestJoystickCenteringTorque(t *testing.T) {
	jc, err := NewJoystickController(JoystickGains{Kp: 1, KpRot: 2, KdRot: 0.5}, identityMapper(t))
	test.That(t, err, test.ShouldBeNil)

	angle := 0.4
	raw := *newDeviceState("dev")
	raw.Pose.Orientation = quat.Number{Real: math.Cos(angle / 2), Jmag: math.Sin(angle / 2)}
	raw.Twist.Angular = r3.Vector{Y: 0.1}
	w := jc.Feedback(raw)
	test.That(t, w.Torque.Y, test.ShouldAlmostEqual, -2*angle-0.5*0.1, 1e-10)
	test.That(t, w.Torque.X, test.ShouldAlmostEqual, 0)
	test.That(t, w.Torque.Z, test.ShouldAlmostEqual, 0)
}
