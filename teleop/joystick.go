package teleop

import (
	"github.com/pkg/errors"

	"github.com/aldogalvan/force-dimension-ws/spatialmath"
)

// JoystickGains parameterizes the spring-damper that regulates the device
// back to its origin in joystick mode. KpRot zero disables the rotational
// centering torque.
type JoystickGains struct {
	Kp    float64 `json:"kp"`
	Kd    float64 `json:"kd"`
	KpRot float64 `json:"kp_rot"`
	KdRot float64 `json:"kd_rot"`
}

// Validate rejects gains that cannot center the device.
func (g JoystickGains) Validate() error {
	if g.Kp <= 0 {
		return errors.Errorf("joystick kp %f should be positive", g.Kp)
	}
	for name, v := range map[string]float64{"kd": g.Kd, "kp_rot": g.KpRot, "kd_rot": g.KdRot} {
		if v < 0 {
			return errors.Errorf("joystick %s %f should not be negative", name, v)
		}
	}
	return nil
}

// JoystickController renders the spring-damper-to-origin haptic law for
// one device. Unlike the virtual coupling it needs no remote reference:
// the origin of the teleoperation frame is the setpoint.
type JoystickController struct {
	gains  JoystickGains
	mapper *FrameMapper
}

// NewJoystickController validates the gains and binds the controller to
// its device's frame mapper.
func NewJoystickController(gains JoystickGains, mapper *FrameMapper) (*JoystickController, error) {
	if err := gains.Validate(); err != nil {
		return nil, err
	}
	return &JoystickController{gains: gains, mapper: mapper}, nil
}

// Feedback computes the centering wrench for one tick from the raw device
// state. The law runs in the teleoperation frame and the result is taken
// back to the device frame for emission.
func (j *JoystickController) Feedback(raw DeviceState) HapticWrench {
	pose := j.mapper.PoseToTeleop(&raw.Pose)
	twist := j.mapper.TwistToTeleop(raw.Twist)

	force := pose.Point.Mul(-j.gains.Kp).Sub(twist.Linear.Mul(j.gains.Kd))
	torque := spatialmath.RotationVector(pose.Orientation).Mul(-j.gains.KpRot).
		Sub(twist.Angular.Mul(j.gains.KdRot))

	outForce, outTorque := j.mapper.WrenchToDevice(force, torque)
	return HapticWrench{Force: outForce, Torque: outTorque}
}
