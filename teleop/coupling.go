package teleop

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/aldogalvan/force-dimension-ws/spatialmath"
)

// CouplingGains parameterizes the virtual-coupling spring-damper per axis
// group: Kl/Bl translational stiffness and damping, Kr/Br rotational,
// Kg/Bg gripper. Zero Kr disables torque output; zero Kg disables gripper
// force, matching configurations where those channels are absent.
type CouplingGains struct {
	Kl float64 `json:"kl"`
	Bl float64 `json:"bl"`
	Kr float64 `json:"kr"`
	Br float64 `json:"br"`
	Kg float64 `json:"kg"`
	Bg float64 `json:"bg"`
}

// Validate rejects gains that cannot render a stable coupling.
func (g CouplingGains) Validate() error {
	if g.Kl <= 0 {
		return errors.Errorf("coupling kl %f should be positive", g.Kl)
	}
	for name, v := range map[string]float64{"bl": g.Bl, "kr": g.Kr, "br": g.Br, "kg": g.Kg, "bg": g.Bg} {
		if v < 0 {
			return errors.Errorf("coupling %s %f should not be negative", name, v)
		}
	}
	return nil
}

// CouplingReference is the commanded pose and gripper the coupling law
// pulls the device toward, expressed in the teleoperation frame. It comes
// from the robot controller's command echo, not from this engine's own
// output, so saturation or clamping downstream is felt by the operator.
type CouplingReference struct {
	Pose    spatialmath.Pose
	Gripper float64
}

// HapticWrench is a force, torque and gripper force in the device's
// native frame, ready for emission.
type HapticWrench struct {
	Force        r3.Vector
	Torque       r3.Vector
	GripperForce float64
}

// VirtualCouplingController renders haptic feedback for one device by
// connecting the commanded (remote) pose to the raw (local) device state
// with a spring-damper in the teleoperation frame.
type VirtualCouplingController struct {
	gains  CouplingGains
	mapper *FrameMapper
}

// NewVirtualCouplingController validates the gains and binds the
// controller to its device's frame mapper.
func NewVirtualCouplingController(gains CouplingGains, mapper *FrameMapper) (*VirtualCouplingController, error) {
	if err := gains.Validate(); err != nil {
		return nil, err
	}
	return &VirtualCouplingController{gains: gains, mapper: mapper}, nil
}

// Feedback computes the haptic wrench for one tick. The device state is
// given raw, in the device's native frame; the reference in the teleop
// frame. The second return is false when no reference has ever been
// received, in which case the caller must hold its last safe output
// rather than compute against a zero-initialized default.
//
// While the clutch is engaged all three outputs are zero: the operator
// should feel nothing while the mapping is frozen.
func (v *VirtualCouplingController) Feedback(ref *CouplingReference, raw DeviceState, engaged bool) (HapticWrench, bool) {
	if engaged {
		return HapticWrench{}, true
	}
	if ref == nil {
		return HapticWrench{}, false
	}

	pose := v.mapper.PoseToTeleop(&raw.Pose)
	twist := v.mapper.TwistToTeleop(raw.Twist)

	force := ref.Pose.Point.Sub(pose.Point).Mul(v.gains.Kl).
		Sub(twist.Linear.Mul(v.gains.Bl))
	rotErr := spatialmath.RotationVector(
		quat.Mul(ref.Pose.Orientation, quat.Conj(pose.Orientation)))
	torque := rotErr.Mul(v.gains.Kr).Sub(twist.Angular.Mul(v.gains.Br))

	outForce, outTorque := v.mapper.WrenchToDevice(force, torque)
	return HapticWrench{
		Force:        outForce,
		Torque:       outTorque,
		GripperForce: v.gains.Kg*(ref.Gripper-raw.Gripper) - v.gains.Bg*raw.GripperVelocity,
	}, true
}
