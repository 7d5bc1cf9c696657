package teleop

import (
	"github.com/aldogalvan/force-dimension-ws/spatialmath"
	"github.com/aldogalvan/force-dimension-ws/transport"
)

// DeviceState is the latest-value store for one device (or the remote
// robot's end effector): the most recent pose, twist and gripper state
// delivered by transport feedback. It is created at startup with an
// identity pose and zero velocities and lives for the process lifetime.
//
// All fields are plain values so a struct copy is a consistent snapshot;
// the engine takes that copy once at the start of each tick under its
// lock and never re-reads mid-computation.
type DeviceState struct {
	Pose            spatialmath.Pose
	Twist           spatialmath.Twist
	Gripper         float64
	GripperVelocity float64
}

func newDeviceState(frame spatialmath.Frame) *DeviceState {
	return &DeviceState{
		Pose:  *spatialmath.NewZeroPose(),
		Twist: spatialmath.Twist{Frame: frame},
	}
}

// applyFeedback overwrites the store from a feedback bundle. The
// orientation is renormalized defensively; a non-unit quaternion from
// upstream must not propagate into composition math. scalarLast selects
// the wire ordering conversion for this device.
func (s *DeviceState) applyFeedback(fb transport.Feedback, scalarLast bool) {
	s.Pose.Point = fb.Position
	if scalarLast {
		s.Pose.Orientation = spatialmath.QuatFromXYZW(fb.Orientation)
	} else {
		s.Pose.Orientation = spatialmath.QuatFromWXYZ(fb.Orientation)
	}
	s.Twist.Linear = fb.LinearVelocity
	s.Twist.Angular = fb.AngularVelocity
	s.Gripper = fb.GripperAngle
	s.GripperVelocity = fb.GripperVelocity
}
