// Package transport defines the typed messages exchanged with the
// pub/sub middleware and a channel-based bus abstraction over it. The
// middleware itself (delivery, QoS, serialization) lives outside this
// module; the engine only ever sees these structs on Go channels.
package transport

import "github.com/golang/geo/r3"

// Feedback is the per-device state bundle delivered asynchronously by the
// middleware. Orientation is scalar-first (w, x, y, z); adapters for
// scalar-last wire formats convert before constructing a Feedback.
type Feedback struct {
	Device          string
	Position        r3.Vector
	Orientation     [4]float64
	LinearVelocity  r3.Vector
	AngularVelocity r3.Vector
	GripperAngle    float64
	GripperVelocity float64

	// CommandedEcho is set only on robot-side feedback: the controller's
	// echo of the last commanded pose and gripper, used by the virtual
	// coupling law as its reference.
	CommandedEcho *PoseEcho
}

// PoseEcho is a commanded pose plus gripper angle as reported back by the
// remote robot controller.
type PoseEcho struct {
	Position    r3.Vector
	Orientation [4]float64
	Gripper     float64
}

// Wrench is the haptic output for one device: a force, an optional torque,
// and an optional gripper force.
type Wrench struct {
	Device       string
	Force        r3.Vector
	Torque       r3.Vector
	GripperForce float64
}

// TwistCommand is a Cartesian velocity command in the robot base frame.
type TwistCommand struct {
	Linear  r3.Vector
	Angular r3.Vector
}

// PoseCommand is a Cartesian pose plus gripper command in the robot base
// frame. Orientation is scalar-first.
type PoseCommand struct {
	Position    r3.Vector
	Orientation [4]float64
	Gripper     float64
}

// MotionCommand is the per-tick command to the remote robot. Exactly one
// of Twist or Pose is set in steady state; during a mode-transition guard
// window a zero Twist is emitted.
type MotionCommand struct {
	Robot string
	Twist *TwistCommand
	Pose  *PoseCommand
}
