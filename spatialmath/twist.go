package spatialmath

import "github.com/golang/geo/r3"

// Frame names the coordinate frame a spatial quantity is expressed in.
// Mixing frames silently is the principal correctness hazard in
// teleoperation math, so twists carry their frame with them.
type Frame string

// Twist is a linear and angular velocity (or a small displacement, when
// used as a pose delta) expressed in a named frame.
type Twist struct {
	Linear  r3.Vector
	Angular r3.Vector
	Frame   Frame
}

// InFrame returns a copy of the twist tagged with the given frame.
func (t Twist) InFrame(f Frame) Twist {
	t.Frame = f
	return t
}

// IsZero reports whether both components are exactly zero.
func (t Twist) IsZero() bool {
	return t.Linear == (r3.Vector{}) && t.Angular == (r3.Vector{})
}
