// Package teleop implements the bilateral teleoperation control engine:
// frame mapping, clutch engagement, mode arbitration, the virtual-coupling
// haptic law and the tick loops that bind them together.
package teleop

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/aldogalvan/force-dimension-ws/spatialmath"
)

// Well-known frames. Device frames are named per device.
const (
	FrameTeleop    = spatialmath.Frame("teleop")
	FrameRobotBase = spatialmath.Frame("robot_base")
)

// FrameMapper converts between one device's native frame and the common
// teleoperation frame via a fixed alignment rotation. Translation axes may
// additionally carry an explicit sign convention; some devices report one
// or more translation axes negated relative to their rotation convention,
// and the sign must be a visible, tested parameter rather than a buried
// constant. Signs apply to translations and linear velocities only.
type FrameMapper struct {
	device    spatialmath.Frame
	alignment quat.Number // device -> teleop
	inverse   quat.Number
	signs     r3.Vector
}

// NewFrameMapper returns a mapper for the named device frame. Each sign
// must be +1 or -1.
func NewFrameMapper(device string, alignment quat.Number, signs [3]float64) (*FrameMapper, error) {
	for i, s := range signs {
		if s != 1 && s != -1 {
			return nil, errors.Errorf("frame mapper for %s: translation sign %d is %f, should be 1 or -1", device, i, s)
		}
	}
	alignment = spatialmath.Normalize(alignment)
	return &FrameMapper{
		device:    spatialmath.Frame(device),
		alignment: alignment,
		inverse:   quat.Conj(alignment),
		signs:     r3.Vector{X: signs[0], Y: signs[1], Z: signs[2]},
	}, nil
}

// DeviceFrame returns the name of the device's native frame.
func (m *FrameMapper) DeviceFrame() spatialmath.Frame { return m.device }

func (m *FrameMapper) signed(v r3.Vector) r3.Vector {
	return r3.Vector{X: v.X * m.signs.X, Y: v.Y * m.signs.Y, Z: v.Z * m.signs.Z}
}

// PoseToTeleop expresses a device-frame pose in the teleoperation frame.
// Orientations are conjugated by the alignment rotation so that body
// rotations keep their meaning under the change of basis.
func (m *FrameMapper) PoseToTeleop(p *spatialmath.Pose) *spatialmath.Pose {
	return &spatialmath.Pose{
		Point: spatialmath.QuatRotate(m.alignment, m.signed(p.Point)),
		Orientation: spatialmath.Normalize(
			quat.Mul(quat.Mul(m.alignment, p.Orientation), m.inverse)),
	}
}

// TwistToTeleop expresses a device-frame twist in the teleoperation frame.
func (m *FrameMapper) TwistToTeleop(t spatialmath.Twist) spatialmath.Twist {
	return spatialmath.Twist{
		Linear:  spatialmath.QuatRotate(m.alignment, m.signed(t.Linear)),
		Angular: spatialmath.QuatRotate(m.alignment, t.Angular),
		Frame:   FrameTeleop,
	}
}

// WrenchToDevice takes a force and torque expressed in the teleoperation
// frame back into the device's native frame for emission.
func (m *FrameMapper) WrenchToDevice(force, torque r3.Vector) (r3.Vector, r3.Vector) {
	return m.signed(spatialmath.QuatRotate(m.inverse, force)),
		spatialmath.QuatRotate(m.inverse, torque)
}
