package teleop

import (
	"github.com/pkg/errors"

	"github.com/aldogalvan/force-dimension-ws/spatialmath"
)

// ClutchInput is one device's live pose and gripper angle, expressed in
// the teleoperation frame, for a single tick.
type ClutchInput struct {
	Pose    spatialmath.Pose
	Gripper float64
}

// ClutchOutput is the commanded pose and gripper the clutch mapping
// produces for one device on one tick.
type ClutchOutput struct {
	Pose    spatialmath.Pose
	Gripper float64
}

type clutchEntry struct {
	frozenPose    spatialmath.Pose
	frozenGripper float64
	// offsetPose is identity and offsetGripper zero until the first
	// release; they are rewritten on every falling edge thereafter.
	offsetPose    spatialmath.Pose
	offsetGripper float64
}

// ClutchStateMachine implements clutch engagement for any number of
// devices at once. While engaged, each device's commanded pose holds the
// value frozen at the rising edge; on release an offset is computed that
// exactly cancels whatever motion accumulated while clutched, so the
// commanded pose never jumps at a clutch edge.
type ClutchStateMachine struct {
	engaged bool
	entries map[string]*clutchEntry
}

// NewClutchStateMachine tracks the given device names.
func NewClutchStateMachine(devices []string) (*ClutchStateMachine, error) {
	if len(devices) == 0 {
		return nil, errors.New("clutch state machine needs at least one device")
	}
	entries := make(map[string]*clutchEntry, len(devices))
	for _, name := range devices {
		if _, ok := entries[name]; ok {
			return nil, errors.Errorf("duplicate clutch device %q", name)
		}
		entries[name] = &clutchEntry{
			frozenPose: *spatialmath.NewZeroPose(),
			offsetPose: *spatialmath.NewZeroPose(),
		}
	}
	return &ClutchStateMachine{entries: entries}, nil
}

// Engaged reports the current engagement level.
func (c *ClutchStateMachine) Engaged() bool { return c.engaged }

// Update advances the machine one tick with the current clutch signal and
// the live teleop-frame state of every tracked device, and returns the
// commanded pose and gripper per device.
//
// Rising edge: freeze each device's commanded pose and gripper. Falling
// edge: compute the offset transform that, applied to the live pose going
// forward, reproduces the frozen pose at the instant of release. Calling
// Update again with an unchanged signal is a no-op on the stored state.
func (c *ClutchStateMachine) Update(engaged bool, current map[string]ClutchInput) map[string]ClutchOutput {
	switch {
	case engaged && !c.engaged:
		// Freeze the commanded (offset-mapped) value, not the raw input;
		// freezing the raw pose would jump at engagement once an offset
		// from an earlier cycle is in effect.
		for name, in := range current {
			entry, ok := c.entries[name]
			if !ok {
				continue
			}
			entry.frozenPose = *spatialmath.Compose(&entry.offsetPose, &in.Pose)
			entry.frozenGripper = in.Gripper + entry.offsetGripper
		}
	case !engaged && c.engaged:
		for name, in := range current {
			entry, ok := c.entries[name]
			if !ok {
				continue
			}
			entry.offsetPose = *spatialmath.Compose(&entry.frozenPose, spatialmath.PoseInverse(&in.Pose))
			entry.offsetGripper = entry.frozenGripper - in.Gripper
		}
	}
	c.engaged = engaged

	out := make(map[string]ClutchOutput, len(current))
	for name, in := range current {
		entry, ok := c.entries[name]
		if !ok {
			continue
		}
		if c.engaged {
			out[name] = ClutchOutput{Pose: entry.frozenPose, Gripper: entry.frozenGripper}
			continue
		}
		out[name] = ClutchOutput{
			Pose:    *spatialmath.Compose(&entry.offsetPose, &in.Pose),
			Gripper: in.Gripper + entry.offsetGripper,
		}
	}
	return out
}

// ReAnchor rewrites one device's offset so that its commanded pose equals
// target given the device's current live state. Mode transitions use this
// to re-seat the mapping onto the robot's reported pose, so the new mode
// resumes from zero error instead of inheriting whatever discrepancy the
// previous mode left behind.
func (c *ClutchStateMachine) ReAnchor(device string, target spatialmath.Pose, targetGripper float64, current ClutchInput) error {
	entry, ok := c.entries[device]
	if !ok {
		return errors.Errorf("clutch state machine does not track device %q", device)
	}
	entry.offsetPose = *spatialmath.Compose(&target, spatialmath.PoseInverse(&current.Pose))
	entry.offsetGripper = targetGripper - current.Gripper
	if c.engaged {
		entry.frozenPose = target
		entry.frozenGripper = targetGripper
	}
	return nil
}
