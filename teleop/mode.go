package teleop

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Mode selects which control law drives the robot and the haptic loop.
type Mode uint8

const (
	// ModeJoystick regulates the device to its origin with a spring-damper
	// and maps displacement to a robot twist.
	ModeJoystick Mode = iota
	// ModeTransparency couples the device to the remote robot's pose so
	// the operator feels contact forces through the virtual coupling.
	ModeTransparency
)

func (m Mode) String() string {
	switch m {
	case ModeJoystick:
		return "joystick"
	case ModeTransparency:
		return "transparency"
	default:
		return "unknown"
	}
}

// ModeFromString parses a configuration mode name.
func ModeFromString(s string) (Mode, error) {
	switch s {
	case "joystick", "":
		return ModeJoystick, nil
	case "transparency":
		return ModeTransparency, nil
	default:
		return ModeJoystick, errors.Errorf("unknown mode %q", s)
	}
}

// ModeArbiter tracks the active mode and guards every transition with a
// delay window during which all outgoing twist and force commands are
// forced to zero, regardless of mode. The guard exists because whichever
// controller takes over has internal state (accumulated PID error, stale
// references) that is wrong for the first instants of the new mode.
type ModeArbiter struct {
	clock      clock.Clock
	guard      time.Duration
	current    Mode
	previous   Mode
	lastSwitch time.Time
	onSwitch   func(from, to Mode)
}

// NewModeArbiter starts in the given mode with no guard pending. onSwitch,
// if non-nil, runs once per transition, before the guard window opens from
// the caller's point of view; the engine uses it to re-anchor references
// and reset controller state.
func NewModeArbiter(clk clock.Clock, guard time.Duration, initial Mode, onSwitch func(from, to Mode)) (*ModeArbiter, error) {
	if guard < 0 {
		return nil, errors.Errorf("mode transition guard %v should not be negative", guard)
	}
	return &ModeArbiter{
		clock:    clk,
		guard:    guard,
		current:  initial,
		previous: initial,
		onSwitch: onSwitch,
	}, nil
}

// Update compares the desired mode against the current one, performing the
// transition bookkeeping on change, and returns the active mode.
func (m *ModeArbiter) Update(desired Mode) Mode {
	if desired != m.current {
		m.previous = m.current
		m.current = desired
		m.lastSwitch = m.clock.Now()
		if m.onSwitch != nil {
			m.onSwitch(m.previous, desired)
		}
	}
	return m.current
}

// Mode returns the active mode without advancing the arbiter.
func (m *ModeArbiter) Mode() Mode { return m.current }

// InGuard reports whether the arbiter is inside the post-switch window
// [lastSwitch, lastSwitch+guard) in which all output must be zero.
func (m *ModeArbiter) InGuard() bool {
	if m.lastSwitch.IsZero() {
		return false
	}
	return m.clock.Now().Sub(m.lastSwitch) < m.guard
}
