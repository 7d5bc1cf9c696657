package teleop

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/aldogalvan/force-dimension-ws/control"
	"github.com/aldogalvan/force-dimension-ws/spatialmath"
)

// Translation is a displacement between two frames, in meters.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// EulerDegrees is a rotation given as intrinsic XYZ angles in degrees, the
// form alignment rotations are written in configuration files.
type EulerDegrees struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// DeviceConfig describes one haptic input device.
type DeviceConfig struct {
	Name string `json:"name"`
	// Robot names the remote end effector this device drives; empty means
	// the device renders haptics only.
	Robot string `json:"robot,omitempty"`
	// Alignment is the fixed rotation from the device's native frame into
	// the teleoperation frame.
	Alignment EulerDegrees `json:"alignment"`
	// TranslationSigns makes per-axis sign conventions explicit; each
	// entry must be 1 or -1. Defaults to all 1.
	TranslationSigns [3]float64 `json:"translation_signs,omitempty"`
	// ScalarLastOrientation marks devices whose wire format orders
	// quaternions (x, y, z, w); conversion happens once, at ingest.
	ScalarLastOrientation bool `json:"scalar_last_orientation,omitempty"`

	Joystick JoystickGains `json:"joystick"`
	Coupling CouplingGains `json:"coupling"`
}

// RobotConfig describes one remote manipulator.
type RobotConfig struct {
	Name string `json:"name"`
	// BaseTranslation and BaseOrientation give the fixed transform from
	// the teleoperation frame to the robot's base frame.
	BaseTranslation Translation  `json:"base_translation"`
	BaseOrientation EulerDegrees `json:"base_orientation"`
	// TwistServo selects the command the robot accepts in transparency
	// mode: true emits a PID-servoed twist toward the commanded pose,
	// false emits the commanded pose and gripper directly.
	TwistServo            bool `json:"twist_servo,omitempty"`
	ScalarLastOrientation bool `json:"scalar_last_orientation,omitempty"`
}

// RateGains map clutch-mapped displacement to robot twist in joystick
// mode, (m, rad) to (m/s, rad/s).
type RateGains struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// ControlConfig holds the loop rates, mode arbitration parameters, and the
// twist-servo controller gains.
type ControlConfig struct {
	HapticHz     float64           `json:"haptic_hz"`
	CommandHz    float64           `json:"command_hz"`
	GuardMS      float64           `json:"guard_ms"`
	InitialMode  string            `json:"initial_mode,omitempty"`
	JoystickRate RateGains         `json:"joystick_rate"`
	PID          control.PIDConfig `json:"pid"`
}

// Config is the full engine configuration. Nothing in the control core is
// hard-coded; a missing required gain fails Ensure and aborts startup
// rather than surfacing mid-loop.
type Config struct {
	Devices []DeviceConfig `json:"devices"`
	Robots  []RobotConfig  `json:"robots"`
	Control ControlConfig  `json:"control"`
}

// maxLoopHz bounds configured loop rates; haptic rendering rarely needs
// more than a few kHz and a larger value is almost certainly a typo.
const maxLoopHz = 4000

// Ensure validates the configuration and fills defaults in place.
func (c *Config) Ensure() error {
	if len(c.Devices) == 0 {
		return errors.New("config should have at least one device")
	}
	deviceNames := map[string]bool{}
	robotNames := map[string]bool{}
	for i := range c.Robots {
		r := &c.Robots[i]
		if r.Name == "" {
			return errors.Errorf("robot %d should have a name", i)
		}
		if robotNames[r.Name] {
			return errors.Errorf("duplicate robot name %q", r.Name)
		}
		robotNames[r.Name] = true
	}
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Name == "" {
			return errors.Errorf("device %d should have a name", i)
		}
		if deviceNames[d.Name] {
			return errors.Errorf("duplicate device name %q", d.Name)
		}
		deviceNames[d.Name] = true
		if d.Robot != "" && !robotNames[d.Robot] {
			return errors.Errorf("device %q drives unknown robot %q", d.Name, d.Robot)
		}
		if d.TranslationSigns == ([3]float64{}) {
			d.TranslationSigns = [3]float64{1, 1, 1}
		}
		for axis, s := range d.TranslationSigns {
			if s != 1 && s != -1 {
				return errors.Errorf("device %q translation sign %d is %f, should be 1 or -1", d.Name, axis, s)
			}
		}
		if err := d.Joystick.Validate(); err != nil {
			return errors.Wrapf(err, "device %q", d.Name)
		}
		if err := d.Coupling.Validate(); err != nil {
			return errors.Wrapf(err, "device %q", d.Name)
		}
	}
	if c.Control.HapticHz <= 0 || c.Control.HapticHz > maxLoopHz {
		return errors.Errorf("haptic_hz %f should be in (0, %d]", c.Control.HapticHz, maxLoopHz)
	}
	if c.Control.CommandHz <= 0 || c.Control.CommandHz > maxLoopHz {
		return errors.Errorf("command_hz %f should be in (0, %d]", c.Control.CommandHz, maxLoopHz)
	}
	if c.Control.GuardMS < 0 {
		return errors.Errorf("guard_ms %f should not be negative", c.Control.GuardMS)
	}
	if _, err := ModeFromString(c.Control.InitialMode); err != nil {
		return err
	}
	if c.anyTwistServo() {
		if err := c.Control.PID.Validate(); err != nil {
			return errors.Wrap(err, "twist_servo robot configured")
		}
	}
	if c.anyDriving() {
		if c.Control.JoystickRate.Linear <= 0 || c.Control.JoystickRate.Angular < 0 {
			return errors.Errorf("joystick_rate linear %f should be positive and angular %f should not be negative",
				c.Control.JoystickRate.Linear, c.Control.JoystickRate.Angular)
		}
	}
	return nil
}

func (c *Config) anyTwistServo() bool {
	for _, d := range c.Devices {
		if d.Robot == "" {
			continue
		}
		for _, r := range c.Robots {
			if r.Name == d.Robot && r.TwistServo {
				return true
			}
		}
	}
	return false
}

func (c *Config) anyDriving() bool {
	for _, d := range c.Devices {
		if d.Robot != "" {
			return true
		}
	}
	return false
}

// AlignmentQuat returns the configured device-to-teleop rotation.
func (d *DeviceConfig) AlignmentQuat() quat.Number {
	return spatialmath.QuatFromEulerDegrees(d.Alignment.Roll, d.Alignment.Pitch, d.Alignment.Yaw)
}

// BaseTransform returns the configured teleop-to-base transform.
func (r *RobotConfig) BaseTransform() *spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: r.BaseTranslation.X, Y: r.BaseTranslation.Y, Z: r.BaseTranslation.Z},
		spatialmath.QuatFromEulerDegrees(r.BaseOrientation.Roll, r.BaseOrientation.Pitch, r.BaseOrientation.Yaw),
	)
}

// ReadConfig reads a config from the given file, substituting environment
// variables first so deployments can template gains per site.
func ReadConfig(path string) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ConfigFromReader(bytes.NewReader(buf))
}

// ConfigFromReader reads and validates a config from the given reader.
func ConfigFromReader(r io.Reader) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
