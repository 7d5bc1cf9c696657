package teleop

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/aldogalvan/force-dimension-ws/input"
	"github.com/aldogalvan/force-dimension-ws/spatialmath"
	"github.com/aldogalvan/force-dimension-ws/transport"
)

type engineHarness struct {
	engine *Engine
	bus    *transport.Loopback
	clutch *input.Bool
	mode   *input.Int
	clock  *clock.Mock
}

func newEngineHarness(t *testing.T, cfg *Config) *engineHarness {
	t.Helper()
	logger := golog.NewTestLogger(t)
	bus := transport.NewLoopback(16)
	clutch := input.NewBool(false)
	initial, err := ModeFromString(cfg.Control.InitialMode)
	test.That(t, err, test.ShouldBeNil)
	mode := input.NewInt(int(initial))
	mock := clock.NewMock()
	engine, err := NewEngine(cfg, clutch, mode, bus.Feedback(), bus, mock, logger)
	test.That(t, err, test.ShouldBeNil)
	return &engineHarness{engine: engine, bus: bus, clutch: clutch, mode: mode, clock: mock}
}

func (h *engineHarness) lastWrench(t *testing.T) (transport.Wrench, bool) {
	t.Helper()
	var w transport.Wrench
	got := false
	for {
		select {
		case w = <-h.bus.Wrenches():
			got = true
		default:
			return w, got
		}
	}
}

func (h *engineHarness) lastMotion(t *testing.T) (transport.MotionCommand, bool) {
	t.Helper()
	var m transport.MotionCommand
	got := false
	for {
		select {
		case m = <-h.bus.Motions():
			got = true
		default:
			return m, got
		}
	}
}

func deviceFeedback(pos r3.Vector) transport.Feedback {
	return transport.Feedback{
		Device:      "lambda7-left",
		Position:    pos,
		Orientation: [4]float64{1, 0, 0, 0},
	}
}

func robotFeedback(pos r3.Vector, echo *transport.PoseEcho) transport.Feedback {
	return transport.Feedback{
		Device:        "arm",
		Position:      pos,
		Orientation:   [4]float64{1, 0, 0, 0},
		CommandedEcho: echo,
	}
}

func TestEngineJoystickHapticScenario(t *testing.T) {
	cfg := validConfig()
	h := newEngineHarness(t, cfg)

	h.engine.HandleFeedback(deviceFeedback(r3.Vector{X: 0.1}))
	h.engine.hapticTick()

	w, ok := h.lastWrench(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, w.Device, test.ShouldEqual, "lambda7-left")
	test.That(t, w.Force.X, test.ShouldAlmostEqual, -15, 1e-10)
	test.That(t, w.Force.Y, test.ShouldAlmostEqual, 0)
	test.That(t, w.Force.Z, test.ShouldAlmostEqual, 0)
}

func TestEngineJoystickMotion(t *testing.T) {
	cfg := validConfig()
	h := newEngineHarness(t, cfg)

	h.engine.HandleFeedback(deviceFeedback(r3.Vector{X: 0.2}))
	h.engine.commandTick()

	m, ok := h.lastMotion(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.Robot, test.ShouldEqual, "arm")
	test.That(t, m.Pose, test.ShouldBeNil)
	test.That(t, m.Twist.Linear.X, test.ShouldAlmostEqual, 0.1, 1e-10) // 0.2 * rate 0.5
}

func TestEngineClutchZeroesWrenchAndTwist(t *testing.T) {
	cfg := validConfig()
	h := newEngineHarness(t, cfg)

	h.engine.HandleFeedback(deviceFeedback(r3.Vector{X: 0.3}))
	h.clutch.Set(true)
	h.engine.hapticTick()
	h.engine.commandTick()

	w, ok := h.lastWrench(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, w.Force, test.ShouldResemble, r3.Vector{})
	test.That(t, w.Torque, test.ShouldResemble, r3.Vector{})
	test.That(t, w.GripperForce, test.ShouldAlmostEqual, 0)

	m, ok := h.lastMotion(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.Twist, test.ShouldNotBeNil)
	test.That(t, *m.Twist, test.ShouldResemble, transport.TwistCommand{})
}

func TestEngineGuardWindowForcesZero(t *testing.T) {
	cfg := validConfig()
	h := newEngineHarness(t, cfg)

	h.engine.HandleFeedback(deviceFeedback(r3.Vector{X: 0.1}))
	h.mode.Set(int(ModeTransparency))
	h.engine.hapticTick()
	h.engine.commandTick()

	// Inside [t0, t0+guard): zero wrench, zero twist, regardless of state.
	w, ok := h.lastWrench(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, w.Force, test.ShouldResemble, r3.Vector{})
	m, ok := h.lastMotion(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.Twist, test.ShouldNotBeNil)
	test.That(t, *m.Twist, test.ShouldResemble, transport.TwistCommand{})

	// Still guarded one tick before expiry.
	h.clock.Add(499 * time.Millisecond)
	h.engine.commandTick()
	m, ok = h.lastMotion(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, *m.Twist, test.ShouldResemble, transport.TwistCommand{})

	// After the guard elapses the transparency controller runs.
	h.clock.Add(2 * time.Millisecond)
	h.engine.commandTick()
	m, ok = h.lastMotion(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.Twist, test.ShouldNotBeNil)
}

func TestEngineCouplingHoldsWithoutEcho(t *testing.T) {
	cfg := validConfig()
	cfg.Control.InitialMode = "transparency"
	h := newEngineHarness(t, cfg)

	// No echo has ever arrived: the engine must not compute feedback
	// against defaulted state, so nothing is emitted.
	h.engine.HandleFeedback(deviceFeedback(r3.Vector{X: 0.5}))
	h.engine.hapticTick()
	_, ok := h.lastWrench(t)
	test.That(t, ok, test.ShouldBeFalse)

	// Once the robot echoes a command, feedback flows.
	h.engine.HandleFeedback(robotFeedback(r3.Vector{}, &transport.PoseEcho{
		Position:    r3.Vector{X: 0.5},
		Orientation: [4]float64{1, 0, 0, 0},
	}))
	h.engine.hapticTick()
	w, ok := h.lastWrench(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, w.Force.X, test.ShouldAlmostEqual, 0, 1e-10)
}

func TestEngineTransparencyPoseCommand(t *testing.T) {
	cfg := validConfig()
	cfg.Robots[0].TwistServo = false
	cfg.Control.InitialMode = "transparency"
	cfg.Robots[0].BaseTranslation = Translation{X: 1}
	h := newEngineHarness(t, cfg)

	h.engine.HandleFeedback(deviceFeedback(r3.Vector{X: 0.2}))
	h.engine.commandTick()

	m, ok := h.lastMotion(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.Twist, test.ShouldBeNil)
	test.That(t, m.Pose, test.ShouldNotBeNil)
	// Device pose mapped through the teleop->base transform.
	test.That(t, m.Pose.Position.X, test.ShouldAlmostEqual, 1.2, 1e-10)
}

func TestEngineTransparencyTwistServo(t *testing.T) {
	cfg := validConfig()
	cfg.Control.InitialMode = "transparency"
	h := newEngineHarness(t, cfg)

	// Robot reported at origin, device commanded at x=0.2: PID with pure
	// kp=1 on each axis outputs the positional error as a twist.
	h.engine.HandleFeedback(deviceFeedback(r3.Vector{X: 0.2}))
	h.engine.HandleFeedback(robotFeedback(r3.Vector{}, nil))
	h.engine.commandTick()

	m, ok := h.lastMotion(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.Pose, test.ShouldBeNil)
	test.That(t, m.Twist, test.ShouldNotBeNil)
	test.That(t, m.Twist.Linear.X, test.ShouldAlmostEqual, 0.2, 1e-10)
}

func TestEngineModeSwitchReAnchors(t *testing.T) {
	cfg := validConfig()
	cfg.Robots[0].TwistServo = false
	h := newEngineHarness(t, cfg)

	// Robot sits at x=0.7 in base frame; the device is elsewhere.
	h.engine.HandleFeedback(deviceFeedback(r3.Vector{X: 0.1}))
	h.engine.HandleFeedback(robotFeedback(r3.Vector{X: 0.7}, nil))

	// Switch to transparency and run out the guard.
	h.mode.Set(int(ModeTransparency))
	h.engine.commandTick()
	h.clock.Add(time.Second)
	h.engine.commandTick()

	// The commanded pose resumes from the robot's reported pose: zero
	// error at the instant the new mode takes effect.
	m, ok := h.lastMotion(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.Pose, test.ShouldNotBeNil)
	test.That(t, m.Pose.Position.X, test.ShouldAlmostEqual, 0.7, 1e-10)

	// Device motion after the switch tracks relative to that anchor.
	h.engine.HandleFeedback(deviceFeedback(r3.Vector{X: 0.15}))
	h.engine.commandTick()
	m, ok = h.lastMotion(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.Pose.Position.X, test.ShouldAlmostEqual, 0.75, 1e-10)
}

func TestEngineScalarLastIngest(t *testing.T) {
	cfg := validConfig()
	cfg.Devices[0].ScalarLastOrientation = true
	h := newEngineHarness(t, cfg)

	// 90 degrees about z in xyzw ordering.
	s := 0.7071067811865476
	h.engine.HandleFeedback(transport.Feedback{
		Device:      "lambda7-left",
		Orientation: [4]float64{0, 0, s, s},
	})
	got := h.engine.devices["lambda7-left"].state.Pose.Orientation
	want := spatialmath.QuatFromXYZW([4]float64{0, 0, s, s})
	test.That(t, spatialmath.QuaternionAlmostEqual(got, want, 1e-10), test.ShouldBeTrue)
	test.That(t, got.Real, test.ShouldAlmostEqual, s)
	test.That(t, got.Kmag, test.ShouldAlmostEqual, s)
}

func TestEngineUnknownFeedbackDropped(t *testing.T) {
	cfg := validConfig()
	h := newEngineHarness(t, cfg)
	h.engine.HandleFeedback(transport.Feedback{Device: "ghost", Orientation: [4]float64{1, 0, 0, 0}})
	h.engine.hapticTick()
	w, ok := h.lastWrench(t)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, w.Device, test.ShouldEqual, "lambda7-left")
}
