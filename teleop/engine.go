package teleop

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/aldogalvan/force-dimension-ws/control"
	"github.com/aldogalvan/force-dimension-ws/input"
	"github.com/aldogalvan/force-dimension-ws/spatialmath"
	"github.com/aldogalvan/force-dimension-ws/transport"
)

// deviceChannel bundles one input device's state with the controllers
// bound to it.
type deviceChannel struct {
	cfg      DeviceConfig
	state    *DeviceState
	mapper   *FrameMapper
	joystick *JoystickController
	coupling *VirtualCouplingController
	// pid is non-nil when this device twist-servos its robot.
	pid *control.FilteredPID

	// lastWrench is the last safe haptic output, re-emitted while the
	// coupling reference is missing.
	lastWrench HapticWrench
	haveWrench bool
}

// robotChannel bundles one remote robot's reported state with its frame
// bookkeeping.
type robotChannel struct {
	cfg     RobotConfig
	state   *DeviceState
	base    *spatialmath.Pose // teleop -> base
	baseInv *spatialmath.Pose
	// echo is the robot controller's commanded-pose echo, already taken
	// into the teleop frame; nil until the first echo arrives.
	echo *CouplingReference
}

// Engine runs the teleoperation pipeline. Feedback callbacks and two
// fixed-period ticks (a fast haptic tick, a slower command tick) share the
// device stores, clutch, arbiter and PID state; one mutex around the whole
// bundle preserves the cooperative scheduler's mutual-exclusion guarantee
// under Go's preemptive goroutines. Each tick takes its state snapshot
// once, at the start, under that lock.
type Engine struct {
	mu     sync.Mutex
	cfg    *Config
	logger golog.Logger
	clock  clock.Clock

	clutchSignal input.BoolSignal
	modeSignal   input.IntSignal
	feedback     <-chan transport.Feedback
	sink         transport.CommandSink

	devices map[string]*deviceChannel
	robots  map[string]*robotChannel
	clutch  *ClutchStateMachine
	arbiter *ModeArbiter

	lastEngaged     bool
	lastCommandTick time.Time

	workers sync.WaitGroup
	cancel  context.CancelFunc
	running bool
}

// NewEngine validates the config and assembles the pipeline. The clutch
// and mode signals are injected so the core carries no dependency on any
// input-capture mechanism; clk may be nil for wall-clock time.
func NewEngine(
	cfg *Config,
	clutchSignal input.BoolSignal,
	modeSignal input.IntSignal,
	feedback <-chan transport.Feedback,
	sink transport.CommandSink,
	clk clock.Clock,
	logger golog.Logger,
) (*Engine, error) {
	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	e := &Engine{
		cfg:          cfg,
		logger:       logger,
		clock:        clk,
		clutchSignal: clutchSignal,
		modeSignal:   modeSignal,
		feedback:     feedback,
		sink:         sink,
		devices:      make(map[string]*deviceChannel, len(cfg.Devices)),
		robots:       make(map[string]*robotChannel, len(cfg.Robots)),
	}

	for _, rc := range cfg.Robots {
		base := rc.BaseTransform()
		e.robots[rc.Name] = &robotChannel{
			cfg:     rc,
			state:   newDeviceState(FrameRobotBase),
			base:    base,
			baseInv: spatialmath.PoseInverse(base),
		}
	}

	deviceNames := make([]string, 0, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		mapper, err := NewFrameMapper(dc.Name, dc.AlignmentQuat(), dc.TranslationSigns)
		if err != nil {
			return nil, err
		}
		joystick, err := NewJoystickController(dc.Joystick, mapper)
		if err != nil {
			return nil, err
		}
		coupling, err := NewVirtualCouplingController(dc.Coupling, mapper)
		if err != nil {
			return nil, err
		}
		dch := &deviceChannel{
			cfg:      dc,
			state:    newDeviceState(mapper.DeviceFrame()),
			mapper:   mapper,
			joystick: joystick,
			coupling: coupling,
		}
		if dc.Robot != "" && e.robots[dc.Robot].cfg.TwistServo {
			pid, err := control.NewFilteredPID(cfg.Control.PID)
			if err != nil {
				return nil, err
			}
			dch.pid = pid
		}
		e.devices[dc.Name] = dch
		deviceNames = append(deviceNames, dc.Name)
	}

	clutchSM, err := NewClutchStateMachine(deviceNames)
	if err != nil {
		return nil, err
	}
	e.clutch = clutchSM

	initial, err := ModeFromString(cfg.Control.InitialMode)
	if err != nil {
		return nil, err
	}
	guard := time.Duration(cfg.Control.GuardMS * float64(time.Millisecond))
	arbiter, err := NewModeArbiter(clk, guard, initial, e.onModeSwitch)
	if err != nil {
		return nil, err
	}
	e.arbiter = arbiter
	return e, nil
}

// Start launches the feedback pump and the two tick loops. It does not
// block; Close stops everything.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("engine already started")
	}
	e.running = true
	cancelCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	hapticPeriod := hzToPeriod(e.cfg.Control.HapticHz)
	commandPeriod := hzToPeriod(e.cfg.Control.CommandHz)
	e.logger.Infow("engine starting",
		"devices", len(e.devices),
		"robots", len(e.robots),
		"haptic_period", hapticPeriod,
		"command_period", commandPeriod,
	)

	e.workers.Add(3)
	goutils.ManagedGo(func() { e.feedbackPump(cancelCtx) }, e.workers.Done)
	goutils.ManagedGo(func() { e.tickLoop(cancelCtx, hapticPeriod, e.hapticTick) }, e.workers.Done)
	goutils.ManagedGo(func() { e.tickLoop(cancelCtx, commandPeriod, e.commandTick) }, e.workers.Done)
	return nil
}

// Close stops scheduling further ticks and waits for in-flight ones. Each
// tick is a complete, side-effect-bounded unit, so there is no in-flight
// work to cancel beyond the loops themselves.
func (e *Engine) Close() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.workers.Wait()
	e.logger.Info("engine stopped")
	return nil
}

func hzToPeriod(hz float64) time.Duration {
	return time.Duration(float64(time.Second) / hz)
}

func (e *Engine) tickLoop(ctx context.Context, period time.Duration, tick func()) {
	ticker := e.clock.Ticker(period)
	defer ticker.Stop()
	for {
		if !goutils.SelectContextOrWaitChan(ctx, ticker.C) {
			return
		}
		tick()
	}
}

func (e *Engine) feedbackPump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fb, ok := <-e.feedback:
			if !ok {
				return
			}
			e.HandleFeedback(fb)
		}
	}
}

// HandleFeedback updates the latest-value store for the named device or
// robot. Unknown sources are dropped with a debug log; a teleoperation
// loop absorbs bad samples instead of faulting.
func (e *Engine) HandleFeedback(fb transport.Feedback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dch, ok := e.devices[fb.Device]; ok {
		dch.state.applyFeedback(fb, dch.cfg.ScalarLastOrientation)
		return
	}
	rch, ok := e.robots[fb.Device]
	if !ok {
		e.logger.Debugw("dropping feedback from unknown source", "device", fb.Device)
		return
	}
	rch.state.applyFeedback(fb, rch.cfg.ScalarLastOrientation)
	if fb.CommandedEcho == nil {
		return
	}
	echoBase := spatialmath.Pose{Point: fb.CommandedEcho.Position}
	if rch.cfg.ScalarLastOrientation {
		echoBase.Orientation = spatialmath.QuatFromXYZW(fb.CommandedEcho.Orientation)
	} else {
		echoBase.Orientation = spatialmath.QuatFromWXYZ(fb.CommandedEcho.Orientation)
	}
	rch.echo = &CouplingReference{
		Pose:    *spatialmath.Compose(rch.baseInv, &echoBase),
		Gripper: fb.CommandedEcho.Gripper,
	}
}

// desiredMode reads the injected mode selector, holding the current mode
// on out-of-range values.
func (e *Engine) desiredMode() Mode {
	v := e.modeSignal.Get()
	if v < int(ModeJoystick) || v > int(ModeTransparency) {
		return e.arbiter.Mode()
	}
	return Mode(v)
}

// clutchInputs maps every device's live pose and gripper into the teleop
// frame for the clutch state machine.
func (e *Engine) clutchInputs() map[string]ClutchInput {
	inputs := make(map[string]ClutchInput, len(e.devices))
	for name, dch := range e.devices {
		inputs[name] = ClutchInput{
			Pose:    *dch.mapper.PoseToTeleop(&dch.state.Pose),
			Gripper: dch.state.Gripper,
		}
	}
	return inputs
}

// onModeSwitch runs under the engine lock, from whichever tick detected
// the transition. Entering transparency re-seats each driving device's
// mapping onto its robot's reported pose so the coupling resumes from
// zero error, and resets the twist-servo PID so no stale integral carries
// across the switch.
func (e *Engine) onModeSwitch(from, to Mode) {
	e.logger.Infow("mode switch", "from", from.String(), "to", to.String())
	if to != ModeTransparency {
		return
	}
	inputs := e.clutchInputs()
	for name, dch := range e.devices {
		if dch.cfg.Robot == "" {
			continue
		}
		rch := e.robots[dch.cfg.Robot]
		reported := spatialmath.Compose(rch.baseInv, &rch.state.Pose)
		if err := e.clutch.ReAnchor(name, *reported, rch.state.Gripper, inputs[name]); err != nil {
			e.logger.Errorw("cannot re-anchor device", "device", name, "error", err)
		}
		if dch.pid != nil {
			dch.pid.Reset()
		}
	}
}

// hapticTick renders one wrench per device: zero inside the guard window
// or while clutched, the joystick centering law or the virtual coupling
// otherwise. A device whose coupling reference is still missing re-emits
// its last safe wrench rather than computing against defaulted state.
func (e *Engine) hapticTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	engaged := e.clutchSignal.Get()
	if engaged != e.lastEngaged {
		e.logger.Debugw("clutch edge", "engaged", engaged)
		e.lastEngaged = engaged
	}
	mode := e.arbiter.Update(e.desiredMode())
	e.clutch.Update(engaged, e.clutchInputs())
	guard := e.arbiter.InGuard()

	for name, dch := range e.devices {
		raw := *dch.state
		var wrench HapticWrench
		switch {
		case guard || engaged:
			// Forced zero: the operator feels nothing during a mode
			// transition or while the mapping is frozen.
		case mode == ModeJoystick:
			wrench = dch.joystick.Feedback(raw)
		default:
			w, ok := dch.coupling.Feedback(e.referenceFor(dch), raw, engaged)
			if !ok {
				if !dch.haveWrench {
					continue
				}
				w = dch.lastWrench
			}
			wrench = w
		}
		dch.lastWrench = wrench
		dch.haveWrench = true
		e.sink.SendWrench(transport.Wrench{
			Device:       name,
			Force:        wrench.Force,
			Torque:       wrench.Torque,
			GripperForce: wrench.GripperForce,
		})
	}
}

// commandTick emits one motion command per driving device: a zero twist
// inside the guard window, a displacement-proportional twist in joystick
// mode, and either the clutch-mapped pose or a PID-servoed twist toward it
// in transparency mode.
func (e *Engine) commandTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	dt := now.Sub(e.lastCommandTick)
	if e.lastCommandTick.IsZero() || dt <= 0 {
		dt = hzToPeriod(e.cfg.Control.CommandHz)
	}
	e.lastCommandTick = now

	engaged := e.clutchSignal.Get()
	mode := e.arbiter.Update(e.desiredMode())
	outs := e.clutch.Update(engaged, e.clutchInputs())
	guard := e.arbiter.InGuard()

	for name, dch := range e.devices {
		if dch.cfg.Robot == "" {
			continue
		}
		rch := e.robots[dch.cfg.Robot]
		if guard {
			e.sink.SendMotion(transport.MotionCommand{Robot: rch.cfg.Name, Twist: &transport.TwistCommand{}})
			continue
		}
		switch mode {
		case ModeJoystick:
			e.sink.SendMotion(e.joystickMotion(dch, rch, engaged))
		case ModeTransparency:
			e.sink.SendMotion(e.transparencyMotion(dch, rch, outs[name], dt))
		}
	}
}

// joystickMotion maps the device's live teleop-frame displacement to a
// robot-base twist. The clutch acts as a deadman here: engaged means zero
// twist, since rate control has no pose to freeze.
func (e *Engine) joystickMotion(dch *deviceChannel, rch *robotChannel, engaged bool) transport.MotionCommand {
	cmd := transport.MotionCommand{Robot: rch.cfg.Name, Twist: &transport.TwistCommand{}}
	if engaged {
		return cmd
	}
	pose := dch.mapper.PoseToTeleop(&dch.state.Pose)
	rate := e.cfg.Control.JoystickRate
	cmd.Twist.Linear = spatialmath.QuatRotate(rch.base.Orientation, pose.Point).Mul(rate.Linear)
	cmd.Twist.Angular = spatialmath.QuatRotate(rch.base.Orientation, spatialmath.RotationVector(pose.Orientation)).Mul(rate.Angular)
	return cmd
}

// transparencyMotion emits the clutch-mapped commanded pose in the robot
// base frame, or, for twist-servo robots, the filtered-PID twist that
// carries the reported pose toward it.
func (e *Engine) transparencyMotion(dch *deviceChannel, rch *robotChannel, out ClutchOutput, dt time.Duration) transport.MotionCommand {
	cmdBase := spatialmath.Compose(rch.base, &out.Pose)
	if dch.pid == nil {
		return transport.MotionCommand{
			Robot: rch.cfg.Name,
			Pose: &transport.PoseCommand{
				Position:    cmdBase.Point,
				Orientation: spatialmath.QuatToWXYZ(cmdBase.Orientation),
				Gripper:     out.Gripper,
			},
		}
	}
	errTwist := spatialmath.PoseDelta(&rch.state.Pose, cmdBase)
	u := dch.pid.Update([6]float64{
		errTwist.Linear.X, errTwist.Linear.Y, errTwist.Linear.Z,
		errTwist.Angular.X, errTwist.Angular.Y, errTwist.Angular.Z,
	}, dt)
	return transport.MotionCommand{
		Robot: rch.cfg.Name,
		Twist: &transport.TwistCommand{
			Linear:  r3.Vector{X: u[0], Y: u[1], Z: u[2]},
			Angular: r3.Vector{X: u[3], Y: u[4], Z: u[5]},
		},
	}
}

// referenceFor returns the coupling reference for a device, nil when its
// robot has not echoed a command yet or the device drives no robot.
func (e *Engine) referenceFor(dch *deviceChannel) *CouplingReference {
	if dch.cfg.Robot == "" {
		return nil
	}
	return e.robots[dch.cfg.Robot].echo
}
