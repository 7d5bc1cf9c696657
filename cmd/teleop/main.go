// Package main runs the teleoperation engine against an in-process
// loopback bus. Real deployments replace the loopback with the site's
// middleware adapter feeding the same typed channels.
package main

import (
	"context"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/aldogalvan/force-dimension-ws/input"
	"github.com/aldogalvan/force-dimension-ws/teleop"
	"github.com/aldogalvan/force-dimension-ws/transport"
)

var logger = golog.NewDevelopmentLogger("teleop")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,required,usage=path to engine config"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := teleop.ReadConfig(argsParsed.ConfigFile)
	if err != nil {
		return err
	}

	initialMode, err := teleop.ModeFromString(cfg.Control.InitialMode)
	if err != nil {
		return err
	}

	bus := transport.NewLoopback(8)
	clutch := input.NewBool(false)
	mode := input.NewInt(int(initialMode))

	engine, err := teleop.NewEngine(cfg, clutch, mode, bus.Feedback(), bus, nil, logger)
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, engine.Close())
	}()

	// Drain outgoing commands so the loopback never backs up; a real
	// adapter publishes these to the middleware instead.
	utils.PanicCapturingGo(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case w := <-bus.Wrenches():
				logger.Debugw("wrench", "device", w.Device, "force", w.Force)
			case m := <-bus.Motions():
				logger.Debugw("motion", "robot", m.Robot)
			}
		}
	})

	<-ctx.Done()
	return nil
}
