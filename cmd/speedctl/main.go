// Package main runs a closed loop speed controller for a single encoder-equipped motor.
package main

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/speedctl/components/board"
	fakeboard "go.viam.com/speedctl/components/board/fake"
	"go.viam.com/speedctl/components/board/genericlinux"
	"go.viam.com/speedctl/components/encoder/quadrature"
	"go.viam.com/speedctl/components/motor/gpio"
	"go.viam.com/speedctl/config"
	"go.viam.com/speedctl/control"
	"go.viam.com/speedctl/logging"
	"go.viam.com/speedctl/simulation"
	"go.viam.com/speedctl/telemetry"
)

var (
	logger = logging.NewLogger("speedctl")
	stdout io.Writer = os.Stdout
)

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=hardware config file"`
	Simulate   bool   `flag:"simulate,usage=drive a simulated motor on a fake board"`
	Debug      bool   `flag:"debug,usage=enable debug logging"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	var cfg *config.Config
	switch {
	case argsParsed.ConfigFile != "":
		cfg, err = config.Read(argsParsed.ConfigFile)
		if err != nil {
			return err
		}
	case argsParsed.Simulate:
		cfg = config.Default()
	default:
		return errors.New("a config file is required unless --simulate is set")
	}

	if err := applyLogLevels(logger, cfg, argsParsed.Debug); err != nil {
		return err
	}
	if cfg.LogFile != nil {
		w := cfg.LogFile.Writer()
		logger.AddAppender(logging.NewWriterAppender(w))
		defer func() {
			err = multierr.Combine(err, w.Close())
		}()
	}

	if argsParsed.ConfigFile != "" {
		var watcher *config.Watcher
		watcher, err = config.NewWatcher(argsParsed.ConfigFile, config.DefaultWatchDebounce, func(newCfg *config.Config) {
			logger.Infow("applying log levels from config", "log_level", newCfg.LogLevel)
			if err := applyLogLevels(logger, newCfg, argsParsed.Debug); err != nil {
				logger.Warnw("failed to apply log levels", "error", err)
			}
		}, logger.Sublogger("config"))
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, watcher.Close())
		}()
	}

	return runSpeedLoop(ctx, cfg, argsParsed.Simulate, logger)
}

// applyLogLevels sets every speedctl logger from the config. --debug raises the base level but
// log patterns still apply on top of it.
func applyLogLevels(logger logging.Logger, cfg *config.Config, debug bool) error {
	base := cfg.LogLevel
	if debug {
		base = logging.DEBUG
	}
	return logging.UpdateLevels(logger, base, cfg.LogPatterns)
}

func runSpeedLoop(ctx context.Context, cfg *config.Config, simulate bool, logger logging.Logger) (err error) {
	// Close paths run after ctx is cancelled.
	closeCtx := context.Background()

	var (
		b  board.Board
		fb *fakeboard.Board
	)
	if simulate || cfg.Board.IsFake() {
		fb, err = fakeboard.NewBoard(cfg.Board.FakeConfig())
		b = fb
	} else {
		b, err = genericlinux.NewBoard(ctx, cfg.Board.Config, logger.Sublogger("board"))
	}
	if err != nil {
		return errors.Wrap(err, "failed to open board")
	}
	defer func() {
		err = multierr.Combine(err, b.Close(closeCtx))
	}()

	enc, err := quadrature.NewEncoder(ctx, b, cfg.Encoder, logger.Sublogger("encoder"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, enc.Close(closeCtx))
	}()

	m, err := gpio.NewMotor(ctx, b, cfg.Motor, logger.Sublogger("motor"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, m.Close(closeCtx))
	}()

	sink, err := telemetry.New(ctx, cfg.Telemetry, stdout, logger.Sublogger("telemetry"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, sink.Close(closeCtx))
	}()

	if simulate {
		var plant *simulation.Plant
		plant, err = simulation.NewPlant(fb, cfg.Encoder.Pins.A, cfg.Encoder.Pins.B, m,
			simulation.DefaultPlantConfig(), nil, logger.Sublogger("simulation"))
		if err != nil {
			return err
		}
		plant.Start()
		defer func() {
			err = multierr.Combine(err, plant.Close(closeCtx))
		}()
	}

	loop, err := control.NewLoop(control.DefaultConfig(), enc, m, logger.Sublogger("loop"), control.WithSinks(sink))
	if err != nil {
		return err
	}
	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, loop.Stop(closeCtx))
	}()

	utils.ContextMainReadyFunc(ctx)()
	<-ctx.Done()
	logger.Info("shutting down speed loop")
	return nil
}
