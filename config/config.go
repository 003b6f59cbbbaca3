// Package config defines the hardware configuration of a speed controller: which board to open,
// which pins carry the encoder channels and the motor, where telemetry goes, and how much to log.
// Loop gains and the target speed are not configurable here.
package config

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/speedctl/components/board"
	"go.viam.com/speedctl/components/board/fake"
	"go.viam.com/speedctl/components/board/genericlinux"
	"go.viam.com/speedctl/components/encoder/quadrature"
	"go.viam.com/speedctl/components/motor/gpio"
	"go.viam.com/speedctl/logging"
	"go.viam.com/speedctl/telemetry"
)

// Board models.
const (
	ModelLinux = "linux"
	ModelFake  = "fake"
)

// BoardConfig selects and configures the board. The Linux board settings are shared with the
// fake board, which only uses DigitalInterrupts.
type BoardConfig struct {
	Model string `json:"model,omitempty"`
	genericlinux.Config
}

// Validate ensures all parts of the config are valid.
func (conf *BoardConfig) Validate(path string) error {
	switch conf.model() {
	case ModelLinux:
		return conf.Config.Validate(path)
	case ModelFake:
		fakeConf := conf.FakeConfig()
		return fakeConf.Validate(path)
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown board model %q", conf.Model))
	}
}

// FakeConfig returns the fake board subset of the config.
func (conf *BoardConfig) FakeConfig() fake.Config {
	return fake.Config{DigitalInterrupts: conf.DigitalInterrupts}
}

// IsFake returns whether the fake board is selected.
func (conf *BoardConfig) IsFake() bool {
	return conf.model() == ModelFake
}

func (conf *BoardConfig) model() string {
	if conf.Model == "" {
		return ModelLinux
	}
	return conf.Model
}

func (conf *BoardConfig) hasInterrupt(name string) bool {
	for _, di := range conf.DigitalInterrupts {
		if di.Name == name {
			return true
		}
	}
	return false
}

// Config is the full hardware configuration.
type Config struct {
	// ConfigFilePath is the file the config was read from, if any.
	ConfigFilePath string `json:"-"`

	Board     BoardConfig       `json:"board"`
	Encoder   quadrature.Config `json:"encoder"`
	Motor     gpio.Config       `json:"motor"`
	Telemetry telemetry.Config  `json:"telemetry"`

	LogLevel logging.Level `json:"log_level,omitempty"`
	// LogPatterns override LogLevel for the loggers they match, e.g. "speedctl.loop".
	LogPatterns []logging.LoggerPatternConfig `json:"log_patterns,omitempty"`
	// LogFile additionally writes logs to a rotated file.
	LogFile *telemetry.FileConfig `json:"log_file,omitempty"`
}

// Validate ensures all parts of the config are valid, including that the encoder channels name
// configured digital interrupts.
func (conf *Config) Validate() error {
	if err := conf.Board.Validate("board"); err != nil {
		return err
	}
	if err := conf.Encoder.Validate("encoder"); err != nil {
		return err
	}
	for _, pin := range []string{conf.Encoder.Pins.A, conf.Encoder.Pins.B} {
		if !conf.Board.hasInterrupt(pin) {
			return utils.NewConfigValidationError("encoder",
				errors.Errorf("pin %q is not a digital interrupt on the board", pin))
		}
	}
	if err := conf.Motor.Validate("motor"); err != nil {
		return err
	}
	if err := conf.Telemetry.Validate("telemetry"); err != nil {
		return err
	}
	if err := logging.ValidatePatterns(conf.LogPatterns); err != nil {
		return utils.NewConfigValidationError("log_patterns", err)
	}
	if conf.LogFile != nil {
		if err := conf.LogFile.Validate("log_file"); err != nil {
			return err
		}
	}
	return nil
}

// Default returns the reference wiring: encoder channels on pins 27 and 9, motor inputs on pins
// 25 and 26, and telemetry lines on stdout.
func Default() *Config {
	return &Config{
		Board: BoardConfig{
			Model: ModelLinux,
			Config: genericlinux.Config{
				DigitalInterrupts: []board.DigitalInterruptConfig{
					{Name: "encoder-a", Pin: "27"},
					{Name: "encoder-b", Pin: "9"},
				},
			},
		},
		Encoder: quadrature.Config{Pins: quadrature.Pins{A: "encoder-a", B: "encoder-b"}},
		Motor: gpio.Config{
			Name: "motor",
			Pins: gpio.PinConfig{In1: "25", In2: "26"},
		},
		Telemetry: telemetry.Config{Stdout: true},
		LogLevel:  logging.INFO,
	}
}
