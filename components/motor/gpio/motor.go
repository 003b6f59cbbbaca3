// Package gpio implements a two pin H-bridge motor driven from board GPIO pins.
//
// In1 is held low for the lifetime of the motor and In2 carries the duty cycle as PWM, so the
// bridge can only turn the motor one way. Reverse commands are rejected.
package gpio

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/speedctl/components/board"
	"go.viam.com/speedctl/components/motor"
	"go.viam.com/speedctl/logging"
)

var _ = motor.Motor(&Motor{})

// PinConfig defines the mapping of where motor pins are wired to the board.
type PinConfig struct {
	In1 string `json:"in1"`
	In2 string `json:"in2"`
}

// Config describes the configuration of a motor.
type Config struct {
	Name      string    `json:"name"`
	Pins      PinConfig `json:"pins"`
	PWMFreqHz uint      `json:"pwm_freq_hz,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if conf.Pins.In1 == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pins.in1")
	}
	if conf.Pins.In2 == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pins.in2")
	}
	return nil
}

// Motor is a single direction H-bridge motor.
type Motor struct {
	name   string
	in1    board.GPIOPin
	in2    board.GPIOPin
	logger logging.Logger

	mu   sync.Mutex
	duty uint8
}

// NewMotor resolves the motor pins and leaves the motor stopped.
func NewMotor(ctx context.Context, b board.Board, conf Config, logger logging.Logger) (*Motor, error) {
	if err := conf.Validate("motor"); err != nil {
		return nil, err
	}
	in1, err := b.GPIOPinByName(conf.Pins.In1)
	if err != nil {
		return nil, motor.NewPinConfigError(conf.Name, conf.Pins.In1, err)
	}
	in2, err := b.GPIOPinByName(conf.Pins.In2)
	if err != nil {
		return nil, motor.NewPinConfigError(conf.Name, conf.Pins.In2, err)
	}

	m := &Motor{name: conf.Name, in1: in1, in2: in2, logger: logger}
	if err := in1.Set(ctx, false); err != nil {
		return nil, motor.NewPinConfigError(conf.Name, conf.Pins.In1, err)
	}
	if err := in2.SetPWMFreq(ctx, conf.PWMFreqHz); err != nil {
		return nil, motor.NewPinConfigError(conf.Name, conf.Pins.In2, err)
	}
	if err := in2.SetPWM(ctx, 0); err != nil {
		return nil, motor.NewPinConfigError(conf.Name, conf.Pins.In2, err)
	}
	return m, nil
}

// SetDuty applies duty to In2. Only forward is wired.
func (m *Motor) SetDuty(ctx context.Context, forward bool, duty uint8) error {
	if !forward {
		return motor.NewReverseUnsupportedError(m.name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.in2.SetPWM(ctx, motor.DutyFraction(duty)); err != nil {
		return err
	}
	m.duty = duty
	return nil
}

// Duty returns the last applied duty.
func (m *Motor) Duty(ctx context.Context) (bool, uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return true, m.duty, nil
}

// Stop sets the duty to zero.
func (m *Motor) Stop(ctx context.Context) error {
	return m.SetDuty(ctx, true, 0)
}

// Close stops the motor and drives both pins low.
func (m *Motor) Close(ctx context.Context) error {
	m.logger.Debugw("closing motor", "name", m.name)
	return multierr.Combine(m.Stop(ctx), m.in1.Set(ctx, false), m.in2.Set(ctx, false))
}
