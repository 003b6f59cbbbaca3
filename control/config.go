// Package control implements the closed speed loop: a speed estimator over encoder snapshots, a
// PID controller producing duty deltas, a duty mapper driving the motor, and a fixed-rate loop
// tying them together.
package control

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/speedctl/components/motor"
)

// Loop constants. Gains are fixed at build time.
const (
	DefaultKp = 0.5
	DefaultKi = 0.1
	DefaultKd = 0.01

	// DefaultTargetSpeed is in encoder counts per second.
	DefaultTargetSpeed = 50.0
	DefaultMaxDuty     = motor.MaxDuty
	DefaultPeriod      = 100 * time.Millisecond

	// DefaultMinSampleInterval is the shortest window the estimator accepts.
	DefaultMinSampleInterval = time.Millisecond
)

// PIDConfig holds the controller gains.
type PIDConfig struct {
	Kp float64
	Ki float64
	Kd float64
}

// Validate ensures all gains are finite.
func (conf *PIDConfig) Validate(path string) error {
	for name, gain := range map[string]float64{"kp": conf.Kp, "ki": conf.Ki, "kd": conf.Kd} {
		if math.IsNaN(gain) || math.IsInf(gain, 0) {
			return utils.NewConfigValidationError(path, errors.Errorf("gain %s must be finite, got %v", name, gain))
		}
	}
	return nil
}

// Config is the full parameter set of a speed loop.
type Config struct {
	PID               PIDConfig
	TargetSpeed       float64
	MaxDuty           int
	Period            time.Duration
	MinSampleInterval time.Duration
}

// DefaultConfig returns the built-in loop parameters.
func DefaultConfig() Config {
	return Config{
		PID:               PIDConfig{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd},
		TargetSpeed:       DefaultTargetSpeed,
		MaxDuty:           DefaultMaxDuty,
		Period:            DefaultPeriod,
		MinSampleInterval: DefaultMinSampleInterval,
	}
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if err := conf.PID.Validate(path + ".pid"); err != nil {
		return err
	}
	if math.IsNaN(conf.TargetSpeed) || math.IsInf(conf.TargetSpeed, 0) {
		return utils.NewConfigValidationError(path, errors.Errorf("target speed must be finite, got %v", conf.TargetSpeed))
	}
	if conf.MaxDuty <= 0 || conf.MaxDuty > motor.MaxDuty {
		return utils.NewConfigValidationError(path,
			errors.Errorf("max duty must be in (0, %d], got %d", motor.MaxDuty, conf.MaxDuty))
	}
	if conf.Period <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("period must be positive, got %v", conf.Period))
	}
	if conf.MinSampleInterval < 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("minimum sample interval cannot be negative, got %v", conf.MinSampleInterval))
	}
	return nil
}
