// Package motor defines the actuation sink of the speed loop: a single motor driven by a duty
// command.
package motor

import (
	"context"
)

// MaxDuty is the full-scale duty command.
const MaxDuty = 255

// A Motor converts duty commands into drive signals.
type Motor interface {
	// SetDuty drives the motor in the given direction with duty/MaxDuty of full power.
	SetDuty(ctx context.Context, forward bool, duty uint8) error

	// Duty returns the last applied command.
	Duty(ctx context.Context) (forward bool, duty uint8, err error)

	// Stop cuts power to the motor.
	Stop(ctx context.Context) error

	// Close stops the motor and releases its pins.
	Close(ctx context.Context) error
}

// DutyFraction converts a duty command into a PWM fraction in [0, 1].
func DutyFraction(duty uint8) float64 {
	return float64(duty) / MaxDuty
}
