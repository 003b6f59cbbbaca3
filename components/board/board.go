// Package board defines the hardware boundary for speedctl: output pins driving the motor and
// digital interrupts fed by the encoder channels.
package board

import (
	"context"
)

// Tick represents a signal received by an interrupt pin. This signal is communicated
// via registered channel to the various drivers.
type Tick struct {
	Name             string
	High             bool
	TimestampNanosec uint64
}

// A Board represents a physical general purpose board that contains GPIO pins and digital
// interrupts.
type Board interface {
	// DigitalInterruptByName returns a digital interrupt by name.
	DigitalInterruptByName(name string) (DigitalInterrupt, error)

	// GPIOPinByName returns a GPIOPin by name.
	GPIOPinByName(name string) (GPIOPin, error)

	// StreamTicks starts a stream of digital interrupt ticks. Ticks are delivered on ch in the
	// order they were observed until ctx is done or the board is closed.
	StreamTicks(ctx context.Context, interrupts []DigitalInterrupt, ch chan Tick) error

	// Close shuts the board down, stopping every background worker.
	Close(ctx context.Context) error
}
