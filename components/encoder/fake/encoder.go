// Package fake implements a fake encoder.
package fake

import (
	"context"

	"go.uber.org/atomic"

	"go.viam.com/speedctl/components/encoder"
)

var _ = encoder.Encoder(&Encoder{})

// Encoder is an encoder whose position is set directly by tests.
type Encoder struct {
	position atomic.Int64
	reads    atomic.Int64
}

// Position returns the current position.
func (e *Encoder) Position(ctx context.Context) (int64, error) {
	e.reads.Inc()
	return e.position.Load(), nil
}

// ResetPosition sets the position to zero.
func (e *Encoder) ResetPosition(ctx context.Context) error {
	e.position.Store(0)
	return nil
}

// SetPosition sets the position.
func (e *Encoder) SetPosition(position int64) {
	e.position.Store(position)
}

// Advance moves the position by delta counts.
func (e *Encoder) Advance(delta int64) {
	e.position.Add(delta)
}

// Reads returns how many times Position was called.
func (e *Encoder) Reads() int64 {
	return e.reads.Load()
}

// Close does nothing.
func (e *Encoder) Close(ctx context.Context) error {
	return nil
}
