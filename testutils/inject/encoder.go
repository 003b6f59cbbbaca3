// Package inject provides components whose methods can be replaced per test.
package inject

import (
	"context"

	"go.viam.com/speedctl/components/encoder"
)

// Encoder is an injected encoder.
type Encoder struct {
	encoder.Encoder
	PositionFunc      func(ctx context.Context) (int64, error)
	ResetPositionFunc func(ctx context.Context) error
	CloseFunc         func(ctx context.Context) error
}

// Position calls the injected Position or the real version.
func (e *Encoder) Position(ctx context.Context) (int64, error) {
	if e.PositionFunc == nil {
		return e.Encoder.Position(ctx)
	}
	return e.PositionFunc(ctx)
}

// ResetPosition calls the injected ResetPosition or the real version.
func (e *Encoder) ResetPosition(ctx context.Context) error {
	if e.ResetPositionFunc == nil {
		return e.Encoder.ResetPosition(ctx)
	}
	return e.ResetPositionFunc(ctx)
}

// Close calls the injected Close or the real version.
func (e *Encoder) Close(ctx context.Context) error {
	if e.CloseFunc == nil {
		if e.Encoder == nil {
			return nil
		}
		return e.Encoder.Close(ctx)
	}
	return e.CloseFunc(ctx)
}
