// Package encoder defines the position source of the speed loop.
package encoder

import (
	"context"
)

// An Encoder reports a signed position in counts.
type Encoder interface {
	// Position returns the number of counts since the last reset. A single call is one
	// consistent snapshot.
	Position(ctx context.Context) (int64, error)

	// ResetPosition sets the current position to be the new zero position.
	ResetPosition(ctx context.Context) error

	// Close stops any background work of the encoder.
	Close(ctx context.Context) error
}
