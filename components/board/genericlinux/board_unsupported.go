//go:build !linux

package genericlinux

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/speedctl/components/board"
	"go.viam.com/speedctl/logging"
)

// NewBoard is only available on Linux.
func NewBoard(ctx context.Context, conf Config, logger logging.Logger) (board.Board, error) {
	return nil, errors.New("linux boards are only supported on linux")
}
