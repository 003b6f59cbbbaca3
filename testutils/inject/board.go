package inject

import (
	"context"

	"go.viam.com/speedctl/components/board"
)

// Board is an injected board.
type Board struct {
	board.Board
	DigitalInterruptByNameFunc func(name string) (board.DigitalInterrupt, error)
	GPIOPinByNameFunc          func(name string) (board.GPIOPin, error)
	StreamTicksFunc            func(ctx context.Context, interrupts []board.DigitalInterrupt, ch chan board.Tick) error
	CloseFunc                  func(ctx context.Context) error
}

// DigitalInterruptByName calls the injected DigitalInterruptByName or the real version.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	if b.DigitalInterruptByNameFunc == nil {
		return b.Board.DigitalInterruptByName(name)
	}
	return b.DigitalInterruptByNameFunc(name)
}

// GPIOPinByName calls the injected GPIOPinByName or the real version.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	if b.GPIOPinByNameFunc == nil {
		return b.Board.GPIOPinByName(name)
	}
	return b.GPIOPinByNameFunc(name)
}

// StreamTicks calls the injected StreamTicks or the real version.
func (b *Board) StreamTicks(ctx context.Context, interrupts []board.DigitalInterrupt, ch chan board.Tick) error {
	if b.StreamTicksFunc == nil {
		return b.Board.StreamTicks(ctx, interrupts, ch)
	}
	return b.StreamTicksFunc(ctx, interrupts, ch)
}

// Close calls the injected Close or the real version.
func (b *Board) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		if b.Board == nil {
			return nil
		}
		return b.Board.Close(ctx)
	}
	return b.CloseFunc(ctx)
}
