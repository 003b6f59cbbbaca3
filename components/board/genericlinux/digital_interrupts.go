//go:build linux

package genericlinux

import (
	"context"

	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/speedctl/components/board"
)

// digitalInterrupt is an input line opened with edge events on both edges. The kernel event
// channel only keeps the latest event, so bursts faster than the monitor loop are coalesced.
type digitalInterrupt struct {
	*board.BasicDigitalInterrupt
	line       *gpio.LineWithEvent
	cancelFunc func()
}

func (b *Board) createDigitalInterrupt(
	config board.DigitalInterruptConfig,
	chipDev string,
	offset uint32,
) (*digitalInterrupt, error) {
	chip, err := gpio.OpenChip(chipDev)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", chipDev)
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	line, err := chip.OpenLineWithEvents(offset, gpio.Input, gpio.BothEdges, "speedctl-encoder")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open line %d for interrupt %q", offset, config.Name)
	}

	basic, err := board.NewBasicDigitalInterrupt(config)
	if err != nil {
		return nil, multierr.Combine(err, line.Close())
	}

	cancelCtx, cancelFunc := context.WithCancel(b.cancelCtx)
	result := &digitalInterrupt{
		BasicDigitalInterrupt: basic,
		line:                  line,
		cancelFunc:            cancelFunc,
	}

	b.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		for {
			select {
			case <-cancelCtx.Done():
				return
			case event := <-line.Events():
				result.SetLevel(event.RisingEdge)
				utils.UncheckedError(result.Notify(cancelCtx, event.RisingEdge, uint64(event.Time.UnixNano())))
			}
		}
	}, b.activeBackgroundWorkers.Done)
	return result, nil
}

// Value reads the line level directly rather than the last event.
func (di *digitalInterrupt) Value(ctx context.Context) (bool, error) {
	value, err := di.line.Value()
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

func (di *digitalInterrupt) Close() error {
	di.cancelFunc()
	return di.line.Close()
}
