//go:build linux

package genericlinux

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"go.viam.com/speedctl/components/board"
	"go.viam.com/speedctl/logging"
)

type pwmSetting struct {
	dutyCycle gpio.Duty
	frequency physic.Frequency
}

// Board is a Linux board.
type Board struct {
	mu         sync.RWMutex
	logger     logging.Logger
	interrupts map[string]*digitalInterrupt
	pwms       map[string]pwmSetting
	defaultPWM physic.Frequency

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewBoard initializes periph.io host drivers and opens every configured interrupt line.
func NewBoard(ctx context.Context, conf Config, logger logging.Logger) (board.Board, error) {
	if err := conf.Validate("board"); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host drivers")
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	b := &Board{
		logger:     logger,
		interrupts: map[string]*digitalInterrupt{},
		pwms:       map[string]pwmSetting{},
		defaultPWM: physic.Hertz * physic.Frequency(conf.pwmFreqHz()),
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}

	for _, diConf := range conf.DigitalInterrupts {
		offset, err := strconv.ParseUint(diConf.Pin, 10, 32)
		if err != nil {
			return nil, multierr.Combine(
				errors.Errorf("interrupt %q pin %q is not a line offset", diConf.Name, diConf.Pin),
				b.Close(ctx))
		}
		di, err := b.createDigitalInterrupt(diConf, conf.chipDev(), uint32(offset))
		if err != nil {
			return nil, multierr.Combine(err, b.Close(ctx))
		}
		b.interrupts[diConf.Name] = di
	}
	return b, nil
}

// DigitalInterruptByName returns the interrupt by the given name if it exists.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	di, ok := b.interrupts[name]
	if !ok {
		return nil, errors.Errorf("can't find DigitalInterrupt (%s)", name)
	}
	return di, nil
}

// GPIOPinByName returns a periph.io backed pin. Names are resolved through gpioreg, e.g. "GPIO23".
func (b *Board) GPIOPinByName(pinName string) (board.GPIOPin, error) {
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", pinName)
	}
	return periphGpioPin{b, pin, pinName}, nil
}

// StreamTicks delivers ticks of the given interrupts on ch until ctx is done.
func (b *Board) StreamTicks(ctx context.Context, interrupts []board.DigitalInterrupt, ch chan board.Tick) error {
	var lines []*digitalInterrupt
	for _, i := range interrupts {
		b.mu.RLock()
		di, ok := b.interrupts[i.Name()]
		b.mu.RUnlock()
		if !ok {
			return errors.Errorf("could not find digital interrupt: %s", i.Name())
		}
		lines = append(lines, di)
	}

	for _, di := range lines {
		di.AddCallback(ctx, ch)
	}
	b.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		select {
		case <-ctx.Done():
		case <-b.cancelCtx.Done():
		}
		for _, di := range lines {
			di.RemoveCallback(ch)
		}
	}, b.activeBackgroundWorkers.Done)
	return nil
}

// Close stops software PWM and interrupt monitoring, then releases the interrupt lines.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	b.cancelFunc()
	b.mu.Unlock()
	b.activeBackgroundWorkers.Wait()

	var err error
	for _, interrupt := range b.interrupts {
		err = multierr.Combine(err, interrupt.Close())
	}
	return err
}
