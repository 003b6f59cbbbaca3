// Package fake implements a fake board whose pin levels and interrupt ticks are driven by tests
// and the motor simulation.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/speedctl/components/board"
)

// Config describes the interrupts a fake board exposes.
type Config struct {
	DigitalInterrupts []board.DigitalInterruptConfig `json:"digital_interrupts,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	for idx, conf := range conf.DigitalInterrupts {
		if err := conf.Validate(fmt.Sprintf("%s.%s.%d", path, "digital_interrupts", idx)); err != nil {
			return err
		}
	}
	return nil
}

// A Board provides settable pins and injectable ticks in order to implement a Board.
type Board struct {
	mu         sync.RWMutex
	Digitals   map[string]*DigitalInterrupt
	GPIOPins   map[string]*GPIOPin
	CloseCount int

	// levelMu makes multi-pin level changes appear atomic to readers.
	levelMu sync.RWMutex
	workers *utils.StoppableWorkers
}

// NewBoard returns a fake board with the configured digital interrupts. GPIO pins are created on
// first use.
func NewBoard(conf Config) (*Board, error) {
	if err := conf.Validate("board"); err != nil {
		return nil, err
	}
	b := &Board{
		Digitals: map[string]*DigitalInterrupt{},
		GPIOPins: map[string]*GPIOPin{},
		workers:  utils.NewBackgroundStoppableWorkers(),
	}
	for _, c := range conf.DigitalInterrupts {
		basic, err := board.NewBasicDigitalInterrupt(c)
		if err != nil {
			return nil, err
		}
		b.Digitals[c.Name] = &DigitalInterrupt{BasicDigitalInterrupt: basic, levelMu: &b.levelMu}
	}
	return b, nil
}

// DigitalInterruptByName returns the interrupt by the given name if it exists.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.Digitals[name]
	if !ok {
		return nil, errors.Errorf("cant find DigitalInterrupt (%s)", name)
	}
	return d, nil
}

// GPIOPinByName returns the GPIO pin by the given name, creating it if needed.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.GPIOPins[name]
	if !ok {
		p = &GPIOPin{}
		b.GPIOPins[name] = p
	}
	return p, nil
}

// SetLevels changes several pin levels at once without generating ticks.
func (b *Board) SetLevels(levels map[string]bool) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.levelMu.Lock()
	defer b.levelMu.Unlock()
	for name, high := range levels {
		d, ok := b.Digitals[name]
		if !ok {
			return errors.Errorf("cant find DigitalInterrupt (%s)", name)
		}
		d.SetLevel(high)
	}
	return nil
}

// StreamTicks starts a stream of digital interrupt ticks.
func (b *Board) StreamTicks(ctx context.Context, interrupts []board.DigitalInterrupt, ch chan board.Tick) error {
	var fakes []*DigitalInterrupt
	for _, di := range interrupts {
		b.mu.RLock()
		d, ok := b.Digitals[di.Name()]
		b.mu.RUnlock()
		if !ok {
			return errors.Errorf("could not find digital interrupt: %s", di.Name())
		}
		fakes = append(fakes, d)
	}

	for _, d := range fakes {
		d.AddCallback(ctx, ch)
	}
	b.workers.Add(func(workersContext context.Context) {
		select {
		case <-ctx.Done():
		case <-workersContext.Done():
		}
		for _, d := range fakes {
			d.RemoveCallback(ch)
		}
	})
	return nil
}

// Close stops every stream.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	b.CloseCount++
	b.mu.Unlock()
	b.workers.Stop()
	return nil
}

// A GPIOPin reads back the same set values.
type GPIOPin struct {
	high    bool
	pwm     float64
	pwmFreq uint

	mu sync.Mutex
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	gp.high = high
	gp.pwm = 0
	gp.pwmFreq = 0
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	return gp.high, nil
}

// PWM gets the pin's given duty cycle.
func (gp *GPIOPin) PWM(ctx context.Context) (float64, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	return gp.pwm, nil
}

// SetPWM sets the pin to the given duty cycle.
func (gp *GPIOPin) SetPWM(ctx context.Context, dutyCyclePct float64) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	gp.pwm = dutyCyclePct
	return nil
}

// PWMFreq gets the PWM frequency of the pin.
func (gp *GPIOPin) PWMFreq(ctx context.Context) (uint, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	return gp.pwmFreq, nil
}

// SetPWMFreq sets the given pin to the given PWM frequency.
func (gp *GPIOPin) SetPWMFreq(ctx context.Context, freqHz uint) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	gp.pwmFreq = freqHz
	return nil
}

// DigitalInterrupt is a fake digital interrupt whose level is set by Tick or Board.SetLevels.
type DigitalInterrupt struct {
	*board.BasicDigitalInterrupt
	levelMu *sync.RWMutex
}

// Value returns the current level of the interrupt pin.
func (s *DigitalInterrupt) Value(ctx context.Context) (bool, error) {
	s.levelMu.RLock()
	defer s.levelMu.RUnlock()
	return s.BasicDigitalInterrupt.Value(ctx)
}

// Tick sets the pin level and delivers an edge to every stream.
func (s *DigitalInterrupt) Tick(ctx context.Context, high bool, nanoseconds uint64) error {
	s.levelMu.Lock()
	s.SetLevel(high)
	s.levelMu.Unlock()
	return s.Notify(ctx, high, nanoseconds)
}
