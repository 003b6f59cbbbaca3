package board

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// A DigitalInterrupt represents a configured interrupt on the board that, when interrupted,
// notifies registered callbacks.
type DigitalInterrupt interface {
	// Name returns the name of the interrupt.
	Name() string

	// Value returns the current level of the underlying pin.
	Value(ctx context.Context) (bool, error)

	// Count returns the number of edges seen since creation.
	Count(ctx context.Context) (int64, error)
}

// BasicDigitalInterrupt records the last level and edge count of a pin and fans ticks out to
// every registered callback channel. Boards embed it to share tick bookkeeping.
type BasicDigitalInterrupt struct {
	name  string
	high  atomic.Bool
	count atomic.Int64

	mu        sync.Mutex
	callbacks []callback
}

// callback is a stream listener; its context ends delivery when the stream goes away.
type callback struct {
	ctx context.Context
	ch  chan Tick
}

// NewBasicDigitalInterrupt validates the config and returns an interrupt with the pin level low.
func NewBasicDigitalInterrupt(config DigitalInterruptConfig) (*BasicDigitalInterrupt, error) {
	if err := config.Validate("digital_interrupt"); err != nil {
		return nil, err
	}
	return &BasicDigitalInterrupt{name: config.Name}, nil
}

// Name returns the name of the interrupt.
func (i *BasicDigitalInterrupt) Name() string {
	return i.name
}

// Value returns the last level recorded by Tick or SetLevel.
func (i *BasicDigitalInterrupt) Value(ctx context.Context) (bool, error) {
	return i.high.Load(), nil
}

// Count returns the number of edges recorded by Tick.
func (i *BasicDigitalInterrupt) Count(ctx context.Context) (int64, error) {
	return i.count.Load(), nil
}

// SetLevel records a pin level without notifying callbacks.
func (i *BasicDigitalInterrupt) SetLevel(high bool) {
	i.high.Store(high)
}

// Tick records an edge to the given level and blocks until every callback has received it or
// ctx is done.
func (i *BasicDigitalInterrupt) Tick(ctx context.Context, high bool, nanoseconds uint64) error {
	i.high.Store(high)
	return i.Notify(ctx, high, nanoseconds)
}

// Notify counts an edge and delivers it to callbacks without touching the recorded level.
func (i *BasicDigitalInterrupt) Notify(ctx context.Context, high bool, nanoseconds uint64) error {
	i.count.Inc()

	i.mu.Lock()
	callbacks := i.callbacks
	i.mu.Unlock()

	for _, c := range callbacks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
		case c.ch <- Tick{Name: i.name, High: high, TimestampNanosec: nanoseconds}:
		}
	}
	return nil
}

// AddCallback adds a listener for interrupts. Delivery to c stops once ctx is done.
func (i *BasicDigitalInterrupt) AddCallback(ctx context.Context, c chan Tick) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.callbacks = append(append([]callback{}, i.callbacks...), callback{ctx: ctx, ch: c})
}

// RemoveCallback removes a listener for interrupts.
func (i *BasicDigitalInterrupt) RemoveCallback(c chan Tick) {
	i.mu.Lock()
	defer i.mu.Unlock()
	kept := make([]callback, 0, len(i.callbacks))
	for _, existing := range i.callbacks {
		if existing.ch != c {
			kept = append(kept, existing)
		}
	}
	i.callbacks = kept
}
