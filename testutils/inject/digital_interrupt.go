package inject

import (
	"context"
	"sync"

	"go.viam.com/speedctl/components/board"
)

// DigitalInterrupt is an injected digital interrupt.
type DigitalInterrupt struct {
	board.DigitalInterrupt
	NameFunc  func() string
	ValueFunc func(ctx context.Context) (bool, error)
	CountFunc func(ctx context.Context) (int64, error)

	mu       sync.Mutex
	valueCap []interface{}
}

// Name calls the injected Name or the real version.
func (d *DigitalInterrupt) Name() string {
	if d.NameFunc == nil {
		return d.DigitalInterrupt.Name()
	}
	return d.NameFunc()
}

// Value calls the injected Value or the real version.
func (d *DigitalInterrupt) Value(ctx context.Context) (bool, error) {
	d.mu.Lock()
	d.valueCap = []interface{}{ctx}
	d.mu.Unlock()
	if d.ValueFunc == nil {
		return d.DigitalInterrupt.Value(ctx)
	}
	return d.ValueFunc(ctx)
}

// ValueCap returns the last parameters received by Value, and then clears them.
func (d *DigitalInterrupt) ValueCap() []interface{} {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() { d.valueCap = nil }()
	return d.valueCap
}

// Count calls the injected Count or the real version.
func (d *DigitalInterrupt) Count(ctx context.Context) (int64, error) {
	if d.CountFunc == nil {
		return d.DigitalInterrupt.Count(ctx)
	}
	return d.CountFunc(ctx)
}
