package control

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"go.viam.com/speedctl/components/motor"
	"go.viam.com/speedctl/logging"
)

// DutyCommand is what the mapper sent to the motor.
type DutyCommand struct {
	Forward bool
	Duty    uint8
	// Requested is the unclamped previous duty plus controller output.
	Requested float64
	Saturated bool
}

// DutyMapper accumulates controller deltas into a duty command in [0, maxDuty] and applies it.
// The direction is always forward.
type DutyMapper struct {
	mu      sync.Mutex
	maxDuty int
	last    uint8
	motor   motor.Motor
	logger  logging.Logger

	saturationLimiter *rate.Limiter
}

// NewDutyMapper returns a mapper starting from duty 0.
func NewDutyMapper(maxDuty int, m motor.Motor, logger logging.Logger) (*DutyMapper, error) {
	if maxDuty <= 0 || maxDuty > motor.MaxDuty {
		return nil, errors.Errorf("max duty must be in (0, %d], got %d", motor.MaxDuty, maxDuty)
	}
	if m == nil {
		return nil, errors.New("duty mapper requires a motor")
	}
	return &DutyMapper{
		maxDuty:           maxDuty,
		motor:             m,
		logger:            logger,
		saturationLimiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}, nil
}

// Map computes the next command from the last duty and a controller delta without applying it.
// The sum is truncated toward zero, matching an integer accumulator. A NaN sum maps to zero.
func (d *DutyMapper) Map(delta float64) DutyCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mapLocked(delta)
}

func (d *DutyMapper) mapLocked(delta float64) DutyCommand {
	requested := float64(d.last) + delta
	if math.IsNaN(requested) {
		return DutyCommand{Forward: true, Duty: 0, Requested: requested, Saturated: true}
	}
	clamped := lo.Clamp(requested, 0, float64(d.maxDuty))
	return DutyCommand{
		Forward:   true,
		Duty:      uint8(math.Trunc(clamped)),
		Requested: requested,
		Saturated: requested < 0 || requested > float64(d.maxDuty),
	}
}

// Apply maps delta, remembers the result as the new last duty and sends it to the motor. The
// duty is remembered even when the motor rejects it.
func (d *DutyMapper) Apply(ctx context.Context, delta float64) (DutyCommand, error) {
	d.mu.Lock()
	cmd := d.mapLocked(delta)
	d.last = cmd.Duty
	d.mu.Unlock()

	if cmd.Saturated && d.saturationLimiter.Allow() {
		d.logger.Warnw("duty command saturated", "requested", cmd.Requested, "applied", cmd.Duty)
	}
	if err := d.motor.SetDuty(ctx, cmd.Forward, cmd.Duty); err != nil {
		return cmd, errors.Wrap(err, "failed to apply duty")
	}
	return cmd, nil
}

// Last returns the last computed duty.
func (d *DutyMapper) Last() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Stop zeroes the duty and stops the motor.
func (d *DutyMapper) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.last = 0
	d.mu.Unlock()
	return d.motor.Stop(ctx)
}
