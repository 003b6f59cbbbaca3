// Package simulation provides a first-order motor model that reads the commanded duty from a motor
// and produces the encoder edges a real shaft would, on a fake board.
package simulation

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/speedctl/components/board/fake"
	"go.viam.com/speedctl/components/motor"
	"go.viam.com/speedctl/logging"
)

// Plant defaults.
const (
	DefaultMaxSpeed     = 200.0
	DefaultTimeConstant = 300 * time.Millisecond
	DefaultStep         = 10 * time.Millisecond
)

// countsPerToggle is the position change produced by toggling both channels once: one matching
// edge on each channel.
const countsPerToggle = 2

// PlantConfig describes the simulated motor.
type PlantConfig struct {
	// MaxSpeed is the steady state speed at full duty, in counts per second.
	MaxSpeed float64
	// TimeConstant is the time the shaft takes to cover 63% of a speed change.
	TimeConstant time.Duration
	// Step is the simulation interval used by Start.
	Step time.Duration
}

// DefaultPlantConfig returns a small hobby motor.
func DefaultPlantConfig() PlantConfig {
	return PlantConfig{MaxSpeed: DefaultMaxSpeed, TimeConstant: DefaultTimeConstant, Step: DefaultStep}
}

// Validate ensures all parts of the config are valid.
func (conf *PlantConfig) Validate() error {
	if conf.MaxSpeed <= 0 || math.IsInf(conf.MaxSpeed, 0) || math.IsNaN(conf.MaxSpeed) {
		return errors.Errorf("plant max speed must be positive and finite, got %v", conf.MaxSpeed)
	}
	if conf.TimeConstant <= 0 {
		return errors.Errorf("plant time constant must be positive, got %v", conf.TimeConstant)
	}
	if conf.Step <= 0 {
		return errors.Errorf("plant step must be positive, got %v", conf.Step)
	}
	return nil
}

type ticker interface {
	Tick(ctx context.Context, high bool, nanoseconds uint64) error
}

// Plant turns the duty of a motor into shaft speed and encoder edges. Both encoder channels always
// switch together, so every toggle advances a quadrature encoder by two counts.
type Plant struct {
	conf   PlantConfig
	board  *fake.Board
	a, b   string
	chA    ticker
	chB    ticker
	motor  motor.Motor
	clock  clock.Clock
	logger logging.Logger

	mu       sync.Mutex
	speed    float64
	residual float64
	level    bool
	emitted  int64

	workers *utils.StoppableWorkers
}

// NewPlant attaches a plant to the encoder channels a and b of the fake board.
func NewPlant(
	b *fake.Board,
	a, bName string,
	m motor.Motor,
	conf PlantConfig,
	clk clock.Clock,
	logger logging.Logger,
) (*Plant, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("plant requires a motor")
	}
	chA, err := channel(b, a)
	if err != nil {
		return nil, err
	}
	chB, err := channel(b, bName)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Plant{
		conf:   conf,
		board:  b,
		a:      a,
		b:      bName,
		chA:    chA,
		chB:    chB,
		motor:  m,
		clock:  clk,
		logger: logger,
	}, nil
}

func channel(b *fake.Board, name string) (ticker, error) {
	di, err := b.DigitalInterruptByName(name)
	if err != nil {
		return nil, err
	}
	t, ok := di.(ticker)
	if !ok {
		return nil, errors.Errorf("digital interrupt %q cannot be ticked", name)
	}
	return t, nil
}

// Step advances the model by dt and emits the edges the shaft produced.
func (p *Plant) Step(ctx context.Context, dt time.Duration) error {
	if dt <= 0 {
		return nil
	}
	_, duty, err := p.motor.Duty(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read motor duty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.conf.MaxSpeed * motor.DutyFraction(duty)
	alpha := 1 - math.Exp(-dt.Seconds()/p.conf.TimeConstant.Seconds())
	p.speed += (target - p.speed) * alpha

	counts := p.speed*dt.Seconds() + p.residual
	toggles := int64(math.Floor(counts / countsPerToggle))
	p.residual = counts - float64(toggles*countsPerToggle)

	now := uint64(p.clock.Now().UnixNano())
	for i := int64(0); i < toggles; i++ {
		p.level = !p.level
		if err := p.board.SetLevels(map[string]bool{p.a: p.level, p.b: p.level}); err != nil {
			return err
		}
		if err := p.chA.Tick(ctx, p.level, now); err != nil {
			return err
		}
		if err := p.chB.Tick(ctx, p.level, now); err != nil {
			return err
		}
		p.emitted += countsPerToggle
	}
	return nil
}

// Speed returns the modeled shaft speed in counts per second.
func (p *Plant) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// Emitted returns the net encoder counts produced so far.
func (p *Plant) Emitted() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.emitted
}

// Start steps the plant every configured step until Close.
func (p *Plant) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers != nil {
		return
	}
	p.logger.Infow("starting simulated motor",
		"max_speed", p.conf.MaxSpeed, "time_constant", p.conf.TimeConstant, "step", p.conf.Step)
	p.workers = utils.NewBackgroundStoppableWorkers()
	p.workers.Add(func(ctx context.Context) {
		t := p.clock.Ticker(p.conf.Step)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			if err := p.Step(ctx, p.conf.Step); err != nil && ctx.Err() == nil {
				p.logger.Warnw("simulation step failed", "error", err)
			}
		}
	})
}

// Close stops stepping.
func (p *Plant) Close(ctx context.Context) error {
	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}
