package control

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/time/rate"

	"go.viam.com/speedctl/components/encoder"
	"go.viam.com/speedctl/components/motor"
	"go.viam.com/speedctl/logging"
)

// Sample is everything one loop iteration observed and decided.
type Sample struct {
	Tick     uint64
	Time     time.Time
	Position int64
	Delta    int64
	// Elapsed is the time since the previous iteration.
	Elapsed    time.Duration
	Speed      float64
	Target     float64
	PID        PIDResult
	Duty       uint8
	Saturated  bool
	Degenerate bool
}

// A SampleSink receives every Sample produced by the loop.
type SampleSink interface {
	WriteSample(ctx context.Context, sample Sample) error
}

// LoopOption configures optional Loop behavior.
type LoopOption func(*Loop)

// WithClock replaces the wall clock, e.g. with a mock in tests.
func WithClock(clk clock.Clock) LoopOption {
	return func(l *Loop) {
		l.clock = clk
	}
}

// WithSinks adds sample sinks.
func WithSinks(sinks ...SampleSink) LoopOption {
	return func(l *Loop) {
		l.sinks = append(l.sinks, sinks...)
	}
}

// WithIntegralLimiter bounds the controller integral.
func WithIntegralLimiter(limiter IntegralLimiter) LoopOption {
	return func(l *Loop) {
		l.pid.SetIntegralLimiter(limiter)
	}
}

// Loop samples the encoder once per period and drives the motor toward the target speed.
type Loop struct {
	cfg       Config
	enc       encoder.Encoder
	estimator *SpeedEstimator
	pid       *PID
	mapper    *DutyMapper
	sinks     []SampleSink
	clock     clock.Clock
	logger    logging.Logger

	errLimiter    *rate.Limiter
	windupLimiter *rate.Limiter

	// tickMu serializes iterations; everything below it is loop-owned state.
	tickMu sync.Mutex
	ticks  uint64
	last   Sample

	mu                      sync.Mutex
	running                 bool
	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// NewLoop builds a loop. Nothing runs until Start.
func NewLoop(
	cfg Config,
	enc encoder.Encoder,
	m motor.Motor,
	logger logging.Logger,
	opts ...LoopOption,
) (*Loop, error) {
	if err := cfg.Validate("loop"); err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, errors.New("speed loop requires an encoder")
	}
	pid, err := NewPID(cfg.PID)
	if err != nil {
		return nil, err
	}
	mapper, err := NewDutyMapper(cfg.MaxDuty, m, logger)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		cfg:           cfg,
		enc:           enc,
		estimator:     NewSpeedEstimator(cfg.MinSampleInterval),
		pid:           pid,
		mapper:        mapper,
		clock:         clock.New(),
		logger:        logger,
		errLimiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		windupLimiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Start seeds the speed window with the current position and starts ticking every period.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("speed loop is already running")
	}

	position, err := l.enc.Position(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read initial position")
	}
	l.tickMu.Lock()
	l.estimator.Start(position, l.clock.Now())
	l.tickMu.Unlock()

	cancelCtx, cancel := context.WithCancel(ctx)
	ticker := l.clock.Ticker(l.cfg.Period)
	l.cancel = cancel
	l.running = true
	l.logger.Infow("starting speed loop",
		"period", l.cfg.Period, "target", l.cfg.TargetSpeed,
		"kp", l.cfg.PID.Kp, "ki", l.cfg.PID.Ki, "kd", l.cfg.PID.Kd)

	l.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		defer ticker.Stop()
		for {
			select {
			case <-cancelCtx.Done():
				return
			case <-ticker.C:
			}
			if _, err := l.Tick(cancelCtx); err != nil && l.errLimiter.AllowN(l.clock.Now(), 1) {
				l.logger.Errorw("speed loop iteration failed", "error", err)
			}
		}
	}, l.activeBackgroundWorkers.Done)
	return nil
}

// Tick runs one iteration: snapshot, estimate, control, actuate, report. Errors from the motor
// or sinks are returned after the iteration completes; the controller state still advances.
func (l *Loop) Tick(ctx context.Context) (Sample, error) {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	position, err := l.enc.Position(ctx)
	if err != nil {
		return Sample{}, errors.Wrap(err, "failed to read position")
	}
	now := l.clock.Now()

	speed := l.estimator.Update(position, now)
	dt := speed.Elapsed
	if speed.Degenerate {
		dt = 0
	}
	res := l.pid.Next(l.cfg.TargetSpeed, speed.Velocity, dt)
	cmd, applyErr := l.mapper.Apply(ctx, res.Output)

	if math.Abs(res.I) > float64(l.cfg.MaxDuty) && l.windupLimiter.AllowN(now, 1) {
		l.logger.Warnw("integral term exceeds full scale duty", "integral_term", res.I, "error", res.Error)
	}

	l.ticks++
	sample := Sample{
		Tick:       l.ticks,
		Time:       now,
		Position:   position,
		Delta:      speed.Delta,
		Elapsed:    speed.Elapsed,
		Speed:      speed.Velocity,
		Target:     l.cfg.TargetSpeed,
		PID:        res,
		Duty:       cmd.Duty,
		Saturated:  cmd.Saturated,
		Degenerate: speed.Degenerate,
	}
	l.last = sample

	errs := applyErr
	for _, sink := range l.sinks {
		errs = multierr.Combine(errs, sink.WriteSample(ctx, sample))
	}
	return sample, errs
}

// Last returns the most recent sample.
func (l *Loop) Last() Sample {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	return l.last
}

// Stop halts ticking and stops the motor. It is safe to call more than once.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.cancel()
		l.running = false
	}
	l.mu.Unlock()
	l.activeBackgroundWorkers.Wait()

	l.logger.Debug("stopping speed loop")
	return l.mapper.Stop(ctx)
}
