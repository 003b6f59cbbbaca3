package control

import (
	"context"
	"sync"
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	fakeencoder "go.viam.com/speedctl/components/encoder/fake"
	fakemotor "go.viam.com/speedctl/components/motor/fake"
	"go.viam.com/speedctl/logging"
	"go.viam.com/speedctl/testutils/inject"
)

type recordingSink struct {
	mu      sync.Mutex
	samples []Sample
	err     error
}

func (s *recordingSink) WriteSample(ctx context.Context, sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return s.err
}

func (s *recordingSink) all() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample{}, s.samples...)
}

func TestLoopConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)
	enc := &fakeencoder.Encoder{}
	m := &fakemotor.Motor{}

	cfg := DefaultConfig()
	test.That(t, cfg.Validate("loop"), test.ShouldBeNil)
	test.That(t, cfg.PID, test.ShouldResemble, PIDConfig{Kp: 0.5, Ki: 0.1, Kd: 0.01})
	test.That(t, cfg.TargetSpeed, test.ShouldEqual, 50.0)
	test.That(t, cfg.MaxDuty, test.ShouldEqual, 255)
	test.That(t, cfg.Period, test.ShouldEqual, 100*time.Millisecond)

	for _, c := range []struct {
		mutate func(*Config)
		err    string
	}{
		{func(c *Config) { c.Period = 0 }, "period must be positive"},
		{func(c *Config) { c.MaxDuty = 0 }, "max duty"},
		{func(c *Config) { c.MaxDuty = 300 }, "max duty"},
		{func(c *Config) { c.MinSampleInterval = -time.Second }, "cannot be negative"},
		{func(c *Config) { c.PID.Kd = 1 / zero() }, "gain kd must be finite"},
	} {
		bad := DefaultConfig()
		c.mutate(&bad)
		_, err := NewLoop(bad, enc, m, logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, c.err)
	}

	_, err := NewLoop(cfg, nil, m, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewLoop(cfg, enc, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func zero() float64 {
	return 0
}

func TestLoopTicksAtPeriod(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	mockClock := clk.NewMock()
	enc := &fakeencoder.Encoder{}
	m := &fakemotor.Motor{}
	sink := &recordingSink{}

	l, err := NewLoop(DefaultConfig(), enc, m, logger, WithClock(mockClock), WithSinks(sink))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, l.Start(ctx), test.ShouldBeNil)
	test.That(t, l.Start(ctx), test.ShouldNotBeNil)

	// 5 counts per 100ms is exactly the target speed.
	for i := 1; i <= 10; i++ {
		enc.Advance(5)
		mockClock.Add(DefaultPeriod)
		tick := uint64(i)
		testutils.WaitForAssertion(t, func(tb testing.TB) {
			tb.Helper()
			test.That(tb, l.Last().Tick, test.ShouldEqual, tick)
		})
	}

	samples := sink.all()
	test.That(t, len(samples), test.ShouldEqual, 10)
	for _, s := range samples {
		test.That(t, s.Degenerate, test.ShouldBeFalse)
		test.That(t, s.Elapsed, test.ShouldEqual, DefaultPeriod)
		test.That(t, s.Speed, test.ShouldAlmostEqual, 50.0)
		test.That(t, s.Target, test.ShouldEqual, 50.0)
		test.That(t, s.PID.Output, test.ShouldAlmostEqual, 0.0)
		test.That(t, s.Duty, test.ShouldEqual, uint8(0))
	}

	test.That(t, l.Stop(ctx), test.ShouldBeNil)
	test.That(t, m.StopCount, test.ShouldEqual, 1)
	_, duty, err := m.Duty(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, duty, test.ShouldEqual, uint8(0))

	mockClock.Add(10 * DefaultPeriod)
	test.That(t, l.Last().Tick, test.ShouldEqual, uint64(10))
	test.That(t, l.Stop(ctx), test.ShouldBeNil)
}

func TestLoopHoldsDutyAtTarget(t *testing.T) {
	ctx := context.Background()
	mockClock := clk.NewMock()
	enc := &fakeencoder.Encoder{}
	m := &fakemotor.Motor{}
	l, err := NewLoop(DefaultConfig(), enc, m, logging.NewTestLogger(t), WithClock(mockClock))
	test.That(t, err, test.ShouldBeNil)

	// Drive the motor off zero first with a stalled encoder.
	l.estimator.Start(0, mockClock.Now())
	mockClock.Add(DefaultPeriod)
	first, err := l.Tick(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first.Duty, test.ShouldEqual, uint8(30))

	// Measured equals target; with the integral zeroed the duty must not move.
	l.pid.Reset()
	for i := 0; i < 10; i++ {
		enc.Advance(5)
		mockClock.Add(DefaultPeriod)
		sample, err := l.Tick(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, sample.Speed, test.ShouldAlmostEqual, 50.0)
		test.That(t, sample.Duty, test.ShouldEqual, uint8(30))
	}
}

func TestLoopDutyStaysInRange(t *testing.T) {
	ctx := context.Background()
	mockClock := clk.NewMock()
	enc := &fakeencoder.Encoder{}
	m := &fakemotor.Motor{}
	l, err := NewLoop(DefaultConfig(), enc, m, logging.NewTestLogger(t), WithClock(mockClock))
	test.That(t, err, test.ShouldBeNil)

	var sample Sample
	// Stalled motor: the integral grows every tick.
	for i := 0; i < 500; i++ {
		mockClock.Add(DefaultPeriod)
		sample, err = l.Tick(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, int(sample.Duty), test.ShouldBeBetweenOrEqual, 0, 255)
	}
	test.That(t, sample.Duty, test.ShouldEqual, uint8(255))
	test.That(t, l.pid.Integral(), test.ShouldBeGreaterThan, 2000.0)

	// Runaway motor: large negative error drives the duty to the floor.
	for i := 0; i < 500; i++ {
		enc.Advance(10000)
		mockClock.Add(DefaultPeriod)
		sample, err = l.Tick(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, int(sample.Duty), test.ShouldBeBetweenOrEqual, 0, 255)
	}
	test.That(t, sample.Duty, test.ShouldEqual, uint8(0))
	for _, c := range m.Commands() {
		test.That(t, c.Forward, test.ShouldBeTrue)
	}
}

func TestLoopDegenerateTick(t *testing.T) {
	ctx := context.Background()
	mockClock := clk.NewMock()
	enc := &fakeencoder.Encoder{}
	l, err := NewLoop(DefaultConfig(), enc, &fakemotor.Motor{}, logging.NewTestLogger(t), WithClock(mockClock))
	test.That(t, err, test.ShouldBeNil)

	enc.Advance(3)
	mockClock.Add(DefaultPeriod)
	sample, err := l.Tick(ctx)
	test.That(t, err, test.ShouldBeNil)
	// Never started: the first tick only seeds the window.
	test.That(t, sample.Degenerate, test.ShouldBeTrue)

	enc.Advance(2)
	mockClock.Add(DefaultPeriod)
	sample, err = l.Tick(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sample.Degenerate, test.ShouldBeFalse)
	test.That(t, sample.Speed, test.ShouldAlmostEqual, 20.0)
	integral := l.pid.Integral()

	enc.Advance(100)
	sample, err = l.Tick(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sample.Degenerate, test.ShouldBeTrue)
	test.That(t, sample.Speed, test.ShouldAlmostEqual, 20.0)
	test.That(t, sample.PID.D, test.ShouldEqual, 0.0)
	test.That(t, sample.PID.P, test.ShouldAlmostEqual, 15.0)
	test.That(t, l.pid.Integral(), test.ShouldEqual, integral)
}

func TestLoopReportsErrorsAndContinues(t *testing.T) {
	ctx := context.Background()
	mockClock := clk.NewMock()
	enc := &fakeencoder.Encoder{}
	m := &fakemotor.Motor{SetDutyErr: errors.New("bridge fault")}
	sink := &recordingSink{err: errors.New("sink full")}
	l, err := NewLoop(DefaultConfig(), enc, m, logging.NewTestLogger(t), WithClock(mockClock), WithSinks(sink))
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 3; i++ {
		mockClock.Add(DefaultPeriod)
		_, err := l.Tick(ctx)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "bridge fault")
		test.That(t, err.Error(), test.ShouldContainSubstring, "sink full")
	}
	test.That(t, len(sink.all()), test.ShouldEqual, 3)
	test.That(t, l.Last().Tick, test.ShouldEqual, uint64(3))
}

func TestLoopIntegralLimiterOption(t *testing.T) {
	ctx := context.Background()
	mockClock := clk.NewMock()
	l, err := NewLoop(DefaultConfig(), &fakeencoder.Encoder{}, &fakemotor.Motor{}, logging.NewTestLogger(t),
		WithClock(mockClock), WithIntegralLimiter(ClampIntegral(-20, 20)))
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 50; i++ {
		mockClock.Add(DefaultPeriod)
		_, err := l.Tick(ctx)
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, l.pid.Integral(), test.ShouldEqual, 20.0)
}

func TestLoopEncoderErrors(t *testing.T) {
	ctx := context.Background()
	mockClock := clk.NewMock()
	enc := &inject.Encoder{PositionFunc: func(ctx context.Context) (int64, error) {
		return 0, errors.New("encoder unplugged")
	}}
	var stops int
	m := &inject.Motor{
		Motor: &fakemotor.Motor{},
		StopFunc: func(ctx context.Context) error {
			stops++
			return nil
		},
	}
	l, err := NewLoop(DefaultConfig(), enc, m, logging.NewTestLogger(t), WithClock(mockClock))
	test.That(t, err, test.ShouldBeNil)

	err = l.Start(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "encoder unplugged")

	_, err = l.Tick(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, l.Last().Tick, test.ShouldEqual, uint64(0))

	test.That(t, l.Stop(ctx), test.ShouldBeNil)
	test.That(t, stops, test.ShouldEqual, 1)
}
