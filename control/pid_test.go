package control

import (
	"math"
	"testing"
	"time"

	"go.viam.com/test"
)

func defaultPID(t *testing.T) *PID {
	t.Helper()
	pid, err := NewPID(PIDConfig{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd})
	test.That(t, err, test.ShouldBeNil)
	return pid
}

func TestPIDConfig(t *testing.T) {
	for _, c := range []struct {
		conf PIDConfig
		err  string
	}{
		{PIDConfig{Kp: 0.5, Ki: 0.1, Kd: 0.01}, ""},
		{PIDConfig{}, ""},
		{PIDConfig{Kp: math.NaN()}, "gain kp must be finite"},
		{PIDConfig{Ki: math.Inf(1)}, "gain ki must be finite"},
		{PIDConfig{Kd: math.Inf(-1)}, "gain kd must be finite"},
	} {
		_, err := NewPID(c.conf)
		if c.err == "" {
			test.That(t, err, test.ShouldBeNil)
		} else {
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, c.err)
		}
	}
}

func TestPIDProportionalTerm(t *testing.T) {
	pid := defaultPID(t)
	res := pid.Next(50, 0, 100*time.Millisecond)
	test.That(t, res.Error, test.ShouldEqual, 50.0)
	test.That(t, res.P, test.ShouldAlmostEqual, 25.0)
	test.That(t, res.I, test.ShouldAlmostEqual, 0.5)
	test.That(t, res.D, test.ShouldAlmostEqual, 5.0)
	test.That(t, res.Output, test.ShouldAlmostEqual, 30.5)
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, 5.0)
	test.That(t, pid.PreviousError(), test.ShouldEqual, 50.0)
}

func TestPIDIntegralIsUnbounded(t *testing.T) {
	pid := defaultPID(t)
	const target, measured = 50.0, 10.0
	const e = target - measured
	dt := 100 * time.Millisecond

	pid.Next(target, measured, dt)
	for n := 2; n <= 500; n++ {
		res := pid.Next(target, measured, dt)
		test.That(t, res.D, test.ShouldEqual, 0.0)
		test.That(t, res.Output, test.ShouldAlmostEqual, DefaultKp*e+DefaultKi*(e*dt.Seconds()*float64(n)), 1e-6)
	}
	test.That(t, pid.Integral(), test.ShouldAlmostEqual, e*dt.Seconds()*500, 1e-6)
}

func TestPIDZeroElapsed(t *testing.T) {
	pid := defaultPID(t)
	pid.Next(50, 0, 100*time.Millisecond)
	integral := pid.Integral()

	res := pid.Next(50, 20, 0)
	test.That(t, res.D, test.ShouldEqual, 0.0)
	test.That(t, res.P, test.ShouldAlmostEqual, 15.0)
	test.That(t, pid.Integral(), test.ShouldEqual, integral)
	test.That(t, pid.PreviousError(), test.ShouldEqual, 30.0)

	res = pid.Next(50, 20, -time.Millisecond)
	test.That(t, res.D, test.ShouldEqual, 0.0)
	test.That(t, pid.Integral(), test.ShouldEqual, integral)
}

func TestPIDAtTargetIsQuiet(t *testing.T) {
	pid := defaultPID(t)
	for i := 0; i < 10; i++ {
		res := pid.Next(50, 50, 100*time.Millisecond)
		test.That(t, res.Output, test.ShouldEqual, 0.0)
	}
}

func TestPIDIntegralLimiter(t *testing.T) {
	pid := defaultPID(t)
	pid.SetIntegralLimiter(ClampIntegral(-10, 10))
	for i := 0; i < 100; i++ {
		pid.Next(50, 0, 100*time.Millisecond)
	}
	test.That(t, pid.Integral(), test.ShouldEqual, 10.0)

	for i := 0; i < 100; i++ {
		pid.Next(0, 50, 100*time.Millisecond)
	}
	test.That(t, pid.Integral(), test.ShouldEqual, -10.0)

	pid.SetIntegralLimiter(nil)
	pid.Next(0, 50, time.Second)
	test.That(t, pid.Integral(), test.ShouldEqual, -60.0)

	pid.Reset()
	test.That(t, pid.Integral(), test.ShouldEqual, 0.0)
	test.That(t, pid.PreviousError(), test.ShouldEqual, 0.0)
}
