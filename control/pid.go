package control

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// IntegralLimiter bounds the accumulated integral after every update.
type IntegralLimiter func(integral float64) float64

// ClampIntegral returns a limiter keeping the integral within [min, max].
func ClampIntegral(min, max float64) IntegralLimiter {
	return func(integral float64) float64 {
		return lo.Clamp(integral, min, max)
	}
}

// PIDResult is one controller step. Output is a delta to add to the previous duty command.
type PIDResult struct {
	Error  float64
	P      float64
	I      float64
	D      float64
	Output float64
}

// PID is a discrete PID controller. Without a limiter the integral grows without bound while
// the error keeps its sign.
type PID struct {
	mu        sync.Mutex
	Kp        float64
	Ki        float64
	Kd        float64
	integral  float64
	prevError float64
	limiter   IntegralLimiter
}

// NewPID returns a controller with zeroed state.
func NewPID(conf PIDConfig) (*PID, error) {
	if err := conf.Validate("pid"); err != nil {
		return nil, err
	}
	return &PID{Kp: conf.Kp, Ki: conf.Ki, Kd: conf.Kd}, nil
}

// SetIntegralLimiter installs or, with nil, removes the integral limiter.
func (p *PID) SetIntegralLimiter(limiter IntegralLimiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiter = limiter
}

// Next advances the controller by one period of length dt. With dt <= 0 the integral is left
// untouched and the derivative term is zero.
func (p *PID) Next(target, measured float64, dt time.Duration) PIDResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	dtS := dt.Seconds()
	e := target - measured
	var deriv float64
	if dtS > 0 {
		p.integral += e * dtS
		if p.limiter != nil {
			p.integral = p.limiter(p.integral)
		}
		deriv = (e - p.prevError) / dtS
	}
	p.prevError = e

	res := PIDResult{
		Error: e,
		P:     p.Kp * e,
		I:     p.Ki * p.integral,
		D:     p.Kd * deriv,
	}
	res.Output = res.P + res.I + res.D
	return res
}

// Integral returns the accumulated integral of the error.
func (p *PID) Integral() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.integral
}

// PreviousError returns the error of the last step.
func (p *PID) PreviousError() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prevError
}

// Reset zeroes the integral and previous error.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.integral = 0
	p.prevError = 0
}
