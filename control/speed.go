package control

import (
	"time"
)

// SpeedSample is the outcome of one estimator update.
type SpeedSample struct {
	// Velocity is in counts per second. For a degenerate window it is the last valid velocity.
	Velocity float64
	Delta    int64
	Elapsed  time.Duration
	// Degenerate is set when the window was too short to measure and Velocity was reused.
	Degenerate bool
}

// SpeedEstimator turns position snapshots into velocity over a sliding one-period window.
type SpeedEstimator struct {
	minInterval time.Duration

	started  bool
	prevPos  int64
	prevTime time.Time
	velocity float64
}

// NewSpeedEstimator returns an estimator that treats windows shorter than minInterval as
// degenerate.
func NewSpeedEstimator(minInterval time.Duration) *SpeedEstimator {
	return &SpeedEstimator{minInterval: minInterval}
}

// Start seeds the window with an initial snapshot.
func (s *SpeedEstimator) Start(position int64, now time.Time) {
	s.started = true
	s.prevPos = position
	s.prevTime = now
}

// Update computes the velocity since the previous snapshot and advances the window.
func (s *SpeedEstimator) Update(position int64, now time.Time) SpeedSample {
	if !s.started {
		s.Start(position, now)
		return SpeedSample{Velocity: s.velocity, Degenerate: true}
	}

	delta := position - s.prevPos
	elapsed := now.Sub(s.prevTime)
	s.prevPos = position
	s.prevTime = now

	if elapsed <= 0 || elapsed < s.minInterval {
		return SpeedSample{Velocity: s.velocity, Delta: delta, Elapsed: elapsed, Degenerate: true}
	}
	s.velocity = float64(delta) / elapsed.Seconds()
	return SpeedSample{Velocity: s.velocity, Delta: delta, Elapsed: elapsed}
}

// Velocity returns the last valid velocity in counts per second.
func (s *SpeedEstimator) Velocity() float64 {
	return s.velocity
}
