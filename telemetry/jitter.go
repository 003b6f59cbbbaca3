package telemetry

import (
	"context"
	"sync"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/speedctl/control"
	"go.viam.com/speedctl/logging"
)

// DefaultJitterWindow is the number of tick periods summarized per jitter report.
const DefaultJitterWindow = 100

// JitterStats summarizes measured tick periods in milliseconds.
type JitterStats struct {
	Count    int
	MeanMs   float64
	StdDevMs float64
	MinMs    float64
	MaxMs    float64
	P99Ms    float64
}

// SummarizePeriods computes jitter statistics over periods given in milliseconds.
func SummarizePeriods(periods []float64) (JitterStats, error) {
	if len(periods) == 0 {
		return JitterStats{}, errors.New("no periods to summarize")
	}
	data := stats.Float64Data(periods)
	var (
		out JitterStats
		err error
	)
	out.Count = len(periods)
	if out.MeanMs, err = stats.Mean(data); err != nil {
		return JitterStats{}, err
	}
	if out.StdDevMs, err = stats.StandardDeviation(data); err != nil {
		return JitterStats{}, err
	}
	if out.MinMs, err = stats.Min(data); err != nil {
		return JitterStats{}, err
	}
	if out.MaxMs, err = stats.Max(data); err != nil {
		return JitterStats{}, err
	}
	if out.P99Ms, err = stats.Percentile(data, 99); err != nil {
		return JitterStats{}, err
	}
	return out, nil
}

// JitterSink collects the elapsed time of every non-degenerate sample and logs a summary once
// per window.
type JitterSink struct {
	logger logging.Logger
	window int

	mu      sync.Mutex
	periods []float64
	last    JitterStats
}

// NewJitterSink returns a jitter sink summarizing every window samples. A non-positive window
// uses DefaultJitterWindow.
func NewJitterSink(window int, logger logging.Logger) *JitterSink {
	if window <= 0 {
		window = DefaultJitterWindow
	}
	return &JitterSink{logger: logger, window: window, periods: make([]float64, 0, window)}
}

// WriteSample records the sample's period.
func (s *JitterSink) WriteSample(ctx context.Context, sample control.Sample) error {
	if sample.Degenerate || sample.Elapsed <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = append(s.periods, float64(sample.Elapsed.Microseconds())/1000)
	if len(s.periods) < s.window {
		return nil
	}
	summary, err := SummarizePeriods(s.periods)
	s.periods = s.periods[:0]
	if err != nil {
		return errors.Wrap(err, "failed to summarize tick periods")
	}
	s.last = summary
	s.logger.Infow("tick period jitter",
		"count", summary.Count,
		"mean_ms", summary.MeanMs,
		"stddev_ms", summary.StdDevMs,
		"min_ms", summary.MinMs,
		"max_ms", summary.MaxMs,
		"p99_ms", summary.P99Ms,
	)
	return nil
}

// Last returns the most recent summary.
func (s *JitterSink) Last() JitterStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Close does nothing.
func (s *JitterSink) Close(ctx context.Context) error {
	return nil
}
