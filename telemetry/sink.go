// Package telemetry writes one diagnostic line per speed loop iteration to a writer, a rotating
// file, a serial port, or the structured logger, and keeps tick period jitter statistics.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/speedctl/control"
	"go.viam.com/speedctl/logging"
)

// A Sink is a control.SampleSink that owns resources.
type Sink interface {
	control.SampleSink
	Close(ctx context.Context) error
}

// FormatLine renders the diagnostic line for a sample.
func FormatLine(sample control.Sample) string {
	return fmt.Sprintf("Speed: %.2f | Target Speed: %.2f | Motor PWM: %d", sample.Speed, sample.Target, sample.Duty)
}

// WriterSink writes one line per sample.
type WriterSink struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	newline string
}

// NewWriterSink returns a sink writing newline terminated lines to w. Closing the sink does not
// close w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w, newline: "\n"}
}

// WriteSample writes the sample's diagnostic line.
func (s *WriterSink) WriteSample(ctx context.Context, sample control.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, FormatLine(sample)+s.newline); err != nil {
		return errors.Wrap(err, "failed to write telemetry line")
	}
	return nil
}

// Close releases the underlying writer if the sink owns it.
func (s *WriterSink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// LoggerSink reports every sample as a debug log entry.
type LoggerSink struct {
	logger logging.Logger
}

// NewLoggerSink returns a sink logging to logger.
func NewLoggerSink(logger logging.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// WriteSample logs the sample.
func (s *LoggerSink) WriteSample(ctx context.Context, sample control.Sample) error {
	s.logger.Debugw("speed sample",
		"tick", sample.Tick,
		"speed", sample.Speed,
		"target", sample.Target,
		"duty", sample.Duty,
		"error", sample.PID.Error,
		"integral_term", sample.PID.I,
		"saturated", sample.Saturated,
		"degenerate", sample.Degenerate,
	)
	return nil
}

// Close does nothing.
func (s *LoggerSink) Close(ctx context.Context) error {
	return nil
}

type multiSink []Sink

// Combine returns a sink that writes to all of sinks. Every sink is written even if an earlier
// one fails.
func Combine(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) WriteSample(ctx context.Context, sample control.Sample) error {
	var errs error
	for _, s := range m {
		errs = multierr.Combine(errs, s.WriteSample(ctx, sample))
	}
	return errs
}

func (m multiSink) Close(ctx context.Context) error {
	var errs error
	for _, s := range m {
		errs = multierr.Combine(errs, s.Close(ctx))
	}
	return errs
}
