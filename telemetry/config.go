package telemetry

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/speedctl/logging"
)

// Config selects the telemetry sinks of a speed loop.
type Config struct {
	Stdout bool          `json:"stdout,omitempty"`
	File   *FileConfig   `json:"file,omitempty"`
	Serial *SerialConfig `json:"serial,omitempty"`
	Log    bool          `json:"log,omitempty"`
	// JitterWindow enables jitter reports every JitterWindow samples when positive.
	JitterWindow int `json:"jitter_window,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.File != nil {
		if err := conf.File.Validate(path + ".file"); err != nil {
			return err
		}
	}
	if conf.Serial != nil {
		if err := conf.Serial.Validate(path + ".serial"); err != nil {
			return err
		}
	}
	if conf.JitterWindow < 0 {
		return errors.Errorf("%s.jitter_window cannot be negative, got %d", path, conf.JitterWindow)
	}
	return nil
}

// New opens every configured sink. stdout is used for the Stdout sink. If any sink fails to open,
// the ones already opened are closed.
func New(ctx context.Context, conf Config, stdout io.Writer, logger logging.Logger) (sink Sink, err error) {
	if err := conf.Validate("telemetry"); err != nil {
		return nil, err
	}

	var sinks []Sink
	defer func() {
		if err != nil {
			err = multierr.Combine(err, Combine(sinks...).Close(ctx))
		}
	}()

	if conf.Stdout {
		sinks = append(sinks, NewWriterSink(stdout))
	}
	if conf.File != nil {
		fileSink, err := NewFileSink(*conf.File)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fileSink)
	}
	if conf.Serial != nil {
		serialSink, err := NewSerialSink(*conf.Serial)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, serialSink)
	}
	if conf.Log {
		sinks = append(sinks, NewLoggerSink(logger))
	}
	if conf.JitterWindow > 0 {
		sinks = append(sinks, NewJitterSink(conf.JitterWindow, logger))
	}
	logger.Debugw("telemetry sinks opened", "count", len(sinks))
	return Combine(sinks...), nil
}
