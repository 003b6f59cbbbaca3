package telemetry

import (
	"io"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.viam.com/utils"
)

// DefaultBaudRate matches the diagnostic console of the reference board.
const DefaultBaudRate = 115200

// SerialConfig describes a serial telemetry port.
type SerialConfig struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *SerialConfig) Validate(path string) error {
	if conf.Port == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "port")
	}
	if conf.BaudRate < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("baud_rate cannot be negative, got %d", conf.BaudRate))
	}
	return nil
}

// openSerial opens a serial port. It's a variable so tests can replace it.
var openSerial = func(port string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(port, mode)
}

// NewSerialSink opens the port and returns a sink writing CRLF terminated lines to it.
func NewSerialSink(conf SerialConfig) (*WriterSink, error) {
	if err := conf.Validate("serial"); err != nil {
		return nil, err
	}
	baud := conf.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	port, err := openSerial(conf.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %q", conf.Port)
	}
	return &WriterSink{w: port, closer: port, newline: "\r\n"}, nil
}
