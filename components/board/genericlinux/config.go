// Package genericlinux implements a Linux board. Encoder channels are read as GPIO character
// device lines with edge events, and motor pins are driven through periph.io.
package genericlinux

import (
	"fmt"

	"go.viam.com/utils"

	"go.viam.com/speedctl/components/board"
)

// DefaultGPIOChipDev is the character device used when none is configured.
const DefaultGPIOChipDev = "/dev/gpiochip0"

// DefaultPWMFreqHz is the software PWM frequency used until SetPWMFreq is called.
const DefaultPWMFreqHz = 800

// A Config describes the configuration of a board and all of its connected parts.
type Config struct {
	// GPIOChipDev is the GPIO character device holding the interrupt lines.
	GPIOChipDev string `json:"gpio_chip_dev,omitempty"`
	// DigitalInterrupts map names onto line offsets of GPIOChipDev.
	DigitalInterrupts []board.DigitalInterruptConfig `json:"digital_interrupts,omitempty"`
	// PWMFreqHz is the default software PWM frequency of output pins.
	PWMFreqHz uint `json:"pwm_freq_hz,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if len(config.DigitalInterrupts) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "digital_interrupts")
	}
	for idx, conf := range config.DigitalInterrupts {
		if err := conf.Validate(fmt.Sprintf("%s.%s.%d", path, "digital_interrupts", idx)); err != nil {
			return err
		}
	}
	return nil
}

func (config *Config) chipDev() string {
	if config.GPIOChipDev == "" {
		return DefaultGPIOChipDev
	}
	return config.GPIOChipDev
}

func (config *Config) pwmFreqHz() uint {
	if config.PWMFreqHz == 0 {
		return DefaultPWMFreqHz
	}
	return config.PWMFreqHz
}
