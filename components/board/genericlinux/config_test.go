package genericlinux

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/speedctl/components/board"
)

func TestConfigValidate(t *testing.T) {
	conf := Config{}
	err := conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"digital_interrupts" is required`)

	conf.DigitalInterrupts = []board.DigitalInterruptConfig{{Name: "a"}}
	err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `path.digital_interrupts.0`)

	conf.DigitalInterrupts = []board.DigitalInterruptConfig{{Name: "a", Pin: "17"}, {Name: "b", Pin: "27"}}
	test.That(t, conf.Validate("path"), test.ShouldBeNil)
	test.That(t, conf.chipDev(), test.ShouldEqual, DefaultGPIOChipDev)
	test.That(t, conf.pwmFreqHz(), test.ShouldEqual, uint(DefaultPWMFreqHz))

	conf.GPIOChipDev = "/dev/gpiochip4"
	conf.PWMFreqHz = 20000
	test.That(t, conf.chipDev(), test.ShouldEqual, "/dev/gpiochip4")
	test.That(t, conf.pwmFreqHz(), test.ShouldEqual, uint(20000))
}
