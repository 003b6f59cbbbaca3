//go:build linux

package genericlinux

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

type periphGpioPin struct {
	b       *Board
	pin     gpio.PinIO
	pinName string
}

func (gp periphGpioPin) Set(ctx context.Context, high bool) error {
	gp.b.mu.Lock()
	defer gp.b.mu.Unlock()

	delete(gp.b.pwms, gp.pinName)

	return gp.set(high)
}

// set does not remove the pin from the board's pwms map, so the software PWM loop can toggle
// the pin while it is still treated as a PWM pin.
func (gp periphGpioPin) set(high bool) error {
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return gp.pin.Out(l)
}

func (gp periphGpioPin) Get(ctx context.Context) (bool, error) {
	return gp.pin.Read() == gpio.High, nil
}

func (gp periphGpioPin) PWM(ctx context.Context) (float64, error) {
	gp.b.mu.RLock()
	defer gp.b.mu.RUnlock()

	pwm, ok := gp.b.pwms[gp.pinName]
	if !ok {
		return 0, errors.Errorf("missing pin %s", gp.pinName)
	}
	return float64(pwm.dutyCycle) / float64(gpio.DutyMax), nil
}

// SetPWM tries hardware PWM first and falls back to a software loop.
func (gp periphGpioPin) SetPWM(ctx context.Context, dutyCyclePct float64) error {
	if dutyCyclePct < 0 || dutyCyclePct > 1 {
		return errors.Errorf("duty cycle %.3f for pin %s is outside [0, 1]", dutyCyclePct, gp.pinName)
	}
	gp.b.mu.Lock()
	defer gp.b.mu.Unlock()

	last, alreadySet := gp.b.pwms[gp.pinName]
	if last.frequency == 0 {
		last.frequency = gp.b.defaultPWM
	}
	last.dutyCycle = gpio.Duty(dutyCyclePct * float64(gpio.DutyMax))
	gp.b.pwms[gp.pinName] = last

	if err := gp.pin.PWM(last.dutyCycle, last.frequency); err == nil {
		return nil
	}

	if !alreadySet {
		gp.b.startSoftwarePWMLoop(gp)
	}
	return nil
}

func (gp periphGpioPin) PWMFreq(ctx context.Context) (uint, error) {
	gp.b.mu.RLock()
	defer gp.b.mu.RUnlock()

	return uint(gp.b.pwms[gp.pinName].frequency / physic.Hertz), nil
}

func (gp periphGpioPin) SetPWMFreq(ctx context.Context, freqHz uint) error {
	gp.b.mu.Lock()
	defer gp.b.mu.Unlock()

	last, alreadySet := gp.b.pwms[gp.pinName]
	frequency := gp.b.defaultPWM
	if freqHz != 0 {
		frequency = physic.Hertz * physic.Frequency(freqHz)
	}
	last.frequency = frequency
	gp.b.pwms[gp.pinName] = last

	if err := gp.pin.PWM(last.dutyCycle, frequency); err == nil {
		return nil
	}

	if !alreadySet {
		gp.b.startSoftwarePWMLoop(gp)
	}
	return nil
}

// expects to already have lock acquired.
func (b *Board) startSoftwarePWMLoop(gp periphGpioPin) {
	b.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		b.softwarePWMLoop(b.cancelCtx, gp)
	}, b.activeBackgroundWorkers.Done)
}

func (b *Board) softwarePWMLoop(ctx context.Context, gp periphGpioPin) {
	for {
		cont := func() bool {
			b.mu.RLock()
			pwmSetting, ok := b.pwms[gp.pinName]
			b.mu.RUnlock()
			if !ok {
				b.logger.Debugw("pwm setting deleted; stopping", "pin_name", gp.pinName)
				return false
			}

			period := pwmSetting.frequency.Period()
			onPeriod := time.Duration(int64((float64(pwmSetting.dutyCycle) / float64(gpio.DutyMax)) * float64(period)))
			if onPeriod > 0 {
				if err := gp.set(true); err != nil {
					b.logger.Errorw("error setting pin", "pin_name", gp.pinName, "error", err)
					return goutils.SelectContextOrWait(ctx, period)
				}
				if !goutils.SelectContextOrWait(ctx, onPeriod) {
					return false
				}
			}
			if err := gp.set(false); err != nil {
				b.logger.Errorw("error setting pin", "pin_name", gp.pinName, "error", err)
				return goutils.SelectContextOrWait(ctx, period)
			}
			return goutils.SelectContextOrWait(ctx, period-onPeriod)
		}()
		if !cont {
			return
		}
	}
}
