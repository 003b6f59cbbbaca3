package inject

import (
	"context"

	"go.viam.com/speedctl/components/motor"
)

// Motor is an injected motor.
type Motor struct {
	motor.Motor
	SetDutyFunc func(ctx context.Context, forward bool, duty uint8) error
	DutyFunc    func(ctx context.Context) (bool, uint8, error)
	StopFunc    func(ctx context.Context) error
	CloseFunc   func(ctx context.Context) error
}

// SetDuty calls the injected SetDuty or the real version.
func (m *Motor) SetDuty(ctx context.Context, forward bool, duty uint8) error {
	if m.SetDutyFunc == nil {
		return m.Motor.SetDuty(ctx, forward, duty)
	}
	return m.SetDutyFunc(ctx, forward, duty)
}

// Duty calls the injected Duty or the real version.
func (m *Motor) Duty(ctx context.Context) (bool, uint8, error) {
	if m.DutyFunc == nil {
		return m.Motor.Duty(ctx)
	}
	return m.DutyFunc(ctx)
}

// Stop calls the injected Stop or the real version.
func (m *Motor) Stop(ctx context.Context) error {
	if m.StopFunc == nil {
		return m.Motor.Stop(ctx)
	}
	return m.StopFunc(ctx)
}

// Close calls the injected Close or the real version.
func (m *Motor) Close(ctx context.Context) error {
	if m.CloseFunc == nil {
		if m.Motor == nil {
			return nil
		}
		return m.Motor.Close(ctx)
	}
	return m.CloseFunc(ctx)
}
