// Package fake implements a fake motor that records every command.
package fake

import (
	"context"
	"sync"

	"go.viam.com/speedctl/components/motor"
)

var _ = motor.Motor(&Motor{})

// Command is one SetDuty call.
type Command struct {
	Forward bool
	Duty    uint8
}

// Motor records duty commands.
type Motor struct {
	mu         sync.Mutex
	commands   []Command
	StopCount  int
	CloseCount int
	// SetDutyErr is returned from SetDuty when set.
	SetDutyErr error
}

// SetDuty records the command.
func (m *Motor) SetDuty(ctx context.Context, forward bool, duty uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetDutyErr != nil {
		return m.SetDutyErr
	}
	m.commands = append(m.commands, Command{Forward: forward, Duty: duty})
	return nil
}

// Duty returns the last command, or stopped when nothing was sent.
func (m *Motor) Duty(ctx context.Context) (bool, uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commands) == 0 {
		return true, 0, nil
	}
	last := m.commands[len(m.commands)-1]
	return last.Forward, last.Duty, nil
}

// Commands returns a copy of every recorded command.
func (m *Motor) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command{}, m.commands...)
}

// Stop records a zero duty command.
func (m *Motor) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.StopCount++
	m.commands = append(m.commands, Command{Forward: true})
	m.mu.Unlock()
	return nil
}

// Close stops the motor.
func (m *Motor) Close(ctx context.Context) error {
	m.mu.Lock()
	m.CloseCount++
	m.mu.Unlock()
	return m.Stop(ctx)
}
