package mocks

import "github.com/stretchr/testify/mock"

// Host is a mock of workout.Host.
type Host struct {
	mock.Mock
}

// Navigate records the call.
func (m *Host) Navigate(destination string) {
	m.Called(destination)
}

// Confirm records the call.
func (m *Host) Confirm(prompt string) bool {
	args := m.Called(prompt)
	return args.Bool(0)
}

// SetUnloadGuard records the call.
func (m *Host) SetUnloadGuard(enabled bool) {
	m.Called(enabled)
}

// Notifier is a mock of workout.Notifier.
type Notifier struct {
	mock.Mock
}

// Publish records the call.
func (m *Notifier) Publish(severity, message string) {
	m.Called(severity, message)
}
