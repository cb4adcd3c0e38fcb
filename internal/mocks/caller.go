package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/davidbz/liftplan/internal/completion"
)

// Caller is a mock of completion.Caller.
type Caller struct {
	mock.Mock
}

// Call records the call.
func (m *Caller) Call(ctx context.Context, req *completion.ModelRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
