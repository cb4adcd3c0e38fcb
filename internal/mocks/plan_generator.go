package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/davidbz/liftplan/internal/completion"
	"github.com/davidbz/liftplan/internal/domain"
)

// PlanGenerator is a mock of service.PlanGenerator.
type PlanGenerator struct {
	mock.Mock
}

// Generate records the call.
func (m *PlanGenerator) Generate(
	ctx context.Context,
	messages []domain.Message,
) (*completion.Result[domain.PlanStructure], error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*completion.Result[domain.PlanStructure]), args.Error(1)
}
