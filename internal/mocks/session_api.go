// Package mocks holds testify mocks of the interfaces consumed across packages.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/davidbz/liftplan/internal/domain"
)

// SessionAPI is a mock of workout.SessionAPI.
type SessionAPI struct {
	mock.Mock
}

// UpdateSession records the call.
func (m *SessionAPI) UpdateSession(ctx context.Context, id string, doc domain.SessionDocument) error {
	args := m.Called(ctx, id, doc)
	return args.Error(0)
}

// CompleteSession records the call.
func (m *SessionAPI) CompleteSession(
	ctx context.Context,
	id string,
	doc *domain.SessionDocument,
) (*domain.SessionRecord, error) {
	args := m.Called(ctx, id, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionRecord), args.Error(1)
}
