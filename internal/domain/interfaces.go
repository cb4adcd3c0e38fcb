package domain

import "context"

// PlanRepository persists training plans.
type PlanRepository interface {
	// Create stores a new plan. The ID and CreatedAt are assigned by the caller.
	Create(ctx context.Context, plan *Plan) error

	// Get retrieves a plan by ID.
	Get(ctx context.Context, id string) (*Plan, error)

	// List returns plans ordered newest first, optionally including archived ones.
	List(ctx context.Context, includeArchived bool) ([]*Plan, error)

	// Archive marks a plan archived.
	Archive(ctx context.Context, id string) error
}

// SessionRepository persists workout sessions.
type SessionRepository interface {
	// Create stores a new session record.
	Create(ctx context.Context, record *SessionRecord) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*SessionRecord, error)

	// Update replaces the stored document and status fields of a session.
	// It returns ErrConflict when the stored session is already completed.
	Update(ctx context.Context, record *SessionRecord) error

	// ListByPlan returns a plan's sessions ordered oldest first.
	ListByPlan(ctx context.Context, planID string) ([]*SessionRecord, error)
}
