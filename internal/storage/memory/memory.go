// Package memory implements the repositories with in-process maps. Records
// are copied on the way in and out so callers never share state.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/davidbz/liftplan/internal/domain"
)

// Store holds plans and sessions.
type Store struct {
	mu       sync.RWMutex
	plans    map[string]*domain.Plan
	sessions map[string]*domain.SessionRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		plans:    make(map[string]*domain.Plan),
		sessions: make(map[string]*domain.SessionRecord),
	}
}

// Plans returns the store as a plan repository.
func (s *Store) Plans() *PlanRepository {
	return &PlanRepository{store: s}
}

// Sessions returns the store as a session repository.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{store: s}
}

// PlanRepository implements domain.PlanRepository.
type PlanRepository struct {
	store *Store
}

// Create stores a new plan.
func (r *PlanRepository) Create(_ context.Context, plan *domain.Plan) error {
	if plan == nil || plan.ID == "" {
		return errors.New("plan ID cannot be empty")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.plans[plan.ID]; exists {
		return fmt.Errorf("plan %s already exists: %w", plan.ID, domain.ErrConflict)
	}
	r.store.plans[plan.ID] = copyPlan(plan)
	return nil
}

// Get retrieves a plan by ID.
func (r *PlanRepository) Get(_ context.Context, id string) (*domain.Plan, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	plan, ok := r.store.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
	}
	return copyPlan(plan), nil
}

// List returns plans newest first.
func (r *PlanRepository) List(_ context.Context, includeArchived bool) ([]*domain.Plan, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	plans := make([]*domain.Plan, 0, len(r.store.plans))
	for _, plan := range r.store.plans {
		if plan.ArchivedAt != nil && !includeArchived {
			continue
		}
		plans = append(plans, copyPlan(plan))
	}

	sort.Slice(plans, func(i, j int) bool {
		if plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].ID > plans[j].ID
		}
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})

	return plans, nil
}

// Archive marks a plan archived; archiving twice keeps the first timestamp.
func (r *PlanRepository) Archive(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	plan, ok := r.store.plans[id]
	if !ok {
		return fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
	}
	if plan.ArchivedAt == nil {
		now := time.Now().UTC()
		plan.ArchivedAt = &now
	}
	return nil
}

// SessionRepository implements domain.SessionRepository.
type SessionRepository struct {
	store *Store
}

// Create stores a new session record.
func (r *SessionRepository) Create(_ context.Context, record *domain.SessionRecord) error {
	if record == nil || record.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.plans[record.PlanID]; !ok {
		return fmt.Errorf("plan %s: %w", record.PlanID, domain.ErrNotFound)
	}
	if _, exists := r.store.sessions[record.ID]; exists {
		return fmt.Errorf("session %s already exists: %w", record.ID, domain.ErrConflict)
	}
	r.store.sessions[record.ID] = copySession(record)
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(_ context.Context, id string) (*domain.SessionRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	record, ok := r.store.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return copySession(record), nil
}

// Update replaces a stored session. A completed session is never overwritten.
func (r *SessionRepository) Update(_ context.Context, record *domain.SessionRecord) error {
	if record == nil {
		return errors.New("session cannot be nil")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.sessions[record.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", record.ID, domain.ErrNotFound)
	}
	if stored.Status == domain.SessionCompleted {
		return fmt.Errorf("session %s is completed: %w", record.ID, domain.ErrConflict)
	}
	r.store.sessions[record.ID] = copySession(record)
	return nil
}

// ListByPlan returns a plan's sessions oldest first.
func (r *SessionRepository) ListByPlan(_ context.Context, planID string) ([]*domain.SessionRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var records []*domain.SessionRecord
	for _, record := range r.store.sessions {
		if record.PlanID == planID {
			records = append(records, copySession(record))
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

func copyPlan(p *domain.Plan) *domain.Plan {
	out := *p
	if p.PreviousID != nil {
		prev := *p.PreviousID
		out.PreviousID = &prev
	}
	if p.ArchivedAt != nil {
		at := *p.ArchivedAt
		out.ArchivedAt = &at
	}
	out.Structure = copyStructure(p.Structure)
	return &out
}

func copyStructure(s domain.PlanStructure) domain.PlanStructure {
	out := s
	out.Weeks = make([]domain.PlanWeek, len(s.Weeks))
	for i, week := range s.Weeks {
		days := make([]domain.PlanDay, len(week.Days))
		for j, day := range week.Days {
			exercises := make([]domain.PlanExercise, len(day.Exercises))
			for k, ex := range day.Exercises {
				exercises[k] = ex
				exercises[k].Sets = append([]domain.PlanSet(nil), ex.Sets...)
			}
			days[j] = day
			days[j].Exercises = exercises
		}
		out.Weeks[i] = domain.PlanWeek{Week: week.Week, Days: days}
	}
	return out
}

func copySession(r *domain.SessionRecord) *domain.SessionRecord {
	out := *r
	out.Session = r.Session.Clone()
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}
