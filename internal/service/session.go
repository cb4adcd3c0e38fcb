package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/observability"
)

const dateLayout = "2006-01-02"

// SessionService creates and tracks workout sessions.
type SessionService struct {
	plans    domain.PlanRepository
	sessions domain.SessionRepository
	validate *validator.Validate
	now      func() time.Time
}

// NewSessionService creates a new session service (DI constructor).
func NewSessionService(plans domain.PlanRepository, sessions domain.SessionRepository) *SessionService {
	return &SessionService{
		plans:    plans,
		sessions: sessions,
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create starts a session for the first day template of planID named
// dayName. An empty date means today.
func (s *SessionService) Create(ctx context.Context, planID, dayName, date string) (*domain.SessionRecord, error) {
	if dayName == "" {
		return nil, fmt.Errorf("%w: day_name is required", domain.ErrInvalidInput)
	}

	now := s.now()
	if date == "" {
		date = now.Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}

	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	day, ok := findDay(plan.Structure, dayName)
	if !ok {
		return nil, fmt.Errorf("%w: plan has no day %q", domain.ErrInvalidInput, dayName)
	}

	record := &domain.SessionRecord{
		ID:          uuid.NewString(),
		PlanID:      plan.ID,
		Status:      domain.SessionInProgress,
		Session:     NewSessionDocument(plan.Name, day, date),
		CreatedAt:   now,
		UpdatedAt:   now,
		CompletedAt: nil,
	}
	if err = s.sessions.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	observability.FromContext(ctx).Info("session created",
		observability.String("session_id", record.ID),
		observability.String("plan_id", plan.ID),
		observability.String("day", dayName))

	return record, nil
}

// Get returns a session by ID.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.SessionRecord, error) {
	record, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return record, nil
}

// Update replaces the document of an in-progress session.
func (s *SessionService) Update(ctx context.Context, id string, doc domain.SessionDocument) (*domain.SessionRecord, error) {
	if err := s.checkDocument(doc); err != nil {
		return nil, err
	}

	record, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if record.Status == domain.SessionCompleted {
		return nil, fmt.Errorf("session %s is completed: %w", id, domain.ErrConflict)
	}

	record.Session = doc
	record.UpdatedAt = s.now()
	if err = s.sessions.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return record, nil
}

// Complete finalises a session, optionally replacing its document first.
func (s *SessionService) Complete(ctx context.Context, id string, doc *domain.SessionDocument) (*domain.SessionRecord, error) {
	if doc != nil {
		if err := s.checkDocument(*doc); err != nil {
			return nil, err
		}
	}

	record, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if record.Status == domain.SessionCompleted {
		return nil, fmt.Errorf("session %s is already completed: %w", id, domain.ErrConflict)
	}

	now := s.now()
	if doc != nil {
		record.Session = *doc
	}
	record.Status = domain.SessionCompleted
	record.UpdatedAt = now
	record.CompletedAt = &now

	if err = s.sessions.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	observability.FromContext(ctx).Info("session completed", observability.String("session_id", id))

	return record, nil
}

func (s *SessionService) checkDocument(doc domain.SessionDocument) error {
	if err := s.validate.Struct(doc); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}
	return nil
}

// History returns the sessions of planID oldest first.
func (s *SessionService) History(ctx context.Context, planID string) ([]*domain.SessionRecord, error) {
	if _, err := s.plans.Get(ctx, planID); err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	records, err := s.sessions.ListByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return records, nil
}

// NewSessionDocument instantiates a day template with empty actual values.
func NewSessionDocument(planName string, day domain.PlanDay, date string) domain.SessionDocument {
	exercises := make([]domain.ExerciseRecord, 0, len(day.Exercises))
	for _, ex := range day.Exercises {
		sets := make([]domain.SetRecord, 0, len(ex.Sets))
		for _, set := range ex.Sets {
			record := domain.SetRecord{
				PlannedReps: set.Reps,
				RestSeconds: set.RestSeconds,
			}
			if set.Weight != nil {
				weight := *set.Weight
				record.PlannedWeight = &weight
			}
			sets = append(sets, record)
		}
		exercises = append(exercises, domain.ExerciseRecord{Name: ex.Name, Sets: sets})
	}

	return domain.SessionDocument{
		PlanName:  planName,
		DayName:   day.Name,
		Date:      date,
		Exercises: exercises,
	}
}

func findDay(s domain.PlanStructure, name string) (domain.PlanDay, bool) {
	for _, week := range s.Weeks {
		for _, day := range week.Days {
			if day.Name == name {
				return day, true
			}
		}
	}
	return domain.PlanDay{}, false
}
