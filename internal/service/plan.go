// Package service implements the plan and session use cases behind the API.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/davidbz/liftplan/internal/completion"
	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/observability"
	"github.com/davidbz/liftplan/internal/prompt"
	"github.com/davidbz/liftplan/internal/schema"
)

const (
	minCycleWeeks = 1
	maxCycleWeeks = 16
)

// PlanSchema is the structured output requested for every plan.
var PlanSchema = schema.MustNew[domain.PlanStructure]("training_plan")

// PlanGenerator turns chat messages into a plan structure.
type PlanGenerator interface {
	Generate(ctx context.Context, messages []domain.Message) (*completion.Result[domain.PlanStructure], error)
}

// CompletionPlanGenerator generates plans with the structured completion client.
type CompletionPlanGenerator struct {
	client *completion.Client
}

// NewCompletionPlanGenerator creates a new plan generator (DI constructor).
func NewCompletionPlanGenerator(client *completion.Client) *CompletionPlanGenerator {
	return &CompletionPlanGenerator{client: client}
}

// Generate runs a structured completion against PlanSchema.
func (g *CompletionPlanGenerator) Generate(
	ctx context.Context,
	messages []domain.Message,
) (*completion.Result[domain.PlanStructure], error) {
	return completion.Generate(ctx, g.client, messages, PlanSchema)
}

// NextCycleRequest describes the cycle that follows an existing plan.
// Zero values keep the previous plan's settings.
type NextCycleRequest struct {
	Preferences *domain.Preferences `json:"preferences,omitempty"`
	CycleWeeks  int                 `json:"cycle_weeks,omitempty"`
	Notes       string              `json:"notes,omitempty"`
}

// PlanService generates and manages training plans.
type PlanService struct {
	plans     domain.PlanRepository
	sessions  domain.SessionRepository
	generator PlanGenerator
	validate  *validator.Validate
	now       func() time.Time
}

// NewPlanService creates a new plan service (DI constructor).
func NewPlanService(
	plans domain.PlanRepository,
	sessions domain.SessionRepository,
	generator PlanGenerator,
) *PlanService {
	return &PlanService{
		plans:     plans,
		sessions:  sessions,
		generator: generator,
		validate:  newValidator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate creates a new plan from the user's preferences.
func (s *PlanService) Generate(ctx context.Context, prefs domain.Preferences) (*domain.Plan, error) {
	if err := s.validate.Struct(prefs); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}

	result, err := s.generator.Generate(ctx, prompt.InitialMessages(prefs))
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}

	plan := s.newPlan(prefs, result, nil)
	if err = s.plans.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to store plan: %w", err)
	}

	observability.FromContext(ctx).Info("plan generated",
		observability.String("plan_id", plan.ID),
		observability.String("model", plan.Model),
		observability.Bool("fallback_used", plan.FallbackUsed))

	return plan, nil
}

// NextCycle generates the cycle that follows planID from its session
// history, then archives planID.
func (s *PlanService) NextCycle(ctx context.Context, planID string, req NextCycleRequest) (*domain.Plan, error) {
	current, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if current.ArchivedAt != nil {
		return nil, fmt.Errorf("plan %s is archived: %w", planID, domain.ErrConflict)
	}

	prefs := current.Preferences
	if req.Preferences != nil {
		if err = s.validate.Struct(*req.Preferences); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
		}
		prefs = *req.Preferences
	}

	weeks := req.CycleWeeks
	if weeks == 0 {
		weeks = prefs.CycleWeeks
	}
	if weeks < minCycleWeeks || weeks > maxCycleWeeks {
		return nil, fmt.Errorf("%w: cycle_weeks must be between %d and %d", domain.ErrInvalidInput, minCycleWeeks, maxCycleWeeks)
	}

	records, err := s.sessions.ListByPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}

	var history []domain.SessionDocument
	for _, record := range records {
		if record.Status == domain.SessionCompleted {
			history = append(history, record.Session)
		}
	}

	messages := prompt.NextCycleMessages(current.Structure, req.Preferences, history, weeks, req.Notes)
	result, err := s.generator.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate next cycle: %w", err)
	}

	prefs.CycleWeeks = weeks
	if req.Notes != "" {
		prefs.Notes = req.Notes
	}

	plan := s.newPlan(prefs, result, &current.ID)
	if err = s.plans.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to store plan: %w", err)
	}
	if err = s.plans.Archive(ctx, current.ID); err != nil {
		return nil, fmt.Errorf("failed to archive previous plan: %w", err)
	}

	observability.FromContext(ctx).Info("next cycle generated",
		observability.String("plan_id", plan.ID),
		observability.String("previous_id", current.ID),
		observability.Int("history_sessions", len(history)),
		observability.String("model", plan.Model))

	return plan, nil
}

// Get returns a plan by ID.
func (s *PlanService) Get(ctx context.Context, id string) (*domain.Plan, error) {
	plan, err := s.plans.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

// List returns plans newest first.
func (s *PlanService) List(ctx context.Context, includeArchived bool) ([]*domain.Plan, error) {
	plans, err := s.plans.List(ctx, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// Archive hides a plan from the default listing.
func (s *PlanService) Archive(ctx context.Context, id string) error {
	if err := s.plans.Archive(ctx, id); err != nil {
		return fmt.Errorf("failed to archive plan: %w", err)
	}
	return nil
}

func (s *PlanService) newPlan(
	prefs domain.Preferences,
	result *completion.Result[domain.PlanStructure],
	previousID *string,
) *domain.Plan {
	return &domain.Plan{
		ID:           uuid.NewString(),
		Name:         result.Data.Name,
		Preferences:  prefs,
		Structure:    result.Data,
		Model:        result.Model,
		FallbackUsed: result.FallbackUsed,
		PreviousID:   previousID,
		CreatedAt:    s.now(),
		ArchivedAt:   nil,
	}
}
