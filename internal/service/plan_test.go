package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/liftplan/internal/completion"
	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/mocks"
	"github.com/davidbz/liftplan/internal/service"
	"github.com/davidbz/liftplan/internal/storage/memory"
)

func ptr[T any](v T) *T {
	return &v
}

func preferences() domain.Preferences {
	return domain.Preferences{
		Goal:           "Strength",
		System:         "5/3/1",
		DaysPerWeek:    3,
		SessionMinutes: 75,
		CycleWeeks:     4,
	}
}

func structure(name string) domain.PlanStructure {
	return domain.PlanStructure{
		Name: name,
		Weeks: []domain.PlanWeek{{
			Week: 1,
			Days: []domain.PlanDay{
				{
					Name: "Squat Day",
					Exercises: []domain.PlanExercise{{
						Name: "Back Squat",
						Sets: []domain.PlanSet{
							{Reps: 5, Weight: ptr(100.0), RestSeconds: 180},
							{Reps: 5, Weight: ptr(100.0), RestSeconds: 180},
						},
					}},
				},
				{
					Name: "Bench Day",
					Exercises: []domain.PlanExercise{{
						Name: "Push-up",
						Sets: []domain.PlanSet{{Reps: 15, RestSeconds: 60}},
					}},
				},
			},
		}},
	}
}

func result(name, model string, fallback bool) *completion.Result[domain.PlanStructure] {
	return &completion.Result[domain.PlanStructure]{Data: structure(name), Model: model, FallbackUsed: fallback}
}

type fixture struct {
	store     *memory.Store
	generator *mocks.PlanGenerator
	plans     *service.PlanService
	sessions  *service.SessionService
}

func newFixture() *fixture {
	store := memory.New()
	generator := &mocks.PlanGenerator{}
	return &fixture{
		store:     store,
		generator: generator,
		plans:     service.NewPlanService(store.Plans(), store.Sessions(), generator),
		sessions:  service.NewSessionService(store.Plans(), store.Sessions()),
	}
}

func TestPlanService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("should store the generated plan", func(t *testing.T) {
		f := newFixture()
		f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(msgs []domain.Message) bool {
			return len(msgs) == 2 && strings.Contains(msgs[1].Content, "Goal: Strength")
		})).Return(result("Strength Block", "B", true), nil).Once()

		plan, err := f.plans.Generate(ctx, preferences())

		require.NoError(t, err)
		require.NotEmpty(t, plan.ID)
		require.Equal(t, "Strength Block", plan.Name)
		require.Equal(t, "B", plan.Model)
		require.True(t, plan.FallbackUsed)

		stored, err := f.plans.Get(ctx, plan.ID)
		require.NoError(t, err)
		require.Equal(t, plan.Structure, stored.Structure)
	})

	t.Run("should reject invalid preferences without generating", func(t *testing.T) {
		f := newFixture()
		prefs := preferences()
		prefs.DaysPerWeek = 9

		_, err := f.plans.Generate(ctx, prefs)

		require.ErrorIs(t, err, domain.ErrInvalidInput)
		require.Contains(t, err.Error(), "DaysPerWeek")
		f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("should keep the completion error kind", func(t *testing.T) {
		f := newFixture()
		f.generator.On("Generate", mock.Anything, mock.Anything).
			Return(nil, &completion.ParseError{Message: "response does not match schema"}).Once()

		_, err := f.plans.Generate(ctx, preferences())

		require.Equal(t, completion.KindParse, completion.Kind(err))
		plans, listErr := f.plans.List(ctx, true)
		require.NoError(t, listErr)
		require.Empty(t, plans)
	})
}

func TestPlanService_NextCycle(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, f *fixture) *domain.Plan {
		t.Helper()
		f.generator.On("Generate", mock.Anything, mock.Anything).Return(result("Block 1", "A", false), nil).Once()
		plan, err := f.plans.Generate(ctx, preferences())
		require.NoError(t, err)
		return plan
	}

	t.Run("should build on completed sessions and archive the previous plan", func(t *testing.T) {
		f := newFixture()
		previous := seed(t, f)

		done, err := f.sessions.Create(ctx, previous.ID, "Squat Day", "2026-02-01")
		require.NoError(t, err)
		doc := done.Session
		doc.Exercises[0].Sets[0].Completed = true
		doc.Exercises[0].Sets[0].ActualReps = ptr(5)
		_, err = f.sessions.Complete(ctx, done.ID, &doc)
		require.NoError(t, err)

		_, err = f.sessions.Create(ctx, previous.ID, "Bench Day", "2026-02-03")
		require.NoError(t, err)

		var sent []domain.Message
		f.generator.On("Generate", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { sent = args.Get(1).([]domain.Message) }).
			Return(result("Block 2", "A", false), nil).Once()

		next, err := f.plans.NextCycle(ctx, previous.ID, service.NextCycleRequest{CycleWeeks: 6, Notes: "deload week 4"})

		require.NoError(t, err)
		require.Equal(t, "Block 2", next.Name)
		require.Equal(t, &previous.ID, next.PreviousID)
		require.Equal(t, 6, next.Preferences.CycleWeeks)
		require.Equal(t, "deload week 4", next.Preferences.Notes)

		userPrompt := sent[1].Content
		require.Contains(t, userPrompt, "Session history (1 sessions")
		require.Contains(t, userPrompt, "Squat Day on 2026-02-01")
		require.NotContains(t, userPrompt, "Bench Day on")
		require.Contains(t, userPrompt, "deload week 4")

		old, err := f.plans.Get(ctx, previous.ID)
		require.NoError(t, err)
		require.NotNil(t, old.ArchivedAt)

		_, err = f.plans.NextCycle(ctx, previous.ID, service.NextCycleRequest{})
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("should reject an out of range cycle", func(t *testing.T) {
		f := newFixture()
		previous := seed(t, f)

		_, err := f.plans.NextCycle(ctx, previous.ID, service.NextCycleRequest{CycleWeeks: 40})

		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("should report unknown plans", func(t *testing.T) {
		f := newFixture()

		_, err := f.plans.NextCycle(ctx, "missing", service.NextCycleRequest{})

		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPlanService_ListAndArchive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.generator.On("Generate", mock.Anything, mock.Anything).Return(result("Block", "A", false), nil)

	plan, err := f.plans.Generate(ctx, preferences())
	require.NoError(t, err)
	require.NoError(t, f.plans.Archive(ctx, plan.ID))

	active, err := f.plans.List(ctx, false)
	require.NoError(t, err)
	require.Empty(t, active)

	all, err := f.plans.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.WithinDuration(t, time.Now(), *all[0].ArchivedAt, time.Minute)
}

func TestCompletionPlanGenerator(t *testing.T) {
	const validPlan = `{"name":"Full Body","weeks":[{"week":1,"days":[{"name":"Day A",` +
		`"exercises":[{"name":"Squat","sets":[{"reps":5,"weight":100,"rest_seconds":180}]}]}]}]}`

	t.Run("should fall back past an invalid plan", func(t *testing.T) {
		caller := &mocks.Caller{}
		caller.On("Call", mock.Anything, mock.MatchedBy(func(req *completion.ModelRequest) bool {
			return req.Model == "A" && req.SchemaName == "training_plan"
		})).Return(`{"name":"Empty","weeks":[]}`, nil).Once()
		caller.On("Call", mock.Anything, mock.MatchedBy(func(req *completion.ModelRequest) bool {
			return req.Model == "B"
		})).Return(validPlan, nil).Once()

		client, err := completion.New(
			completion.Config{APIKey: "key", Models: []string{"A", "B"}},
			completion.WithCaller(caller),
		)
		require.NoError(t, err)
		generator := service.NewCompletionPlanGenerator(client)

		result, err := generator.Generate(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "plan"}})

		require.NoError(t, err)
		require.Equal(t, "B", result.Model)
		require.True(t, result.FallbackUsed)
		require.Equal(t, "Full Body", result.Data.Name)
		require.Equal(t, 100.0, *result.Data.Weeks[0].Days[0].Exercises[0].Sets[0].Weight)
		caller.AssertExpectations(t)
	})
}
