package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/storage/postgres"
)

// openTestDB connects to LIFTPLAN_TEST_DATABASE_URL, skipping without it.
func openTestDB(t *testing.T) *postgres.DB {
	t.Helper()

	dsn := os.Getenv("LIFTPLAN_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LIFTPLAN_TEST_DATABASE_URL not set")
	}

	require.NoError(t, postgres.RunMigrations(dsn))

	db, err := postgres.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

func testPlan() *domain.Plan {
	weight := 80.0
	return &domain.Plan{
		ID:   uuid.NewString(),
		Name: "Integration Block",
		Preferences: domain.Preferences{
			Goal: "Strength", System: "Linear", DaysPerWeek: 3, SessionMinutes: 60, CycleWeeks: 4,
		},
		Structure: domain.PlanStructure{
			Name: "Integration Block",
			Weeks: []domain.PlanWeek{{Week: 1, Days: []domain.PlanDay{{
				Name: "A",
				Exercises: []domain.PlanExercise{{
					Name: "Deadlift",
					Sets: []domain.PlanSet{{Reps: 5, Weight: &weight, RestSeconds: 180}},
				}},
			}}}},
		},
		Model:     "openai/gpt-4o-mini",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestPlanRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := db.Plans()

	t.Run("should round-trip a plan", func(t *testing.T) {
		plan := testPlan()
		require.NoError(t, repo.Create(ctx, plan))

		got, err := repo.Get(ctx, plan.ID)
		require.NoError(t, err)
		require.Equal(t, plan.Structure, got.Structure)
		require.Equal(t, plan.Preferences, got.Preferences)
		require.True(t, plan.CreatedAt.Equal(got.CreatedAt))
		require.Nil(t, got.ArchivedAt)

		require.ErrorIs(t, repo.Create(ctx, plan), domain.ErrConflict)
	})

	t.Run("should archive and filter", func(t *testing.T) {
		plan := testPlan()
		require.NoError(t, repo.Create(ctx, plan))
		require.NoError(t, repo.Archive(ctx, plan.ID))

		active, err := repo.List(ctx, false)
		require.NoError(t, err)
		for _, p := range active {
			require.NotEqual(t, plan.ID, p.ID)
		}

		got, err := repo.Get(ctx, plan.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ArchivedAt)
	})

	t.Run("should report missing plans", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.NewString())
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.ErrorIs(t, repo.Archive(ctx, uuid.NewString()), domain.ErrNotFound)
	})
}

func TestSessionRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	plan := testPlan()
	require.NoError(t, db.Plans().Create(ctx, plan))
	repo := db.Sessions()

	now := time.Now().UTC().Truncate(time.Millisecond)
	record := &domain.SessionRecord{
		ID:     uuid.NewString(),
		PlanID: plan.ID,
		Status: domain.SessionInProgress,
		Session: domain.SessionDocument{
			PlanName: plan.Name, DayName: "A", Date: "2026-03-02",
			Exercises: []domain.ExerciseRecord{{Name: "Deadlift", Sets: []domain.SetRecord{{PlannedReps: 5}}}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, record))

	stale := *record

	record.Status = domain.SessionCompleted
	record.CompletedAt = &now
	require.NoError(t, repo.Update(ctx, record))

	require.ErrorIs(t, repo.Update(ctx, &stale), domain.ErrConflict)
	ghost := stale
	ghost.ID = uuid.NewString()
	require.ErrorIs(t, repo.Update(ctx, &ghost), domain.ErrNotFound)

	list, err := repo.ListByPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, domain.SessionCompleted, list[0].Status)
	require.Equal(t, record.Session, list[0].Session)

	orphan := *record
	orphan.ID = uuid.NewString()
	orphan.PlanID = uuid.NewString()
	require.ErrorIs(t, repo.Create(ctx, &orphan), domain.ErrNotFound)
}
