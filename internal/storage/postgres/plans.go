package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidbz/liftplan/internal/domain"
)

const planColumns = `id, name, preferences, structure, model, fallback_used, previous_id, created_at, archived_at`

// PlanRepository implements domain.PlanRepository.
type PlanRepository struct {
	pool *pgxpool.Pool
}

// Create stores a new plan.
func (r *PlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	prefs, err := json.Marshal(plan.Preferences)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	structure, err := json.Marshal(plan.Structure)
	if err != nil {
		return fmt.Errorf("encoding structure: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO plans (`+planColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, plan.ID, plan.Name, prefs, structure, plan.Model, plan.FallbackUsed,
		plan.PreviousID, plan.CreatedAt, plan.ArchivedAt)
	if err != nil {
		return mapError(err, "plan "+plan.ID)
	}
	return nil
}

// Get retrieves a plan by ID.
func (r *PlanRepository) Get(ctx context.Context, id string) (*domain.Plan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)

	plan, err := scanPlan(row)
	if err != nil {
		return nil, mapError(err, "plan "+id)
	}
	return plan, nil
}

// List returns plans newest first.
func (r *PlanRepository) List(ctx context.Context, includeArchived bool) ([]*domain.Plan, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+planColumns+` FROM plans
		WHERE $1 OR archived_at IS NULL
		ORDER BY created_at DESC, id DESC
	`, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		plan, scanErr := scanPlan(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning plan: %w", scanErr)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// Archive marks a plan archived; archiving twice keeps the first timestamp.
func (r *PlanRepository) Archive(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE plans SET archived_at = COALESCE(archived_at, NOW()) WHERE id = $1
	`, id)
	if err != nil {
		return mapError(err, "plan "+id)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "plan "+id)
	}
	return nil
}

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var (
		plan      domain.Plan
		prefs     []byte
		structure []byte
	)

	err := row.Scan(&plan.ID, &plan.Name, &prefs, &structure, &plan.Model, &plan.FallbackUsed,
		&plan.PreviousID, &plan.CreatedAt, &plan.ArchivedAt)
	if err != nil {
		return nil, err
	}

	if err = json.Unmarshal(prefs, &plan.Preferences); err != nil {
		return nil, fmt.Errorf("decoding preferences: %w", err)
	}
	if err = json.Unmarshal(structure, &plan.Structure); err != nil {
		return nil, fmt.Errorf("decoding structure: %w", err)
	}

	plan.CreatedAt = plan.CreatedAt.UTC()
	plan.ArchivedAt = utcPtr(plan.ArchivedAt)

	return &plan, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
