package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidbz/liftplan/internal/domain"
)

const sessionColumns = `id, plan_id, status, session, created_at, updated_at, completed_at`

// SessionRepository implements domain.SessionRepository.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// Create stores a new session record.
func (r *SessionRepository) Create(ctx context.Context, record *domain.SessionRecord) error {
	doc, err := json.Marshal(record.Session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, record.ID, record.PlanID, record.Status, doc, record.CreatedAt, record.UpdatedAt, record.CompletedAt)
	if err != nil {
		return mapError(err, "session "+record.ID)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.SessionRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)

	record, err := scanSession(row)
	if err != nil {
		return nil, mapError(err, "session "+id)
	}
	return record, nil
}

// Update replaces the document and status of a session. A completed
// session is never overwritten; the guard is part of the UPDATE itself.
func (r *SessionRepository) Update(ctx context.Context, record *domain.SessionRecord) error {
	doc, err := json.Marshal(record.Session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET status = $2, session = $3, updated_at = $4, completed_at = $5
		WHERE id = $1 AND status <> $6
	`, record.ID, record.Status, doc, record.UpdatedAt, record.CompletedAt, domain.SessionCompleted)
	if err != nil {
		return mapError(err, "session "+record.ID)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, record.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if !exists {
		return mapError(pgx.ErrNoRows, "session "+record.ID)
	}
	return fmt.Errorf("session %s is completed: %w", record.ID, domain.ErrConflict)
}

// ListByPlan returns a plan's sessions oldest first.
func (r *SessionRepository) ListByPlan(ctx context.Context, planID string) ([]*domain.SessionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE plan_id = $1
		ORDER BY created_at, id
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var records []*domain.SessionRecord
	for rows.Next() {
		record, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning session: %w", scanErr)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanSession(row pgx.Row) (*domain.SessionRecord, error) {
	var (
		record domain.SessionRecord
		doc    []byte
	)

	err := row.Scan(&record.ID, &record.PlanID, &record.Status, &doc,
		&record.CreatedAt, &record.UpdatedAt, &record.CompletedAt)
	if err != nil {
		return nil, err
	}

	if err = json.Unmarshal(doc, &record.Session); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	record.CompletedAt = utcPtr(record.CompletedAt)

	return &record, nil
}
