// Package postgres implements the repositories on PostgreSQL. Plan
// structures and session documents are stored as JSONB.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers the postgres:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidbz/liftplan/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres error codes mapped onto domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// DB wraps a pgxpool.Pool and provides the repositories.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new DB with a connection pool.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Plans returns the plan repository.
func (db *DB) Plans() *PlanRepository {
	return &PlanRepository{pool: db.Pool}
}

// Sessions returns the session repository.
func (db *DB) Sessions() *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

// RunMigrations applies all pending embedded migrations.
func RunMigrations(dsn string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// mapError translates driver errors into domain errors.
func mapError(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s already exists: %w", what, domain.ErrConflict)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s references a missing record: %w", what, domain.ErrNotFound)
		}
	}

	return fmt.Errorf("%s: %w", what, err)
}
