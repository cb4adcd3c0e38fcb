package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/liftplan/internal/completion"
	"github.com/davidbz/liftplan/internal/config"
	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/http"
	"github.com/davidbz/liftplan/internal/http/middleware"
	"github.com/davidbz/liftplan/internal/observability"
	"github.com/davidbz/liftplan/internal/service"
	"github.com/davidbz/liftplan/internal/storage/memory"
	"github.com/davidbz/liftplan/internal/storage/postgres"
)

// repositories exposes the selected store to the container.
type repositories struct {
	dig.Out

	Plans    domain.PlanRepository
	Sessions domain.SessionRepository
	Closer   func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container := buildContainer(ctx)

	err := container.Invoke(func(server *http.Server, cfg *config.ServerConfig, closeStore func()) {
		defer closeStore()

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			if err != nil {
				log.Fatalf("Server failed to start: %v", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("Server shutdown failed: %v", err)
			}
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer(ctx context.Context) *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}

	// Storage
	if err := container.Provide(func(cfg *config.DatabaseConfig, logger *zap.Logger) (repositories, error) {
		return openStore(ctx, cfg, logger)
	}); err != nil {
		log.Fatalf("Failed to provide storage: %v", err)
	}

	// Structured completion
	if err := container.Provide(func(cfg *completion.Config) (*completion.Client, error) {
		return completion.New(*cfg)
	}); err != nil {
		log.Fatalf("Failed to provide completion client: %v", err)
	}
	if err := container.Provide(
		service.NewCompletionPlanGenerator,
		dig.As(new(service.PlanGenerator)),
	); err != nil {
		log.Fatalf("Failed to provide plan generator: %v", err)
	}

	// Services
	if err := container.Provide(service.NewPlanService); err != nil {
		log.Fatalf("Failed to provide plan service: %v", err)
	}
	if err := container.Provide(service.NewSessionService); err != nil {
		log.Fatalf("Failed to provide session service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// openStore connects to PostgreSQL when DATABASE_URL is set and keeps
// everything in memory otherwise.
func openStore(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (repositories, error) {
	if cfg.URL == "" {
		logger.Warn("DATABASE_URL not set, plans and sessions are kept in memory")
		store := memory.New()
		return repositories{Plans: store.Plans(), Sessions: store.Sessions(), Closer: func() {}}, nil
	}

	if cfg.Migrate {
		if err := postgres.RunMigrations(cfg.URL); err != nil {
			return repositories{}, err
		}
		logger.Info("database migrations applied")
	}

	db, err := postgres.New(ctx, cfg.URL)
	if err != nil {
		return repositories{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	return repositories{Plans: db.Plans(), Sessions: db.Sessions(), Closer: db.Close}, nil
}
