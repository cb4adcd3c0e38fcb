package workout

import (
	"context"
	"time"

	"github.com/davidbz/liftplan/internal/domain"
)

// SessionAPI is the server side of a session.
type SessionAPI interface {
	UpdateSession(ctx context.Context, id string, doc domain.SessionDocument) error
	CompleteSession(ctx context.Context, id string, doc *domain.SessionDocument) (*domain.SessionRecord, error)
}

// LocalCache is string key/value storage that survives a client restart.
type LocalCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Notification severities.
const (
	SeveritySuccess = "success"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Notifier shows transient messages to the user.
type Notifier interface {
	Publish(severity, message string)
}

// Host is the environment the session runs in.
type Host interface {
	// Navigate leaves the session view.
	Navigate(destination string)

	// Confirm asks the user a yes/no question.
	Confirm(prompt string) bool

	// SetUnloadGuard toggles the unsaved-changes warning.
	SetUnloadGuard(enabled bool)
}

// Stopper cancels a scheduled function.
type Stopper interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

// Clock abstracts wall-clock time.
type Clock interface {
	Now() time.Time
}

// Deps are the collaborators of an Engine. Scheduler and Clock default to
// the standard library.
type Deps struct {
	API       SessionAPI
	Cache     LocalCache
	Notifier  Notifier
	Host      Host
	Scheduler Scheduler
	Clock     Clock
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
