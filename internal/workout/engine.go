// Package workout runs one in-progress workout session on the client.
//
// The session document lives in memory, is mirrored to a local cache on every
// mutation and is saved to the server after a quiet period. A cached copy left
// by an interrupted run is recovered when it still belongs to the session.
package workout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/observability"
	"github.com/davidbz/liftplan/internal/timer"
)

const (
	// DefaultAutosaveDelay is the quiet period before an autosave.
	DefaultAutosaveDelay = 5 * time.Second

	// CacheKeyPrefix prefixes the local cache key of every session.
	CacheKeyPrefix = "workout-session-"
)

// User-facing messages.
const (
	msgAutosaveFailed  = "Failed to save workout to the server. Your progress is safe in local storage."
	msgCompleted       = "Workout completed!"
	msgCompleteFailed  = "Failed to complete workout. Please try again."
	msgCancelConfirm   = "Discard this workout? All progress will be lost."
	msgRecoveredCached = "Recovered unsaved progress from local storage."
)

var (
	// ErrNoSession is returned when the engine was built without a session.
	ErrNoSession = errors.New("no active session")

	// ErrSessionFinished is returned after the session was completed or cancelled.
	ErrSessionFinished = errors.New("session already finished")

	// ErrCompletionInProgress is returned while Complete is running.
	ErrCompletionInProgress = errors.New("session completion in progress")
)

// SetField names a mutable field of a set.
type SetField string

// Mutable set fields.
const (
	FieldActualReps   SetField = "actual_reps"
	FieldActualWeight SetField = "actual_weight"
	FieldCompleted    SetField = "completed"
)

// Engine owns the document of one workout session. It is safe for
// concurrent use.
type Engine struct {
	ctx       context.Context
	api       SessionAPI
	cache     LocalCache
	notifier  Notifier
	host      Host
	scheduler Scheduler
	clock     Clock
	delay     time.Duration
	restTimer *timer.Engine

	id        string
	planID    string
	createdAt time.Time

	// saveMu serialises server writes: autosaves, force saves and completion.
	saveMu sync.Mutex

	mu         sync.Mutex
	doc        domain.SessionDocument
	loaded     bool
	dirty      bool
	revision   uint64
	pending    Stopper
	generation uint64
	completing bool
	finished   bool
	closed     bool
}

// Option customises an Engine.
type Option func(*Engine)

// WithAutosaveDelay overrides DefaultAutosaveDelay.
func WithAutosaveDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = d
	}
}

// WithRestTimer starts t with the set's rest period whenever a set is
// marked completed.
func WithRestTimer(t *timer.Engine) Option {
	return func(e *Engine) {
		e.restTimer = t
	}
}

// New creates the engine for record, which may be nil when the server has no
// session. Cached envelopes of other sessions are purged; the cached envelope
// of this session replaces the server copy only when it describes the same
// workout and was written after the session was created.
func New(ctx context.Context, record *domain.SessionRecord, deps Deps, opts ...Option) (*Engine, error) {
	if deps.API == nil || deps.Cache == nil || deps.Notifier == nil || deps.Host == nil {
		return nil, errors.New("session API, cache, notifier and host are required")
	}

	e := &Engine{
		ctx:       ctx,
		api:       deps.API,
		cache:     deps.Cache,
		notifier:  deps.Notifier,
		host:      deps.Host,
		scheduler: deps.Scheduler,
		clock:     deps.Clock,
		delay:     DefaultAutosaveDelay,
	}
	if e.scheduler == nil {
		e.scheduler = timeScheduler{}
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	for _, opt := range opts {
		opt(e)
	}

	if record != nil {
		e.ctx = observability.WithSessionID(ctx, record.ID)
		e.id = record.ID
		e.planID = record.PlanID
		e.createdAt = record.CreatedAt
		e.doc = record.Session.Clone()
		e.loaded = true
		e.finished = record.Status == domain.SessionCompleted
	}

	if err := e.purgeStale(); err != nil {
		return nil, err
	}

	if e.loaded && !e.finished && e.recover() {
		e.mu.Lock()
		e.dirty = true
		e.revision++
		e.armAutosaveLocked()
		e.mu.Unlock()

		e.host.SetUnloadGuard(true)
		e.notifier.Publish(SeverityInfo, msgRecoveredCached)
	}

	return e, nil
}

// CacheKey returns the local cache key of a session.
func CacheKey(sessionID string) string {
	return CacheKeyPrefix + sessionID
}

// SessionID returns the identifier of the session, empty without one.
func (e *Engine) SessionID() string {
	return e.id
}

// PlanID returns the plan the session belongs to.
func (e *Engine) PlanID() string {
	return e.planID
}

// Snapshot returns a copy of the current document.
func (e *Engine) Snapshot() domain.SessionDocument {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// Dirty reports whether the document has changes the server has not seen.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Finished reports whether the session was completed or cancelled.
func (e *Engine) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

// Stats computes completion statistics for the current document.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeStats(e.doc)
}

// UpdateSet changes one field of one set. Marking a set completed first fills
// missing actual values from the planned ones.
func (e *Engine) UpdateSet(exerciseIndex, setIndex int, field SetField, value any) error {
	e.mu.Lock()

	if err := e.writableLocked(); err != nil {
		e.mu.Unlock()
		return err
	}

	if exerciseIndex < 0 || exerciseIndex >= len(e.doc.Exercises) {
		e.mu.Unlock()
		return fmt.Errorf("exercise %d out of range: %w", exerciseIndex, domain.ErrInvalidInput)
	}
	sets := e.doc.Exercises[exerciseIndex].Sets
	if setIndex < 0 || setIndex >= len(sets) {
		e.mu.Unlock()
		return fmt.Errorf("set %d out of range: %w", setIndex, domain.ErrInvalidInput)
	}

	set := &sets[setIndex]
	wasCompleted := set.Completed

	if err := applyField(set, field, value); err != nil {
		e.mu.Unlock()
		return err
	}

	rest := set.RestSeconds
	startRest := !wasCompleted && set.Completed && rest > 0
	guard := e.markDirtyLocked()
	e.mirrorLocked()
	e.mu.Unlock()

	if guard {
		e.host.SetUnloadGuard(true)
	}
	if startRest && e.restTimer != nil {
		e.restTimer.Start(rest)
	}

	return nil
}

// ForceSave cancels the pending autosave and saves immediately.
func (e *Engine) ForceSave(ctx context.Context) error {
	e.mu.Lock()
	if err := e.writableLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.cancelAutosaveLocked()
	e.mu.Unlock()

	return e.save(ctx)
}

// Complete finalises the session on the server. On success the local copy
// is purged and the host leaves the session; on failure nothing is lost and
// Complete may be retried.
func (e *Engine) Complete(ctx context.Context) error {
	e.mu.Lock()
	if err := e.writableLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.completing = true
	e.cancelAutosaveLocked()
	wasDirty := e.dirty
	e.dirty = false
	e.mu.Unlock()

	// Waits for an autosave that is already in flight.
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	doc := e.Snapshot()
	if _, err := e.api.CompleteSession(ctx, e.id, &doc); err != nil {
		e.mu.Lock()
		e.completing = false
		if wasDirty {
			e.dirty = true
			e.armAutosaveLocked()
		}
		e.mu.Unlock()

		observability.FromContext(e.ctx).Error("failed to complete session", observability.Error(err))
		e.notifier.Publish(SeverityError, msgCompleteFailed)
		return fmt.Errorf("failed to complete session: %w", err)
	}

	e.mu.Lock()
	e.completing = false
	e.finished = true
	e.mu.Unlock()

	e.purge()
	e.host.SetUnloadGuard(false)
	e.notifier.Publish(SeveritySuccess, msgCompleted)
	e.host.Navigate(e.exitDestination())

	return nil
}

// Cancel discards the session after the user confirms. The server is not
// contacted. It reports whether the session was discarded.
func (e *Engine) Cancel() (bool, error) {
	e.mu.Lock()
	err := e.writableLocked()
	e.mu.Unlock()
	if err != nil {
		return false, err
	}

	if !e.host.Confirm(msgCancelConfirm) {
		return false, nil
	}

	e.mu.Lock()
	// Completion may have started while the prompt was open.
	if err = e.writableLocked(); err != nil {
		e.mu.Unlock()
		return false, err
	}
	e.cancelAutosaveLocked()
	e.dirty = false
	e.finished = true
	e.mu.Unlock()

	e.purge()
	e.host.SetUnloadGuard(false)
	e.host.Navigate(e.exitDestination())

	return true, nil
}

// Close stops the pending autosave without saving.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.cancelAutosaveLocked()
}

func (e *Engine) writableLocked() error {
	switch {
	case !e.loaded:
		return ErrNoSession
	case e.finished:
		return ErrSessionFinished
	case e.completing:
		return ErrCompletionInProgress
	default:
		return nil
	}
}

// markDirtyLocked records a mutation and re-arms the autosave. It reports
// whether the document just became dirty.
func (e *Engine) markDirtyLocked() bool {
	became := !e.dirty
	e.dirty = true
	e.revision++
	e.armAutosaveLocked()
	return became
}

func (e *Engine) armAutosaveLocked() {
	e.cancelAutosaveLocked()
	if e.completing || e.closed {
		return
	}

	generation := e.generation
	e.pending = e.scheduler.AfterFunc(e.delay, func() {
		e.autosave(generation)
	})
}

func (e *Engine) cancelAutosaveLocked() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	e.generation++
}

func (e *Engine) autosave(generation uint64) {
	e.mu.Lock()
	if generation != e.generation || !e.dirty || e.completing || e.finished || e.closed {
		e.mu.Unlock()
		return
	}
	e.pending = nil
	e.mu.Unlock()

	if err := e.save(e.ctx); err != nil {
		observability.FromContext(e.ctx).Warn("autosave failed", observability.Error(err))
		e.notifier.Publish(SeverityError, msgAutosaveFailed)
	}
}

// save sends the current document. dirty is cleared only when no mutation
// happened while the request was in flight.
func (e *Engine) save(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	if e.completing || e.finished {
		e.mu.Unlock()
		return nil
	}
	doc := e.doc.Clone()
	revision := e.revision
	e.mu.Unlock()

	if err := e.api.UpdateSession(ctx, e.id, doc); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	e.mu.Lock()
	cleared := e.dirty && e.revision == revision
	if cleared {
		e.dirty = false
	}
	e.mu.Unlock()

	if cleared {
		e.host.SetUnloadGuard(false)
	}
	observability.FromContext(e.ctx).Debug("session saved", observability.Bool("clean", cleared))

	return nil
}

func (e *Engine) exitDestination() string {
	return "/plans/" + e.planID
}

// mirrorLocked writes the document to the local cache.
func (e *Engine) mirrorLocked() {
	envelope, err := json.Marshal(domain.SessionEnvelope{
		Session:   e.doc,
		Timestamp: e.clock.Now().UnixMilli(),
	})
	if err != nil {
		observability.FromContext(e.ctx).Error("failed to encode session envelope", observability.Error(err))
		return
	}

	if err := e.cache.Set(e.ctx, CacheKey(e.id), string(envelope)); err != nil {
		observability.FromContext(e.ctx).Warn("failed to mirror session to local cache", observability.Error(err))
	}
}

func (e *Engine) purge() {
	if err := e.cache.Delete(e.ctx, CacheKey(e.id)); err != nil {
		observability.FromContext(e.ctx).Warn("failed to purge local session cache", observability.Error(err))
	}
}

// purgeStale removes cached envelopes of every other session.
func (e *Engine) purgeStale() error {
	keys, err := e.cache.Keys(e.ctx, CacheKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list cached sessions: %w", err)
	}

	current := ""
	if e.loaded {
		current = CacheKey(e.id)
	}

	for _, key := range keys {
		if key == current {
			continue
		}
		if delErr := e.cache.Delete(e.ctx, key); delErr != nil {
			return fmt.Errorf("failed to purge cached session %s: %w", key, delErr)
		}
	}

	return nil
}

// recover adopts the cached envelope when it matches the session. Anything
// else in the cache slot is discarded.
func (e *Engine) recover() bool {
	logger := observability.FromContext(e.ctx)
	key := CacheKey(e.id)

	raw, ok, err := e.cache.Get(e.ctx, key)
	if err != nil {
		logger.Warn("failed to read local session cache", observability.Error(err))
		return false
	}
	if !ok {
		return false
	}

	var envelope domain.SessionEnvelope
	if decodeErr := json.Unmarshal([]byte(raw), &envelope); decodeErr != nil {
		logger.Debug("discarding malformed session envelope", observability.Error(decodeErr))
		e.purge()
		return false
	}

	server := e.doc
	cached := envelope.Session
	matches := cached.PlanName == server.PlanName &&
		cached.DayName == server.DayName &&
		cached.Date == server.Date &&
		envelope.Timestamp > e.createdAt.UnixMilli()
	if !matches {
		logger.Debug("discarding session envelope that does not match the server copy")
		e.purge()
		return false
	}

	e.mu.Lock()
	e.doc = cached.Clone()
	e.mu.Unlock()

	logger.Info("recovered session from local cache",
		observability.Int64("cached_at", envelope.Timestamp))

	return true
}

func applyField(set *domain.SetRecord, field SetField, value any) error {
	switch field {
	case FieldActualReps:
		reps, err := intValue(value)
		if err != nil {
			return err
		}
		if reps == nil && set.Completed {
			return fmt.Errorf("a completed set keeps its reps: %w", domain.ErrInvalidInput)
		}
		set.ActualReps = reps
	case FieldActualWeight:
		weight, err := floatValue(value)
		if err != nil {
			return err
		}
		set.ActualWeight = weight
	case FieldCompleted:
		completed, ok := value.(bool)
		if !ok {
			return fmt.Errorf("completed must be a bool, got %T: %w", value, domain.ErrInvalidInput)
		}
		if completed {
			backfill(set)
		}
		set.Completed = completed
	default:
		return fmt.Errorf("unknown set field %q: %w", field, domain.ErrInvalidInput)
	}
	return nil
}

// backfill copies planned values into missing actual values.
func backfill(set *domain.SetRecord) {
	if set.ActualReps == nil {
		reps := set.PlannedReps
		set.ActualReps = &reps
	}
	if set.ActualWeight == nil && set.PlannedWeight != nil {
		weight := *set.PlannedWeight
		set.ActualWeight = &weight
	}
}

func intValue(value any) (*int, error) {
	var n int
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *int:
		if v == nil {
			return nil, nil
		}
		n = *v
	case int:
		n = v
	default:
		return nil, fmt.Errorf("reps must be an int, got %T: %w", value, domain.ErrInvalidInput)
	}

	if n < 0 {
		return nil, fmt.Errorf("reps cannot be negative: %w", domain.ErrInvalidInput)
	}
	return &n, nil
}

func floatValue(value any) (*float64, error) {
	var f float64
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *float64:
		if v == nil {
			return nil, nil
		}
		f = *v
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return nil, fmt.Errorf("weight must be a number, got %T: %w", value, domain.ErrInvalidInput)
	}

	if f < 0 {
		return nil, fmt.Errorf("weight cannot be negative: %w", domain.ErrInvalidInput)
	}
	return &f, nil
}
