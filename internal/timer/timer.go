// Package timer implements the rest countdown shown between sets.
//
// The engine decrements by the whole seconds that actually elapsed since the
// last tick instead of a fixed step, so a late or skipped tick never drifts
// or double counts.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/davidbz/liftplan/internal/observability"
)

const (
	// TickInterval is how often Run samples the clock.
	TickInterval = 100 * time.Millisecond

	// AutoHideDelay is how long a finished timer stays visible.
	AutoHideDelay = 3 * time.Second
)

// Phase is the lifecycle position of the timer.
type Phase int

// Timer phases.
const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhasePaused
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseFinished:
		return "finished"
	default:
		return "idle"
	}
}

// State is a snapshot of the timer. Times are in seconds.
type State struct {
	IsRunning   bool `json:"is_running"`
	TimeLeft    int  `json:"time_left"`
	InitialTime int  `json:"initial_time"`
	IsActive    bool `json:"is_active"`
}

// Phase derives the lifecycle phase from the snapshot.
func (s State) Phase() Phase {
	switch {
	case !s.IsActive:
		return PhaseIdle
	case s.IsRunning:
		return PhaseRunning
	case s.TimeLeft > 0:
		return PhasePaused
	default:
		return PhaseFinished
	}
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Engine is a goroutine-safe countdown state machine.
type Engine struct {
	mu         sync.Mutex
	clock      Clock
	cues       []Cue
	onChange   func(State)
	state      State
	lastTick   time.Time
	finishedAt time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithCue registers a cue played when the countdown reaches zero.
func WithCue(cue Cue) Option {
	return func(e *Engine) {
		e.cues = append(e.cues, cue)
	}
}

// WithOnChange registers a callback receiving every new state.
func WithOnChange(fn func(State)) Option {
	return func(e *Engine) {
		e.onChange = fn
	}
}

// New creates a new idle timer engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock: systemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	return e.State().Phase()
}

// Start (re)starts the countdown from seconds, whatever the current phase.
// A non-positive duration finishes immediately.
func (e *Engine) Start(seconds int) {
	e.update(func(now time.Time) {
		if seconds <= 0 {
			e.state = State{IsRunning: false, TimeLeft: 0, InitialTime: 0, IsActive: true}
			e.finishedAt = now
			return
		}
		e.state = State{IsRunning: true, TimeLeft: seconds, InitialTime: seconds, IsActive: true}
		e.lastTick = now
	})
}

// Pause stops a running countdown.
func (e *Engine) Pause() {
	e.update(func(time.Time) {
		if e.state.Phase() == PhaseRunning {
			e.state.IsRunning = false
		}
	})
}

// Resume continues a paused countdown. The paused interval is not counted.
func (e *Engine) Resume() {
	e.update(func(now time.Time) {
		if e.state.Phase() == PhasePaused {
			e.state.IsRunning = true
			e.lastTick = now
		}
	})
}

// AddTime adjusts the remaining time and surfaces the timer. The remaining
// time never drops below zero.
func (e *Engine) AddTime(seconds int) {
	e.update(func(now time.Time) {
		e.state.TimeLeft = max(e.state.TimeLeft+seconds, 0)
		e.state.IsActive = true
		if e.state.TimeLeft == 0 {
			e.state.IsRunning = false
			e.finishedAt = now
		}
	})
}

// Skip hides the timer immediately.
func (e *Engine) Skip() {
	e.update(func(time.Time) {
		e.state = State{}
		e.finishedAt = time.Time{}
	})
}

// Tick advances the countdown to the current clock time. Cues run on the
// calling goroutine once the countdown crosses zero.
func (e *Engine) Tick(ctx context.Context) {
	var finished bool

	changed, snapshot := e.mutate(func(now time.Time) bool {
		switch e.state.Phase() {
		case PhaseRunning:
			elapsed := int(now.Sub(e.lastTick) / time.Second)
			if elapsed < 1 {
				return false
			}
			e.lastTick = e.lastTick.Add(time.Duration(elapsed) * time.Second)
			e.state.TimeLeft -= elapsed
			if e.state.TimeLeft <= 0 {
				e.state.TimeLeft = 0
				e.state.IsRunning = false
				e.finishedAt = now
				finished = true
			}
			return true
		case PhaseFinished:
			if now.Sub(e.finishedAt) < AutoHideDelay {
				return false
			}
			e.state = State{}
			return true
		default:
			return false
		}
	})

	if changed {
		e.notify(snapshot)
	}
	if finished {
		e.playCues(ctx)
	}
}

// Run ticks every TickInterval until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

func (e *Engine) update(fn func(now time.Time)) {
	changed, snapshot := e.mutate(func(now time.Time) bool {
		before := e.state
		fn(now)
		return before != e.state
	})
	if changed {
		e.notify(snapshot)
	}
}

func (e *Engine) mutate(fn func(now time.Time) bool) (bool, State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed := fn(e.clock.Now())
	return changed, e.state
}

func (e *Engine) notify(s State) {
	if e.onChange != nil {
		e.onChange(s)
	}
}

func (e *Engine) playCues(ctx context.Context) {
	for _, cue := range e.cues {
		if err := cue.Play(ctx); err != nil {
			observability.FromContext(ctx).Debug("timer cue failed", observability.Error(err))
		}
	}
}
