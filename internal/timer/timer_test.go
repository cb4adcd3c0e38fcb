package timer_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/liftplan/internal/timer"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingCue struct {
	mu    sync.Mutex
	plays int
	err   error
}

func (c *countingCue) Play(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plays++
	return c.err
}

func (c *countingCue) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plays
}

func TestEngine_Transitions(t *testing.T) {
	ctx := context.Background()

	t.Run("should start idle", func(t *testing.T) {
		engine := timer.New()

		require.Equal(t, timer.PhaseIdle, engine.Phase())
		require.Equal(t, timer.State{}, engine.State())
	})

	t.Run("should run, pause and resume", func(t *testing.T) {
		clock := newFakeClock()
		engine := timer.New(timer.WithClock(clock))

		engine.Start(90)
		require.Equal(t, timer.State{IsRunning: true, TimeLeft: 90, InitialTime: 90, IsActive: true}, engine.State())

		engine.Pause()
		require.Equal(t, timer.PhasePaused, engine.Phase())

		engine.Resume()
		require.Equal(t, timer.PhaseRunning, engine.Phase())
	})

	t.Run("should restart from any phase", func(t *testing.T) {
		clock := newFakeClock()
		engine := timer.New(timer.WithClock(clock))
		engine.Start(10)
		clock.Advance(4 * time.Second)
		engine.Tick(ctx)

		engine.Start(60)

		require.Equal(t, 60, engine.State().TimeLeft)
		require.Equal(t, 60, engine.State().InitialTime)
		clock.Advance(time.Second)
		engine.Tick(ctx)
		require.Equal(t, 59, engine.State().TimeLeft)
	})

	t.Run("should finish immediately for a zero duration", func(t *testing.T) {
		engine := timer.New(timer.WithClock(newFakeClock()))

		engine.Start(0)

		require.Equal(t, timer.PhaseFinished, engine.Phase())
	})

	t.Run("should skip from any phase", func(t *testing.T) {
		engine := timer.New(timer.WithClock(newFakeClock()))
		engine.Start(30)

		engine.Skip()

		require.Equal(t, timer.State{}, engine.State())
		require.Equal(t, timer.PhaseIdle, engine.Phase())
	})

	t.Run("should ignore pause and resume out of phase", func(t *testing.T) {
		engine := timer.New(timer.WithClock(newFakeClock()))

		engine.Resume()
		engine.Pause()

		require.Equal(t, timer.PhaseIdle, engine.Phase())
	})
}

func TestEngine_Tick(t *testing.T) {
	ctx := context.Background()

	t.Run("should decrement by whole elapsed seconds", func(t *testing.T) {
		clock := newFakeClock()
		engine := timer.New(timer.WithClock(clock))
		engine.Start(60)

		clock.Advance(900 * time.Millisecond)
		engine.Tick(ctx)
		require.Equal(t, 60, engine.State().TimeLeft)

		clock.Advance(1600 * time.Millisecond)
		engine.Tick(ctx)
		require.Equal(t, 58, engine.State().TimeLeft)

		// 0.5s carried over from the previous tick.
		clock.Advance(500 * time.Millisecond)
		engine.Tick(ctx)
		require.Equal(t, 57, engine.State().TimeLeft)
	})

	t.Run("should apply a long gap at once", func(t *testing.T) {
		clock := newFakeClock()
		engine := timer.New(timer.WithClock(clock))
		engine.Start(120)

		clock.Advance(45 * time.Second)
		engine.Tick(ctx)

		require.Equal(t, 75, engine.State().TimeLeft)
	})

	t.Run("should never increase or go negative while running", func(t *testing.T) {
		clock := newFakeClock()
		engine := timer.New(timer.WithClock(clock))
		engine.Start(5)

		previous := engine.State().TimeLeft
		for range 100 {
			clock.Advance(170 * time.Millisecond)
			engine.Tick(ctx)
			current := engine.State().TimeLeft
			require.LessOrEqual(t, current, previous)
			require.GreaterOrEqual(t, current, 0)
			previous = current
		}
	})

	t.Run("should not count a pause", func(t *testing.T) {
		clock := newFakeClock()
		engine := timer.New(timer.WithClock(clock))
		engine.Start(30)
		clock.Advance(2 * time.Second)
		engine.Tick(ctx)
		before := engine.State().TimeLeft

		engine.Pause()
		clock.Advance(10 * time.Second)
		engine.Tick(ctx)
		engine.Resume()
		engine.Tick(ctx)

		require.Equal(t, before, engine.State().TimeLeft)
	})

	t.Run("should finish, play cues once and auto-hide", func(t *testing.T) {
		clock := newFakeClock()
		cue := &countingCue{}
		engine := timer.New(timer.WithClock(clock), timer.WithCue(cue))
		engine.Start(3)

		clock.Advance(10 * time.Second)
		engine.Tick(ctx)
		require.Equal(t, timer.State{IsRunning: false, TimeLeft: 0, InitialTime: 3, IsActive: true}, engine.State())
		require.Equal(t, 1, cue.count())

		clock.Advance(2 * time.Second)
		engine.Tick(ctx)
		require.Equal(t, timer.PhaseFinished, engine.Phase())

		clock.Advance(time.Second)
		engine.Tick(ctx)
		require.Equal(t, timer.PhaseIdle, engine.Phase())
		require.Equal(t, 1, cue.count())
	})

	t.Run("should keep going when a cue fails", func(t *testing.T) {
		clock := newFakeClock()
		failing := &countingCue{err: errors.New("no audio device")}
		next := &countingCue{}
		engine := timer.New(timer.WithClock(clock), timer.WithCue(failing), timer.WithCue(next))
		engine.Start(1)

		clock.Advance(time.Second)
		engine.Tick(ctx)

		require.Equal(t, 1, failing.count())
		require.Equal(t, 1, next.count())
	})
}

func TestEngine_AddTime(t *testing.T) {
	ctx := context.Background()

	t.Run("should extend a running countdown", func(t *testing.T) {
		engine := timer.New(timer.WithClock(newFakeClock()))
		engine.Start(30)

		engine.AddTime(15)

		require.Equal(t, 45, engine.State().TimeLeft)
		require.Equal(t, timer.PhaseRunning, engine.Phase())
	})

	t.Run("should resurface a finished timer", func(t *testing.T) {
		clock := newFakeClock()
		engine := timer.New(timer.WithClock(clock))
		engine.Start(1)
		clock.Advance(time.Second)
		engine.Tick(ctx)
		clock.Advance(timer.AutoHideDelay)
		engine.Tick(ctx)
		require.Equal(t, timer.PhaseIdle, engine.Phase())

		engine.AddTime(30)

		state := engine.State()
		require.True(t, state.IsActive)
		require.Equal(t, 30, state.TimeLeft)
	})

	t.Run("should clamp at zero", func(t *testing.T) {
		engine := timer.New(timer.WithClock(newFakeClock()))
		engine.Start(10)

		engine.AddTime(-30)

		require.Equal(t, 0, engine.State().TimeLeft)
		require.Equal(t, timer.PhaseFinished, engine.Phase())
	})
}

func TestEngine_OnChange(t *testing.T) {
	clock := newFakeClock()
	var states []timer.State
	engine := timer.New(timer.WithClock(clock), timer.WithOnChange(func(s timer.State) {
		states = append(states, s)
	}))

	engine.Start(10)
	engine.Tick(context.Background())
	engine.Pause()
	engine.Pause()

	require.Len(t, states, 2)
	require.True(t, states[0].IsRunning)
	require.False(t, states[1].IsRunning)
}

func TestEngine_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := timer.New()
	engine.Start(60)

	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return engine.State().TimeLeft < 60
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestCues(t *testing.T) {
	ctx := context.Background()

	t.Run("should ring the bell", func(t *testing.T) {
		var out bytes.Buffer

		require.NoError(t, timer.BellCue{Out: &out}.Play(ctx))
		require.Equal(t, "\a", out.String())
	})

	t.Run("should fall back when the primary fails", func(t *testing.T) {
		var out bytes.Buffer
		cue := timer.FallbackCue{
			Primary:  timer.SoundCue{Player: "paplay", Path: "/nonexistent/rest-done.wav"},
			Fallback: timer.BellCue{Out: &out},
		}

		require.NoError(t, cue.Play(ctx))
		require.Equal(t, "\a", out.String())
	})

	t.Run("should not play the fallback when the primary succeeds", func(t *testing.T) {
		fallback := &countingCue{}
		cue := timer.FallbackCue{
			Primary:  timer.CueFunc(func(context.Context) error { return nil }),
			Fallback: fallback,
		}

		require.NoError(t, cue.Play(ctx))
		require.Zero(t, fallback.count())
	})

	t.Run("should report the primary error without a fallback", func(t *testing.T) {
		boom := errors.New("boom")
		cue := timer.FallbackCue{Primary: timer.CueFunc(func(context.Context) error { return boom })}

		require.ErrorIs(t, cue.Play(ctx), boom)
	})
}
