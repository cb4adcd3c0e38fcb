package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/davidbz/liftplan/internal/observability"
	"github.com/davidbz/liftplan/internal/timer"
	"github.com/davidbz/liftplan/internal/workout"
)

const helpText = `commands:
  show                      print the session
  done <ex> <set>           mark a set completed
  undo <ex> <set>           mark a set not completed
  reps <ex> <set> <n>       record actual reps
  weight <ex> <set> <kg>    record actual weight ("-" clears it)
  rest [sec]                start the rest timer
  pause | resume | skip     control the rest timer
  add <sec>                 add (or remove) rest time
  save                      save to the server now
  finish                    complete the workout
  cancel                    discard the workout
  quit                      save and exit
`

var errUsage = errors.New("usage")

// Shell runs the interactive commands of one workout.
type Shell struct {
	engine      *workout.Engine
	rest        *timer.Engine
	term        *Terminal
	defaultRest int
}

// NewShell creates a shell over an engine and its rest timer.
func NewShell(engine *workout.Engine, rest *timer.Engine, term *Terminal, defaultRest int) *Shell {
	return &Shell{
		engine:      engine,
		rest:        rest,
		term:        term,
		defaultRest: defaultRest,
	}
}

// Run reads commands until the session is left, the user quits or the
// input ends. Unsaved changes are saved before returning.
func (s *Shell) Run(ctx context.Context) error {
	s.show()

	for {
		if _, left := s.term.Left(); left {
			return nil
		}

		s.term.Printf("> ")
		line, ok := s.term.ReadLine()
		if !ok {
			return s.Leave(ctx)
		}
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if fields[0] == "quit" || fields[0] == "exit" {
			return s.Leave(ctx)
		}

		if err := s.exec(ctx, fields[0], fields[1:]); err != nil {
			if errors.Is(err, errUsage) {
				s.term.Printf("%v\n", err)
				continue
			}
			s.term.Printf("error: %v\n", err)
		}
	}
}

//nolint:cyclop // one case per command
func (s *Shell) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		s.term.Printf("%s", helpText)
		return nil
	case "show":
		s.show()
		return nil
	case "done", "undo":
		ex, set, err := setArgs(cmd, args, 2)
		if err != nil {
			return err
		}
		return s.engine.UpdateSet(ex, set, workout.FieldCompleted, cmd == "done")
	case "reps":
		ex, set, err := setArgs(cmd, args, 3)
		if err != nil {
			return err
		}
		reps, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("%w: reps must be a whole number", errUsage)
		}
		return s.engine.UpdateSet(ex, set, workout.FieldActualReps, reps)
	case "weight":
		ex, set, err := setArgs(cmd, args, 3)
		if err != nil {
			return err
		}
		if args[2] == "-" {
			return s.engine.UpdateSet(ex, set, workout.FieldActualWeight, nil)
		}
		kg, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("%w: weight must be a number", errUsage)
		}
		return s.engine.UpdateSet(ex, set, workout.FieldActualWeight, kg)
	case "rest":
		seconds := s.defaultRest
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: rest [seconds]", errUsage)
			}
			seconds = n
		}
		s.rest.Start(seconds)
		s.showTimer()
		return nil
	case "pause":
		s.rest.Pause()
		s.showTimer()
		return nil
	case "resume":
		s.rest.Resume()
		s.showTimer()
		return nil
	case "skip":
		s.rest.Skip()
		return nil
	case "add":
		if len(args) != 1 {
			return fmt.Errorf("%w: add <seconds>", errUsage)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: add <seconds>", errUsage)
		}
		s.rest.AddTime(n)
		s.showTimer()
		return nil
	case "save":
		if err := s.engine.ForceSave(ctx); err != nil {
			return err
		}
		s.term.Printf("saved\n")
		return nil
	case "finish":
		// Failures are reported through the notifier; the shell stays open.
		_ = s.engine.Complete(ctx)
		return nil
	case "cancel":
		_, err := s.engine.Cancel()
		return err
	default:
		return fmt.Errorf("%w: unknown command %q, try help", errUsage, cmd)
	}
}

// Leave saves what the terminal guards as unsaved and stops the autosave.
// When the save fails the changes stay in the local cache.
func (s *Shell) Leave(ctx context.Context) error {
	defer s.engine.Close()

	if s.engine.Finished() || !s.term.Guarded() {
		return nil
	}
	if err := s.engine.ForceSave(ctx); err != nil {
		observability.FromContext(ctx).Warn("final save failed", observability.Error(err))
		return fmt.Errorf("changes kept in the local cache: %w", err)
	}
	return nil
}

func (s *Shell) show() {
	doc := s.engine.Snapshot()
	stats := s.engine.Stats()

	s.term.Printf("%s | %s | %s  (%d/%d sets, %d%%)\n",
		doc.PlanName, doc.DayName, doc.Date, stats.Completed, stats.Total, stats.Percent)
	for i, ex := range doc.Exercises {
		s.term.Printf("%d. %s\n", i+1, ex.Name)
		for j, set := range ex.Sets {
			mark := " "
			if set.Completed {
				mark = "x"
			}
			s.term.Printf("   [%s] %d: %d @ %s -> %s @ %s, rest %ds\n",
				mark, j+1,
				set.PlannedReps, formatWeight(set.PlannedWeight),
				formatReps(set.ActualReps), formatActualWeight(set.ActualWeight),
				set.RestSeconds)
		}
	}
	s.showTimer()
}

func (s *Shell) showTimer() {
	state := s.rest.State()
	if !state.IsActive {
		return
	}
	s.term.Printf("rest: %s %d:%02d / %d:%02d\n",
		state.Phase(), state.TimeLeft/60, state.TimeLeft%60, state.InitialTime/60, state.InitialTime%60)
}

// setArgs parses the 1-based exercise and set numbers of a command.
func setArgs(cmd string, args []string, want int) (int, int, error) {
	if len(args) != want {
		if want == 2 {
			return 0, 0, fmt.Errorf("%w: %s <exercise> <set>", errUsage, cmd)
		}
		return 0, 0, fmt.Errorf("%w: %s <exercise> <set> <value>", errUsage, cmd)
	}
	ex, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: exercise must be a number", errUsage)
	}
	set, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: set must be a number", errUsage)
	}
	return ex - 1, set - 1, nil
}

func formatReps(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func formatActualWeight(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatWeight(v)
}

func formatWeight(v *float64) string {
	if v == nil {
		return "bw"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + "kg"
}

// RestAnnouncer returns a timer change callback that prints when a rest
// period ends.
func RestAnnouncer(term *Terminal) func(timer.State) {
	var mu sync.Mutex
	previous := timer.PhaseIdle
	return func(state timer.State) {
		mu.Lock()
		defer mu.Unlock()

		phase := state.Phase()
		if phase == timer.PhaseFinished && previous != timer.PhaseFinished {
			term.Printf("\nrest over\n")
		}
		previous = phase
	}
}
