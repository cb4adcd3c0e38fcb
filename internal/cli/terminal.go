// Package cli implements the liftctl line-based workout shell.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/davidbz/liftplan/internal/workout"
)

// Terminal is the host of a workout running in a terminal. It reads lines
// from in and writes to out; it is both the engine's Host and Notifier.
type Terminal struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	out     io.Writer

	guard       bool
	destination string
	left        bool
}

// NewTerminal creates a terminal host over in and out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// ReadLine returns the next input line; ok is false at end of input.
func (t *Terminal) ReadLine() (string, bool) {
	if !t.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(t.scanner.Text()), true
}

// Printf writes formatted output.
func (t *Terminal) Printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

// Publish prints a notification.
func (t *Terminal) Publish(severity, message string) {
	t.Printf("[%s] %s\n", severity, message)
}

// Navigate records that the session view was left.
func (t *Terminal) Navigate(destination string) {
	t.mu.Lock()
	t.destination = destination
	t.left = true
	t.mu.Unlock()

	t.Printf("-> %s\n", destination)
}

// Confirm asks a yes/no question on the terminal. End of input means no.
func (t *Terminal) Confirm(prompt string) bool {
	t.Printf("%s [y/N] ", prompt)
	answer, ok := t.ReadLine()
	if !ok {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// SetUnloadGuard records whether quitting would lose unsaved changes.
func (t *Terminal) SetUnloadGuard(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.guard = enabled
}

// Guarded reports whether there are unsaved changes.
func (t *Terminal) Guarded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.guard
}

// Left reports whether the session view was left, and where to.
func (t *Terminal) Left() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destination, t.left
}

// Broadcast publishes every notification to each of its notifiers.
type Broadcast []workout.Notifier

// Publish forwards the notification.
func (b Broadcast) Publish(severity, message string) {
	for _, n := range b {
		n.Publish(severity, message)
	}
}
