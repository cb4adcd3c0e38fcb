package timer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Cue is a best-effort signal played when a countdown finishes.
type Cue interface {
	Play(ctx context.Context) error
}

// CueFunc adapts a function to Cue.
type CueFunc func(ctx context.Context) error

// Play calls f.
func (f CueFunc) Play(ctx context.Context) error {
	return f(ctx)
}

// FallbackCue plays Fallback when Primary is missing or fails.
type FallbackCue struct {
	Primary  Cue
	Fallback Cue
}

// Play plays the primary cue, or the fallback on failure.
func (c FallbackCue) Play(ctx context.Context) error {
	if c.Primary != nil {
		err := c.Primary.Play(ctx)
		if err == nil {
			return nil
		}
		if c.Fallback == nil {
			return err
		}
	}

	if c.Fallback == nil {
		return errors.New("no cue configured")
	}

	return c.Fallback.Play(ctx)
}

// BellCue writes the terminal bell, the synthesized tone of a terminal.
type BellCue struct {
	Out io.Writer
}

// Play rings the bell.
func (c BellCue) Play(context.Context) error {
	if c.Out == nil {
		return errors.New("bell output not configured")
	}
	_, err := io.WriteString(c.Out, "\a")
	return err
}

// SoundCue plays an audio file with an external player, e.g. paplay or afplay.
type SoundCue struct {
	Player string
	Path   string
}

// Play runs the player; it fails when the player or the file is unavailable.
func (c SoundCue) Play(ctx context.Context) error {
	if c.Path == "" {
		return errors.New("sound file not configured")
	}
	if _, err := os.Stat(c.Path); err != nil {
		return fmt.Errorf("sound file unavailable: %w", err)
	}

	player, err := exec.LookPath(c.Player)
	if err != nil {
		return fmt.Errorf("sound player unavailable: %w", err)
	}

	//nolint:gosec // player and path come from the local client config
	if runErr := exec.CommandContext(ctx, player, c.Path).Run(); runErr != nil {
		return fmt.Errorf("failed to play sound: %w", runErr)
	}

	return nil
}
