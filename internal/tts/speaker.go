package tts

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
)

// Speaker synthesizes speech through the platform's native engine:
// `say` on macOS, `espeak` on Linux. Playback runs as a child process, so
// cancelling the context cuts the assistant off mid-sentence.
type Speaker struct {
	Voice  string // engine voice name, e.g. "Catarina"
	Rate   int    // words per minute
	Volume float64

	goos string // overridable for tests
}

func NewSpeaker(voice string, rate int, volume float64) *Speaker {
	if rate <= 0 {
		rate = 180
	}
	if volume <= 0 || volume > 1 {
		volume = 1.0
	}
	return &Speaker{Voice: voice, Rate: rate, Volume: volume, goos: runtime.GOOS}
}

// Available reports whether a synthesizer binary can be found.
func (s *Speaker) Available() bool {
	name, _, err := s.command("check")
	if err != nil {
		return false
	}
	_, err = exec.LookPath(name)
	return err == nil
}

// Speak voices the text and blocks until playback finishes or ctx is
// cancelled. Emojis are stripped first. Empty text is a no-op.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	return s.SpeakAs(ctx, s.Voice, text)
}

// SpeakAs is Speak with a per-call voice, used when personas carry their
// own voices. An empty voice falls back to the configured one.
func (s *Speaker) SpeakAs(ctx context.Context, voice, text string) error {
	clean := StripEmojis(text)
	if clean == "" {
		return nil
	}

	if voice == "" {
		voice = s.Voice
	}
	name, args, err := s.commandAs(voice, clean)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err() // interrupted, not a synthesizer failure
		}
		return fmt.Errorf("%s: %w", name, err)
	}

	return nil
}

func (s *Speaker) command(text string) (string, []string, error) {
	return s.commandAs(s.Voice, text)
}

func (s *Speaker) commandAs(voice, text string) (string, []string, error) {
	switch s.goos {
	case "darwin":
		args := []string{}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		args = append(args, "-r", strconv.Itoa(s.Rate), text)
		return "say", args, nil
	case "linux":
		amplitude := int(s.Volume * 200)
		args := []string{"-s", strconv.Itoa(s.Rate), "-a", strconv.Itoa(amplitude)}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		args = append(args, text)
		return "espeak", args, nil
	default:
		return "", nil, errors.New("no speech synthesizer for " + s.goos)
	}
}
