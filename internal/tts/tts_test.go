package tts

import (
	"strings"
	"testing"
)

func TestStripEmojis(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "olá, tudo bem?", "olá, tudo bem?"},
		{"emoticon removed", "great job! 😀", "great job!"},
		{"pictograph removed", "🚀 launching now 🚀", "launching now"},
		{"zwj sequence removed", "hi 👨‍👩‍👧 family", "hi family"},
		{"only emojis yields empty", "😀🎉🚗", ""},
		{"accents preserved", "coração e atenção", "coração e atenção"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripEmojis(tc.in); got != tc.want {
				t.Errorf("StripEmojis(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSpeakerCommand(t *testing.T) {
	t.Run("darwin uses say with voice and rate", func(t *testing.T) {
		s := NewSpeaker("Catarina", 180, 1.0)
		s.goos = "darwin"

		name, args, err := s.command("bom dia")
		if err != nil {
			t.Fatal(err)
		}
		if name != "say" {
			t.Errorf("name = %q", name)
		}
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "-v Catarina") || !strings.Contains(joined, "-r 180") {
			t.Errorf("args = %q", joined)
		}
		if args[len(args)-1] != "bom dia" {
			t.Errorf("text not last arg: %q", joined)
		}
	})

	t.Run("linux uses espeak with amplitude from volume", func(t *testing.T) {
		s := NewSpeaker("", 150, 0.5)
		s.goos = "linux"

		name, args, err := s.command("hello")
		if err != nil {
			t.Fatal(err)
		}
		if name != "espeak" {
			t.Errorf("name = %q", name)
		}
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "-s 150") || !strings.Contains(joined, "-a 100") {
			t.Errorf("args = %q", joined)
		}
	})

	t.Run("per-call voice overrides the configured one", func(t *testing.T) {
		s := NewSpeaker("Catarina", 180, 1.0)
		s.goos = "darwin"

		_, args, err := s.commandAs("Joana", "olá")
		if err != nil {
			t.Fatal(err)
		}
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "-v Joana") {
			t.Errorf("args = %q", joined)
		}
	})

	t.Run("unsupported platform errors", func(t *testing.T) {
		s := NewSpeaker("", 180, 1.0)
		s.goos = "plan9"
		if _, _, err := s.command("hi"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestNewSpeakerDefaults(t *testing.T) {
	s := NewSpeaker("", 0, 2.0)
	if s.Rate != 180 {
		t.Errorf("rate = %d", s.Rate)
	}
	if s.Volume != 1.0 {
		t.Errorf("volume = %g", s.Volume)
	}
}
