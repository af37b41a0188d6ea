package persona

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	t.Run("known personas", func(t *testing.T) {
		if p := Get("EMO"); p.Voice != "Catarina" || !p.Emojis {
			t.Errorf("EMO = %+v", p)
		}
		if p := Get("emusinio"); p.Name != "EMUSINIO" || p.Voice != "Joana" || p.Emojis {
			t.Errorf("EMUSINIO = %+v", p)
		}
	})

	t.Run("unknown name falls back", func(t *testing.T) {
		p := Get("HAL9000")
		if !strings.Contains(p.Instruction, "helpful, concise") {
			t.Errorf("fallback instruction = %q", p.Instruction)
		}
	})
}

func TestSystemPrompt(t *testing.T) {
	t.Run("emo prompt asks for emojis and quit protocol", func(t *testing.T) {
		prompt := Get("EMO").SystemPrompt("pt-PT")

		if !strings.Contains(prompt, "You are EMO.") {
			t.Errorf("missing persona line: %q", prompt)
		}
		if !strings.Contains(prompt, "Include emojis") {
			t.Error("EMO prompt should request emojis")
		}
		if !strings.Contains(prompt, "Portuguese (Portugal)") {
			t.Error("prompt should pin the reply language")
		}
		if !strings.Contains(prompt, "reply ONLY with the word QUIT") {
			t.Error("prompt should carry the QUIT protocol")
		}
	})

	t.Run("emusinio prompt has no emoji clause", func(t *testing.T) {
		prompt := Get("EMUSINIO").SystemPrompt("en-US")
		if strings.Contains(prompt, "Include emojis") {
			t.Error("EMUSINIO prompt must not request emojis")
		}
		if !strings.Contains(prompt, "English") {
			t.Errorf("language not resolved: %q", prompt)
		}
	})
}

func TestIsQuitCommand(t *testing.T) {
	for _, s := range []string{"quit", "Exit", " STOP ", "end"} {
		if !IsQuitCommand(s) {
			t.Errorf("%q should be a quit command", s)
		}
	}
	for _, s := range []string{"stop the music", "", "quitting"} {
		if IsQuitCommand(s) {
			t.Errorf("%q should not be a quit command", s)
		}
	}
}

func TestIsInterruptCommand(t *testing.T) {
	for _, s := range []string{"stop", "quiet", "shut up", "Be Quiet", "enough"} {
		if !IsInterruptCommand(s) {
			t.Errorf("%q should interrupt", s)
		}
	}
	if IsInterruptCommand("tell me more") {
		t.Error("ordinary speech must not interrupt")
	}
}

func TestDetectSwitch(t *testing.T) {
	t.Run("leading name switches and strips", func(t *testing.T) {
		name, rest, ok := DetectSwitch("emo tell me a joke")
		if !ok || name != "EMO" || rest != "tell me a joke" {
			t.Errorf("got %q %q %v", name, rest, ok)
		}
	})

	t.Run("longer name is not shadowed by shorter prefix", func(t *testing.T) {
		name, rest, ok := DetectSwitch("emusinio what is rain")
		if !ok || name != "EMUSINIO" || rest != "what is rain" {
			t.Errorf("got %q %q %v", name, rest, ok)
		}
	})

	t.Run("bare name switches with empty rest", func(t *testing.T) {
		name, rest, ok := DetectSwitch("emusinio")
		if !ok || name != "EMUSINIO" || rest != "" {
			t.Errorf("got %q %q %v", name, rest, ok)
		}
	})

	t.Run("no switch passes text through", func(t *testing.T) {
		_, rest, ok := DetectSwitch("  what time is it ")
		if ok || rest != "what time is it" {
			t.Errorf("got %q %v", rest, ok)
		}
	})

	t.Run("name inside a word does not switch", func(t *testing.T) {
		if _, _, ok := DetectSwitch("emotional support"); ok {
			t.Error("emotional must not match emo")
		}
	})
}
