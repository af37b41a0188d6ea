package persona

import (
	"fmt"
	"strings"
)

// Persona shapes the assistant's response style and the synthesizer voice.
type Persona struct {
	Name        string
	Instruction string
	Voice       string
	Emojis      bool
}

var registry = []Persona{
	{
		Name: "EMO",
		Instruction: "Speak in a playful, casual tone. " +
			"Keep replies short, friendly, sometimes with emojis or fun expressions.",
		Voice:  "Catarina",
		Emojis: true,
	},
	{
		Name: "EMUSINIO",
		Instruction: "Speak in a wise, formal, and calm tone. " +
			"Use full sentences, no emojis, and sound like a mentor.",
		Voice:  "Joana",
		Emojis: false,
	},
}

var fallback = Persona{
	Name:        "EMO",
	Instruction: "Respond in a helpful, concise manner.",
	Voice:       "Catarina",
}

// Get returns the persona by name, case-insensitive. Unknown names map to
// a neutral fallback keeping the default voice.
func Get(name string) Persona {
	for _, p := range registry {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return fallback
}

// Names lists the selectable personas.
func Names() []string {
	out := make([]string, len(registry))
	for i, p := range registry {
		out[i] = p.Name
	}
	return out
}

// Known reports whether name selects a real persona (not the fallback).
func Known(name string) bool {
	for _, p := range registry {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// SystemPrompt builds the full system instruction for a conversation turn.
// The reply-language clause is deliberately forceful: the assistant answers
// in the configured language no matter what the user speaks.
func (p Persona) SystemPrompt(replyLanguage string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s. %s\n\n", p.Name, p.Instruction)
	fmt.Fprintf(&b,
		"IMPORTANT: Always reply in %s, natural conversational style. "+
			"Ignore the language the user speaks in and ALWAYS respond in %s.\n",
		languageName(replyLanguage), languageName(replyLanguage))

	if p.Emojis {
		b.WriteString("Include emojis in your responses.\n")
	}

	b.WriteString("\nIf the user asks to quit/exit/end/stop (in any language), reply ONLY with the word QUIT.")

	return b.String()
}

func languageName(tag string) string {
	switch strings.ToLower(tag) {
	case "pt-pt", "pt":
		return "Portuguese (Portugal)"
	case "pt-br":
		return "Portuguese (Brazil)"
	case "en-us", "en":
		return "English"
	case "":
		return "Portuguese (Portugal)"
	default:
		return tag
	}
}

// quit commands the user can speak to end the session.
var quitCommands = map[string]struct{}{
	"quit": {},
	"exit": {},
	"stop": {},
	"end":  {},
}

// IsQuitCommand reports whether the transcript is a spoken session-end command.
func IsQuitCommand(text string) bool {
	_, ok := quitCommands[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// barge-in phrases that interrupt speech playback.
var interruptCommands = map[string]struct{}{
	"stop":     {},
	"quiet":    {},
	"shut up":  {},
	"be quiet": {},
	"enough":   {},
}

// IsInterruptCommand reports whether the transcript should cut off the
// assistant mid-sentence.
func IsInterruptCommand(text string) bool {
	_, ok := interruptCommands[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// DetectSwitch checks for a leading persona name in the transcript
// ("emusinio what is rain" switches persona and asks the rest). It returns
// the persona name, the remaining text and whether a switch happened.
func DetectSwitch(text string) (name, rest string, ok bool) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	for _, p := range registry {
		prefix := strings.ToLower(p.Name)
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		// require a word boundary so "emo" does not eat "emusinio"
		if len(trimmed) > len(prefix) && trimmed[len(prefix)] != ' ' {
			continue
		}
		rest = strings.TrimSpace(trimmed[len(prefix):])
		return p.Name, rest, true
	}

	return "", trimmed, false
}
