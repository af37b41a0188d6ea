package tts

import (
	"strings"
	"unicode"
)

// Emoji and pictograph ranges that synthesizers would otherwise read out
// loud ("face with tears of joy").
var emojiTable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x24C2, Hi: 0x24C2, Stride: 1},
		{Lo: 0x2702, Hi: 0x27B0, Stride: 1},
		{Lo: 0x2B00, Hi: 0x2BFF, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F000, Hi: 0x1F2FF, Stride: 1}, // mahjong, dominoes, enclosed
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1}, // symbols & pictographs
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1}, // emoticons
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1}, // transport & map
		{Lo: 0x1F700, Hi: 0x1F77F, Stride: 1}, // alchemical
		{Lo: 0x1F780, Hi: 0x1F7FF, Stride: 1}, // geometric shapes ext
		{Lo: 0x1F800, Hi: 0x1F8FF, Stride: 1}, // arrows-c
		{Lo: 0x1F900, Hi: 0x1F9FF, Stride: 1}, // supplemental symbols
		{Lo: 0x1FA00, Hi: 0x1FA6F, Stride: 1}, // chess
		{Lo: 0x1FA70, Hi: 0x1FAFF, Stride: 1}, // symbols ext-a
	},
}

// StripEmojis removes emoji characters (and variation selectors / zero-width
// joiners left dangling by them) before the text reaches the synthesizer.
func StripEmojis(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		if unicode.Is(emojiTable, r) {
			continue
		}
		if r == 0xFE0F || r == 0x200D { // variation selector, ZWJ
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
