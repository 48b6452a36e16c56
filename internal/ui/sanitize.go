package ui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// Limits for text received from other participants.
const (
	MaxNameRunes = 64
	MaxTextRunes = 4096
)

// CleanText makes peer-supplied text safe to print: escape sequences are
// stripped, newlines and tabs become spaces, other control and bidi
// override characters are dropped, and the result is cut to limit runes
// (no limit when limit <= 0).
func CleanText(s string, limit int) string {
	s = ansi.Strip(s)

	var b strings.Builder
	n := 0
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			r = ' '
		case unicode.IsControl(r), unicode.Is(unicode.Bidi_Control, r), r == unicode.ReplacementChar:
			continue
		}
		if limit > 0 && n == limit {
			b.WriteRune('…')
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}

// CleanName is CleanText with the display name limit.
func CleanName(s string) string {
	return CleanText(s, MaxNameRunes)
}
