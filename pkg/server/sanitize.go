package server

import (
	"strings"
	"unicode"
)

// allowedPunctuation is the punctuation kept by Sanitize.
const allowedPunctuation = ".,!?-'\":;()"

// Sanitize removes every character that is not a letter, digit, whitespace
// or common punctuation, then trims surrounding whitespace. Control
// characters other than tab and newline are removed as well.
func Sanitize(prompt string) string {
	var b strings.Builder
	b.Grow(len(prompt))
	for _, r := range prompt {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case unicode.IsControl(r):
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			b.WriteRune(r)
		case strings.ContainsRune(allowedPunctuation, r):
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
