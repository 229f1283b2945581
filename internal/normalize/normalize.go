// Package normalize maps guess and secret text to comparison keys.
//
// A key is the lowercase text with every combining mark stripped after
// canonical decomposition, so "Ș", "ş" and "s" share the key "s" and
// "Încercare" matches "incercare". Characters that are not letters pass
// through unchanged. Display text is only trimmed and composed (NFC), so
// a letter and its accent always count as one character.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key returns the comparison key for text. It never fails.
func Key(text string) string {
	lower := strings.ToLower(text)
	// Transformers hold state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return out
}

// Compose trims text and returns its canonical composition (NFC).
func Compose(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// KeyRune is Key for a single character.
func KeyRune(r rune) string {
	return Key(string(r))
}

// IsLetter reports whether r takes part in guessing. Everything else
// (spaces, hyphens, apostrophes, digits) is shown from the start.
func IsLetter(r rune) bool {
	return unicode.IsLetter(r)
}

// CountLetters returns the number of guessable characters in text.
func CountLetters(text string) int {
	n := 0
	for _, r := range text {
		if IsLetter(r) {
			n++
		}
	}
	return n
}
