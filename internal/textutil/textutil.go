// Package textutil provides text normalization helpers shared by the
// triage tables, lexical scoring, and cache key derivation.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips combining marks after NFD decomposition, so
// "aplicação" and "aplicacao" compare equal.
var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Fold lower-cases s, trims surrounding whitespace, and removes diacritics.
// Keyword tables and cache keys are derived from folded text.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		// Transform failures only occur on malformed UTF-8; fall back to
		// the raw string rather than dropping the input.
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// WordCount counts whitespace-separated tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Truncate returns at most n characters of s, cutting on a rune boundary.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ContainsAny reports whether the folded form of s contains any of the
// folded substrings.
func ContainsAny(s string, substrs ...string) bool {
	folded := Fold(s)
	for _, sub := range substrs {
		if strings.Contains(folded, Fold(sub)) {
			return true
		}
	}
	return false
}
