// Package normalize holds the text, date and number normalization shared by
// extraction, matching and import persistence.
package normalize

import (
	"strings"
	"unicode"
)

// Plate returns the canonical form of a licence plate: upper-case with all
// whitespace and hyphens removed. Plate(Plate(x)) == Plate(x).
func Plate(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return unicode.ToUpper(r)
	}, strings.TrimSpace(raw))
}
