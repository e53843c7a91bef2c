package resolver

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize reduces a district name to lower-case ASCII letters, folding
// diacritics first, so "Dhaka ", "DHAKA" and "Dhākā" compare equal.
// Digits and punctuation are dropped as well, which can merge names that
// differ only by them.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SameDistrict compares two names after normalization. Empty names never match.
func SameDistrict(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
