// Package identity resolves noisy OCR text against the fixed roster of
// known names, producing either an accepted identity with a similarity
// score or a ranked set of suggestions flagged for human review.
package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes to NFD, drops combining marks, and
// recomposes, so "José" and "Jose" share a key.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize produces the matching key for a raw name string: NFKC
// normalization, diacritic folding, lower-casing, punctuation stripped,
// whitespace runs collapsed to single spaces, trimmed.
//
// The same function keys both roster entries and OCR output; matching is
// only meaningful when both sides went through it.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
		// Punctuation and symbols are dropped entirely.
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
