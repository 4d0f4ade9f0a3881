// package matching decides when a free-text artist listing and a catalog artist are the same act
package matching

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonWord    = regexp.MustCompile(`[^\w\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize returns the comparison key for a name: diacritics folded, lowercased,
// everything outside word characters and whitespace removed, whitespace collapsed and trimmed.
//
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(raw string) string {
	s := strings.ToLower(fold(raw))
	s = nonWord.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// fold strips combining marks so "Beyoncé" and "Beyonce" share a key.
// A transformer holds state, so one is built per call.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// stripArticle removes a leading "the " from a normalized name.
func stripArticle(normalized string) string {
	return strings.TrimPrefix(normalized, "the ")
}
