package matching

import (
	"regexp"
	"strings"
)

// Separators lists the phrases that join acts in a listing, in the order they are tried.
var Separators = []string{" and ", " & ", " + ", " w/ ", " with ", " ft. ", " feat. ", " featuring "}

var separatorPatterns = compileSeparators(Separators)

var (
	leadingArticle    = regexp.MustCompile(`(?i)^the\s+`)
	trailingQualifier = regexp.MustCompile(`(?i)\s*[(\[]?\s*\b(?:band|duo|trio|quartet|live|acoustic|unplugged)\b\s*[)\]]?\s*$`)
	punctuation       = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

func compileSeparators(seps []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(seps))
	for i, sep := range seps {
		patterns[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(sep))
	}
	return patterns
}

// Split breaks a compound listing such as "A and B" into its acts.
//
// Separators are tried in [Separators] order and only the first one that yields
// at least two non-empty parts is used; separator types are never combined.
// Without such a separator the result is the raw name alone.
func Split(raw string) []string {
	for _, re := range separatorPatterns {
		if !re.MatchString(raw) {
			continue
		}

		var parts []string
		for _, p := range re.Split(raw, -1) {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) >= 2 {
			return parts
		}
	}
	return []string{raw}
}

// CleanSingle tidies one fragment of a split listing before it is looked up on its own:
// leading "the", trailing qualifiers like "band" or "(live)", and punctuation are removed.
//
// A fragment that would clean to nothing is returned trimmed instead.
func CleanSingle(name string) string {
	s := strings.TrimSpace(name)
	if stripped := leadingArticle.ReplaceAllString(s, ""); stripped != "" {
		s = stripped
	}

	for {
		trimmed := strings.TrimSpace(trailingQualifier.ReplaceAllString(s, ""))
		if trimmed == s || trimmed == "" {
			break
		}
		s = trimmed
	}

	s = punctuation.ReplaceAllString(s, " ")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if s == "" {
		return strings.TrimSpace(name)
	}
	return s
}
