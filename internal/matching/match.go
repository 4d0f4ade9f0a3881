package matching

import "strings"

const (
	// maxContainmentDiff is the largest length difference tolerated by a containment match.
	maxContainmentDiff = 4
	// minContainmentLen keeps short fragments like "go" from matching inside longer names.
	minContainmentLen = 3
)

// Candidate is one catalog search hit, in the order the catalog ranked it.
type Candidate struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
}

// Tier identifies which rule accepted a match. Lower tiers are stricter.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierArticle
	TierContainment
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierArticle:
		return "article"
	case TierContainment:
		return "containment"
	default:
		return "none"
	}
}

// Match is an accepted candidate with the tier that accepted it.
type Match struct {
	Candidate
	Tier Tier
}

// MatchTier returns the strictest tier at which two names are equal, or [TierNone].
func MatchTier(a, b string) Tier {
	return tierOf(Normalize(a), Normalize(b))
}

// NamesMatch reports whether two names refer to the same act under any tier.
func NamesMatch(a, b string) bool {
	return MatchTier(a, b) != TierNone
}

// BestMatch picks the candidate for query without re-ranking: every candidate is tried
// at the exact tier before any is tried at the article tier, and so on.
// Candidates with the same tier keep the catalog order.
func BestMatch(query string, candidates []Candidate) (Match, bool) {
	q := Normalize(query)
	if q == "" {
		return Match{}, false
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = Normalize(c.Name)
	}

	for _, tier := range []Tier{TierExact, TierArticle, TierContainment} {
		for i, c := range candidates {
			if matchesAt(tier, q, names[i]) {
				return Match{Candidate: c, Tier: tier}, true
			}
		}
	}
	return Match{}, false
}

func tierOf(a, b string) Tier {
	for _, tier := range []Tier{TierExact, TierArticle, TierContainment} {
		if matchesAt(tier, a, b) {
			return tier
		}
	}
	return TierNone
}

// matchesAt applies a single tier to two normalized names.
func matchesAt(tier Tier, a, b string) bool {
	if a == "" || b == "" {
		return false
	}

	switch tier {
	case TierExact:
		return a == b
	case TierArticle:
		sa, sb := stripArticle(a), stripArticle(b)
		return sa != "" && sb != "" && sa == sb
	case TierContainment:
		shorter, longer := a, b
		if len(shorter) > len(longer) {
			shorter, longer = longer, shorter
		}
		if len(shorter) < minContainmentLen || len(longer)-len(shorter) > maxContainmentDiff {
			return false
		}
		return strings.Contains(longer, shorter)
	default:
		return false
	}
}
