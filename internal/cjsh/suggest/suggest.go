// Package suggest implements the "did you mean" candidate ranking used
// for command-not-found diagnostics (§7: "up to 3 suggestion candidates
// derived from edit distance") and for the validator's (§4.12) typo
// hints. taskguild already pulled in go-difflib for diffing elsewhere in
// the corpus; this package reuses it for ratio-based ranking instead of
// hand-rolling a Levenshtein distance.
package suggest

import (
	"sort"

	"github.com/pmezard/go-difflib/difflib"
)

// SimilarityRatio returns go-difflib's SequenceMatcher ratio for a vs b,
// in [0,1], 1 meaning identical.
func SimilarityRatio(a, b string) float64 {
	sm := difflib.NewMatcher(splitChars(a), splitChars(b))
	return sm.Ratio()
}

func splitChars(s string) []string {
	out := make([]string, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = string(s[i])
	}
	return out
}

// Candidate is one ranked suggestion.
type Candidate struct {
	Name  string
	Score float64
}

// Candidates returns up to limit entries from universe most similar to
// target, ordered by descending similarity, excluding scores below 0.4
// (a low enough ratio isn't a useful suggestion, per §7's "derived from
// edit distance" guidance — a weak match is worse than no suggestion).
func Candidates(target string, universe []string, limit int) []Candidate {
	const minScore = 0.4
	var scored []Candidate
	for _, name := range universe {
		if name == target {
			continue
		}
		score := SimilarityRatio(target, name)
		if score >= minScore {
			scored = append(scored, Candidate{Name: name, Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
