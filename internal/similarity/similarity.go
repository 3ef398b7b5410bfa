// Package similarity compares case-name strings.
package similarity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the minimum score SelectBest requires before it
// prefers a scored candidate over input order
const DefaultThreshold = 0.3

var (
	// Corporate and legal suffix tokens, matched after lower-casing and
	// before punctuation is stripped so "l.l.c." is caught whole
	suffixRe = regexp.MustCompile(`\b(?:incorporated|inc|corporation|corp|company|co|l\.l\.c|llc|l\.l\.p|llp|ltd|limited|plc|n\.a|p\.c|p\.a)\.?(?:\s|$|,)`)

	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spaceRe = regexp.MustCompile(`\s+`)

	accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize lower-cases a name, folds accents, strips corporate suffixes
// and punctuation, and collapses whitespace
func Normalize(name string) string {
	folded, _, err := transform.String(accentFolder, name)
	if err != nil {
		folded = name
	}

	s := strings.ToLower(folded)
	s = suffixRe.ReplaceAllString(s, " ")
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Score returns a symmetric similarity in [0, 1] between two case names:
// 0.4*sequence ratio + 0.4*word jaccard + 0.2*substring overlap
func Score(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	score := 0.4*SequenceRatio(na, nb) + 0.4*Jaccard(strings.Fields(na), strings.Fields(nb)) + 0.2*SubstringOverlap(na, nb)
	if score > 1 {
		score = 1
	}
	return score
}

// SequenceRatio is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes
func SequenceRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(longest)
}

// Jaccard is |A ∩ B| / |A ∪ B| over distinct words
func Jaccard(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, w := range a {
		setA[w] = true
	}
	setB := make(map[string]bool, len(b))
	for _, w := range b {
		setB[w] = true
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// SubstringOverlap is min(len)/max(len) when one string contains the other, else 0
func SubstringOverlap(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return 0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}

// SelectBest returns the index of the highest-scoring candidate name against
// target, provided it reaches threshold; otherwise index 0. It returns -1 only
// for an empty candidate list.
func SelectBest(candidates []string, target string, threshold float64) (int, float64) {
	if len(candidates) == 0 {
		return -1, 0
	}

	bestIdx := -1
	bestScore := -1.0
	for i, candidate := range candidates {
		score := Score(candidate, target)
		if score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}

	if bestScore >= threshold {
		return bestIdx, bestScore
	}
	return 0, Score(candidates[0], target)
}

// levenshtein computes edit distance with a two-row table
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
