// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize prepares a title for comparison: compatibility decomposition,
// combining marks stripped, case folded, anything other than letters and
// digits turned into spaces, whitespace collapsed.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), cases.Fold())
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(mapped), " ")
}

// truncate cuts s to at most n runes. n <= 0 means no limit.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Scorer rates the similarity of two normalized titles in [0,1].
type Scorer interface {
	Score(a, b string) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(a, b string) float64

// Score calls f(a, b).
func (f ScorerFunc) Score(a, b string) float64 { return f(a, b) }

// LevenshteinScorer scores 1 - distance/longer length, measured in runes.
type LevenshteinScorer struct{}

// Score implements Scorer.
func (LevenshteinScorer) Score(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longer := max(la, lb)
	if longer == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longer)
}
