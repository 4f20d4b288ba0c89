// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// --- test helpers ---

func candidate(title string) types.CandidateDocument {
	return types.CandidateDocument{Path: "/downloads/x.pdf", Title: title, Tier: types.TierFilename}
}

func ref(id, title string, alts ...string) types.LiteratureReference {
	return types.LiteratureReference{ID: id, Title: title, AltTitles: alts}
}

// tableScorer returns fixed scores keyed by the normalized reference title.
func tableScorer(scores map[string]float64) Scorer {
	return ScorerFunc(func(_, b string) float64 { return scores[b] })
}

// --- normalization ---

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Role of PTEN in apoptosis", "role of pten in apoptosis"},
		{"ROLE OF PTEN IN APOPTOSIS.", "role of pten in apoptosis"},
		{"  Müller–Lyer   illusion ", "muller lyer illusion"},
		{"ﬁbrosis", "fibrosis"},
		{"Straße", "strasse"},
		{"Wnt/β-catenin: a review", "wnt β catenin a review"},
		{"...", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "mül", truncate("müller", 3))
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abc", truncate("abc", 0))
}

func TestLevenshteinScorer(t *testing.T) {
	var s LevenshteinScorer
	assert.InDelta(t, 1.0, s.Score("same", "same"), 1e-9)
	assert.InDelta(t, 1-3.0/7.0, s.Score("kitten", "sitting"), 1e-9)
	assert.InDelta(t, 0.0, s.Score("", ""), 1e-9)
	assert.InDelta(t, 0.0, s.Score("abc", ""), 1e-9)
}

// --- tiers ---

func TestExactMatchIgnoresCaseAndPunctuation(t *testing.T) {
	m := New(types.DefaultMatchConfig())
	snap := NewSnapshot([]types.LiteratureReference{
		ref("PMID:1", "Wnt signaling in development"),
		ref("PMID:2", "ROLE OF PTEN IN APOPTOSIS."),
	})

	res := m.Match(candidate("Role of PTEN in apoptosis"), snap)
	assert.Equal(t, types.MatchExact, res.Tier)
	require.NotNil(t, res.Reference)
	assert.Equal(t, "PMID:2", res.Reference.ID)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
	assert.NoError(t, ResultError(res))
}

func TestAltTitleMatches(t *testing.T) {
	m := New(types.DefaultMatchConfig())
	snap := NewSnapshot([]types.LiteratureReference{
		ref("arXiv:1512.03385", "Deep Residual Learning for Image Recognition", "ResNet: residual networks"),
	})
	res := m.Match(candidate("ResNet residual networks"), snap)
	assert.Equal(t, types.MatchExact, res.Tier)
	require.NotNil(t, res.Reference)
	assert.Equal(t, "arXiv:1512.03385", res.Reference.ID)
}

func TestFuzzyAcceptedWithClearLead(t *testing.T) {
	scores := map[string]float64{
		"wnt signalling during development": 0.75,
		"wnt signaling in disease":          0.60,
	}
	m := New(types.DefaultMatchConfig(), WithScorer(tableScorer(scores)))
	snap := NewSnapshot([]types.LiteratureReference{
		ref("A", "Wnt signalling during development"),
		ref("B", "Wnt signaling in disease"),
	})

	res := m.Match(candidate("Wnt signaling in development"), snap)
	assert.Equal(t, types.MatchFuzzy, res.Tier)
	require.NotNil(t, res.Reference)
	assert.Equal(t, "A", res.Reference.ID)
	assert.InDelta(t, 0.75, res.Score, 1e-9)
	assert.InDelta(t, 0.60, res.RunnerUpScore, 1e-9)
}

func TestFuzzyAtExactMarginIsAccepted(t *testing.T) {
	scores := map[string]float64{"alpha": 0.7, "beta": 0.6}
	m := New(types.DefaultMatchConfig(), WithScorer(tableScorer(scores)))
	snap := NewSnapshot([]types.LiteratureReference{ref("A", "alpha"), ref("B", "beta")})

	res := m.Match(candidate("anything"), snap)
	assert.Equal(t, types.MatchFuzzy, res.Tier)
}

func TestFuzzyAmbiguousWithoutLead(t *testing.T) {
	scores := map[string]float64{
		"wnt signalling during development": 0.75,
		"wnt signaling in disease":          0.70,
	}
	m := New(types.DefaultMatchConfig(), WithScorer(tableScorer(scores)))
	snap := NewSnapshot([]types.LiteratureReference{
		ref("A", "Wnt signalling during development"),
		ref("B", "Wnt signaling in disease"),
	})

	res := m.Match(candidate("Wnt signaling in development"), snap)
	assert.Equal(t, types.MatchAmbiguous, res.Tier)
	assert.Nil(t, res.Reference)
	assert.False(t, res.Tier.Actionable())

	err := ResultError(res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousMatch))
}

func TestBelowFuzzyThresholdIsNone(t *testing.T) {
	m := New(types.DefaultMatchConfig())
	snap := NewSnapshot([]types.LiteratureReference{ref("A", "Role of PTEN in apoptosis")})

	res := m.Match(candidate("Quantum chromodynamics on the lattice"), snap)
	assert.Equal(t, types.MatchNone, res.Tier)
	assert.Nil(t, res.Reference)
	assert.Less(t, res.Score, 0.6)
}

func TestNoTitleOrEmptySnapshot(t *testing.T) {
	m := New(types.DefaultMatchConfig())
	snap := NewSnapshot([]types.LiteratureReference{ref("A", "Role of PTEN in apoptosis")})

	assert.Equal(t, types.MatchNone, m.Match(candidate(""), snap).Tier)
	assert.Equal(t, types.MatchNone, m.Match(candidate("!!!"), snap).Tier)
	assert.Equal(t, types.MatchNone, m.Match(candidate("Role of PTEN in apoptosis"), NewSnapshot(nil)).Tier)
	assert.Equal(t, types.MatchNone, m.Match(candidate("Role of PTEN in apoptosis"), nil).Tier)
}

func TestThresholdsAreConfigurable(t *testing.T) {
	cfg := types.DefaultMatchConfig()
	cfg.ExactThreshold = 0.99
	cfg.FuzzyThreshold = 0.2
	scores := map[string]float64{"alpha": 0.95}
	m := New(cfg, WithScorer(tableScorer(scores)))
	snap := NewSnapshot([]types.LiteratureReference{ref("A", "alpha")})

	res := m.Match(candidate("alpha"), snap)
	assert.Equal(t, types.MatchFuzzy, res.Tier)
}

// --- truncation ---

func TestNormalizeBeforeTruncate(t *testing.T) {
	cfg := types.DefaultMatchConfig()
	cfg.MaxCompareRunes = 11
	m := New(cfg)
	snap := NewSnapshot([]types.LiteratureReference{ref("A", "Role of PTEN in apoptosis")})

	// Leading punctuation is removed before the length cut, so both sides
	// compare as "role of pte".
	res := m.Match(candidate("...... Role of PTEN signalling"), snap)
	assert.Equal(t, types.MatchExact, res.Tier)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
}

// --- ties ---

func TestTiePrefersLaterPosition(t *testing.T) {
	m := New(types.DefaultMatchConfig())
	snap := NewSnapshot([]types.LiteratureReference{
		ref("A", "Role of PTEN in apoptosis"),
		ref("B", "Role of PTEN in apoptosis"),
	})
	res := m.Match(candidate("Role of PTEN in apoptosis"), snap)
	require.NotNil(t, res.Reference)
	assert.Equal(t, "B", res.Reference.ID)
	assert.InDelta(t, 1.0, res.RunnerUpScore, 1e-9)
}

func TestTiePrefersMostRecentlyAccepted(t *testing.T) {
	m := New(types.DefaultMatchConfig())
	snap := NewSnapshot([]types.LiteratureReference{
		ref("A", "Role of PTEN in apoptosis", "PTEN apoptosis companion volume"),
		ref("B", "Role of PTEN in apoptosis"),
	})

	first := m.Match(candidate("PTEN apoptosis companion volume"), snap)
	require.NotNil(t, first.Reference)
	require.Equal(t, "A", first.Reference.ID)

	res := m.Match(candidate("Role of PTEN in apoptosis"), snap)
	require.NotNil(t, res.Reference)
	assert.Equal(t, "A", res.Reference.ID)
}

// --- library ---

func TestSnapshotLookup(t *testing.T) {
	snap := NewSnapshot([]types.LiteratureReference{ref("A", "alpha"), ref("B", "beta")})
	assert.Equal(t, 2, snap.Len())
	r, ok := snap.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, "beta", r.Title)
	_, ok = snap.Lookup("C")
	assert.False(t, ok)
}

func TestSnapshotIsolatedFromInput(t *testing.T) {
	refs := []types.LiteratureReference{ref("A", "alpha", "first alt")}
	snap := NewSnapshot(refs)
	refs[0].AltTitles[0] = "changed"
	refs[0].ID = "Z"

	r, ok := snap.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, []string{"first alt"}, r.AltTitles)
}

func TestLibraryReplaceIsAtomic(t *testing.T) {
	lib := NewLibrary()
	assert.Equal(t, 0, lib.Load().Len())

	one := NewSnapshot([]types.LiteratureReference{ref("A", "alpha")})
	two := NewSnapshot([]types.LiteratureReference{ref("A", "alpha"), ref("B", "beta")})
	lib.Replace(one)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				n := lib.Load().Len()
				assert.Contains(t, []int{1, 2}, n)
			}
		}()
	}
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			lib.Replace(two)
		} else {
			lib.Replace(one)
		}
	}
	wg.Wait()

	prev := lib.Replace(nil)
	assert.Same(t, one, prev)
	assert.Equal(t, 0, lib.Load().Len())
}
