// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match selects at most one reference for an extracted title.
//
// Titles are normalized, truncated to MaxCompareRunes and scored against
// every title and alternate title of every reference. The best reference
// wins; ties prefer the reference accepted most recently by this Matcher,
// then the later position in the snapshot, then the smaller identifier.
// A score at or above ExactThreshold is accepted outright. A score between
// FuzzyThreshold and ExactThreshold is accepted only when it leads the
// runner-up reference by AmbiguityMargin; otherwise the result is ambiguous
// and binds no reference.
package match

import (
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/paperwatch/internal/logging"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// ErrAmbiguousMatch is reported for fuzzy results without a clear winner.
var ErrAmbiguousMatch = errors.New("ambiguous match")

// scoreEpsilon absorbs float error when comparing scores and gaps.
const scoreEpsilon = 1e-9

// Option configures a Matcher.
type Option func(*Matcher)

// WithScorer replaces the default Levenshtein scorer.
func WithScorer(s Scorer) Option {
	return func(m *Matcher) { m.scorer = s }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Matcher) { m.log = logging.Component(log, "match") }
}

// Matcher is safe for concurrent use.
type Matcher struct {
	cfg    types.MatchConfig
	scorer Scorer
	log    *zap.Logger

	mu     sync.Mutex
	seq    uint64
	recent map[string]uint64 // reference ID -> sequence of last acceptance
}

// New creates a Matcher.
func New(cfg types.MatchConfig, opts ...Option) *Matcher {
	m := &Matcher{
		cfg:    cfg,
		scorer: LevenshteinScorer{},
		log:    zap.NewNop(),
		recent: make(map[string]uint64),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

type scored struct {
	pos   int
	score float64
	seq   uint64
	id    string
}

// better reports whether a ranks above b.
func better(a, b scored) bool {
	if a.score > b.score+scoreEpsilon {
		return true
	}
	if b.score > a.score+scoreEpsilon {
		return false
	}
	if a.seq != b.seq {
		return a.seq > b.seq
	}
	if a.pos != b.pos {
		return a.pos > b.pos
	}
	return a.id < b.id
}

// Match scores the candidate against snap and classifies the best score.
func (m *Matcher) Match(cand types.CandidateDocument, snap *Snapshot) types.MatchResult {
	res := types.MatchResult{Candidate: cand, Tier: types.MatchNone}
	if !cand.HasTitle() || snap.Len() == 0 {
		return res
	}
	title := truncate(Normalize(cand.Title), m.cfg.MaxCompareRunes)
	if title == "" {
		return res
	}

	m.mu.Lock()
	recent := make(map[string]uint64, len(m.recent))
	for id, seq := range m.recent {
		recent[id] = seq
	}
	m.mu.Unlock()

	var best, runnerUp scored
	found := false
	for i, ref := range snap.refs {
		s := scored{pos: i, score: -1, seq: recent[ref.ID], id: ref.ID}
		for _, t := range snap.titles[i] {
			if v := m.scorer.Score(title, truncate(t, m.cfg.MaxCompareRunes)); v > s.score {
				s.score = v
			}
		}
		if s.score < 0 {
			continue
		}
		switch {
		case !found:
			best, found = s, true
			runnerUp = scored{score: 0}
		case better(s, best):
			runnerUp, best = best, s
		case s.score > runnerUp.score:
			runnerUp = s
		}
	}
	if !found {
		return res
	}

	res.Score = best.score
	res.RunnerUpScore = runnerUp.score
	switch {
	case best.score >= m.cfg.ExactThreshold-scoreEpsilon:
		res.Tier = types.MatchExact
	case best.score >= m.cfg.FuzzyThreshold-scoreEpsilon:
		if best.score-runnerUp.score >= m.cfg.AmbiguityMargin-scoreEpsilon {
			res.Tier = types.MatchFuzzy
		} else {
			res.Tier = types.MatchAmbiguous
		}
	default:
		res.Tier = types.MatchNone
	}

	if res.Tier.Actionable() {
		ref := snap.refs[best.pos]
		res.Reference = &ref
		m.accept(ref.ID)
	}

	m.log.Debug("matched candidate",
		zap.String(logging.FieldPath, cand.Path),
		zap.String(logging.FieldTier, string(res.Tier)),
		zap.Float64(logging.FieldScore, res.Score),
		zap.Float64("runner_up", res.RunnerUpScore),
		zap.String(logging.FieldReference, best.id))
	return res
}

func (m *Matcher) accept(id string) {
	m.mu.Lock()
	m.seq++
	m.recent[id] = m.seq
	m.mu.Unlock()
}

// ResultError returns ErrAmbiguousMatch for ambiguous results and nil
// otherwise.
func ResultError(res types.MatchResult) error {
	if res.Tier != types.MatchAmbiguous {
		return nil
	}
	return errors.Wrapf(ErrAmbiguousMatch, "%q: best %.3f, runner-up %.3f",
		res.Candidate.Title, res.Score, res.RunnerUpScore)
}
