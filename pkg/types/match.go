// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ExtractionTier names the extraction step that produced a candidate title.
type ExtractionTier string

const (
	TierNone     ExtractionTier = "none"
	TierMetadata ExtractionTier = "metadata"
	TierFilename ExtractionTier = "filename"
	TierContent  ExtractionTier = "content"
)

// CandidateDocument is a settled file with its best-effort title.
type CandidateDocument struct {
	Path string `json:"path" yaml:"path"`

	// Title is empty when every extraction tier failed.
	Title string `json:"title" yaml:"title"`

	Tier    ExtractionTier `json:"tier" yaml:"tier"`
	Size    int64          `json:"size" yaml:"size"`
	ModTime time.Time      `json:"mod_time" yaml:"mod_time"`
}

// HasTitle reports whether a match attempt is possible.
func (c CandidateDocument) HasTitle() bool {
	return c.Title != ""
}

// MatchTier classifies a match score against the configured thresholds.
type MatchTier string

const (
	MatchExact     MatchTier = "exact"
	MatchFuzzy     MatchTier = "fuzzy"
	MatchAmbiguous MatchTier = "ambiguous"
	MatchNone      MatchTier = "none"
)

// Actionable reports whether a file may be organized on this tier.
func (t MatchTier) Actionable() bool {
	return t == MatchExact || t == MatchFuzzy
}

// MatchResult is the matcher's decision for one candidate.
type MatchResult struct {
	Candidate CandidateDocument `json:"candidate" yaml:"candidate"`

	// Reference is nil for ambiguous and none tiers.
	Reference *LiteratureReference `json:"reference,omitempty" yaml:"reference,omitempty"`

	Score         float64   `json:"score" yaml:"score"`
	RunnerUpScore float64   `json:"runner_up_score" yaml:"runner_up_score"`
	Tier          MatchTier `json:"tier" yaml:"tier"`
}

// OrganizeMode selects whether the source is moved or copied.
type OrganizeMode string

const (
	ModeMove OrganizeMode = "move"
	ModeCopy OrganizeMode = "copy"
)

// OutcomeStatus is the terminal state of one organize attempt.
type OutcomeStatus string

const (
	StatusOrganized     OutcomeStatus = "organized"
	StatusConflict      OutcomeStatus = "conflict"
	StatusSkipped       OutcomeStatus = "skipped"
	StatusNotActionable OutcomeStatus = "not_actionable"
	StatusFailed        OutcomeStatus = "failed"
)

// OrganizationOutcome records what happened to a matched file.
type OrganizationOutcome struct {
	ID          string        `json:"id" yaml:"id"`
	Match       MatchResult   `json:"match" yaml:"match"`
	Mode        OrganizeMode  `json:"mode" yaml:"mode"`
	Status      OutcomeStatus `json:"status" yaml:"status"`
	Source      string        `json:"source" yaml:"source"`
	Destination string        `json:"destination,omitempty" yaml:"destination,omitempty"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
	Time        time.Time     `json:"time" yaml:"time"`
}
