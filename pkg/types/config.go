// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"time"

	"github.com/cockroachdb/errors"
)

// MatchConfig holds the similarity thresholds. None of these are constants
// of the matcher; callers override them from configuration.
type MatchConfig struct {
	// ExactThreshold is the score at or above which a match is accepted
	// unconditionally (default 0.9).
	ExactThreshold float64 `json:"exact_threshold" yaml:"exact_threshold" mapstructure:"exact_threshold"`

	// FuzzyThreshold is the lowest score considered a match at all (default 0.6).
	FuzzyThreshold float64 `json:"fuzzy_threshold" yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`

	// AmbiguityMargin is the minimum lead a fuzzy match needs over the
	// runner-up reference (default 0.1).
	AmbiguityMargin float64 `json:"ambiguity_margin" yaml:"ambiguity_margin" mapstructure:"ambiguity_margin"`

	// MaxCompareRunes truncates normalized titles before scoring (default 256).
	MaxCompareRunes int `json:"max_compare_runes" yaml:"max_compare_runes" mapstructure:"max_compare_runes"`
}

// ExtractionConfig holds the title extraction settings.
type ExtractionConfig struct {
	// ReadLimit bounds the bytes read from one document (default 8 MiB).
	ReadLimit int64 `json:"read_limit" yaml:"read_limit" mapstructure:"read_limit"`

	// MinFilenameWords is the number of words a cleaned filename needs to be
	// taken as a title (default 3).
	MinFilenameWords int `json:"min_filename_words" yaml:"min_filename_words" mapstructure:"min_filename_words"`

	// CacheSize is the number of content-tier results kept (default 512).
	CacheSize int `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`

	// RetryDelay is the pause before the single retry of a transient read error.
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`
}

// LedgerConfig bounds the processed-path ledger.
type LedgerConfig struct {
	TTL           time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	MaxEntries    int           `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// OrganizeConfig holds the canonical storage settings.
type OrganizeConfig struct {
	// StorageDir is the canonical storage directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir" mapstructure:"storage_dir"`

	// Mode selects move or copy.
	Mode OrganizeMode `json:"mode" yaml:"mode" mapstructure:"mode"`

	// IDPrefix is prepended to the identifier slug in destination names.
	IDPrefix string `json:"id_prefix" yaml:"id_prefix" mapstructure:"id_prefix"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`
	JSON  bool   `json:"json" yaml:"json" mapstructure:"json"`
}

// PipelineConfig groups all settings for the monitor and the CLI.
type PipelineConfig struct {
	// DownloadsDirs are the directories where new documents arrive.
	DownloadsDirs []string `json:"downloads_dirs" yaml:"downloads_dirs" mapstructure:"downloads_dirs"`

	// Recursive watches subdirectories of the downloads directories.
	Recursive bool `json:"recursive" yaml:"recursive" mapstructure:"recursive"`

	// ProjectFile is the project description whose changes trigger a
	// reference reload.
	ProjectFile string `json:"project_file" yaml:"project_file" mapstructure:"project_file"`

	// ReferencesFile is the YAML reference list read on reload. Defaults to
	// ProjectFile.
	ReferencesFile string `json:"references_file" yaml:"references_file" mapstructure:"references_file"`

	// Extensions lists the document extensions that are processed.
	Extensions []string `json:"extensions" yaml:"extensions" mapstructure:"extensions"`

	DownloadDebounce time.Duration `json:"download_debounce" yaml:"download_debounce" mapstructure:"download_debounce"`
	ProjectDebounce  time.Duration `json:"project_debounce" yaml:"project_debounce" mapstructure:"project_debounce"`

	// Workers bounds concurrent extraction and matching.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// JournalPath is the SQLite database recording outcomes.
	JournalPath string `json:"journal_path" yaml:"journal_path" mapstructure:"journal_path"`

	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr" mapstructure:"metrics_addr"`

	Match      MatchConfig      `json:"match" yaml:"match" mapstructure:"match"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Organize   OrganizeConfig   `json:"organize" yaml:"organize" mapstructure:"organize"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultMatchConfig returns the stock thresholds.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		ExactThreshold:  0.9,
		FuzzyThreshold:  0.6,
		AmbiguityMargin: 0.1,
		MaxCompareRunes: 256,
	}
}

// DefaultExtractionConfig returns the stock extraction settings.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		ReadLimit:        8 << 20,
		MinFilenameWords: 3,
		CacheSize:        512,
		RetryDelay:       250 * time.Millisecond,
	}
}

// DefaultLedgerConfig returns the stock ledger bounds.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		TTL:           10 * time.Minute,
		MaxEntries:    4096,
		SweepInterval: time.Minute,
	}
}

// DefaultPipelineConfig returns a complete configuration with every default
// filled in. Paths are left empty.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Recursive:        true,
		Extensions:       []string{".pdf"},
		DownloadDebounce: 2 * time.Second,
		ProjectDebounce:  500 * time.Millisecond,
		Workers:          4,
		Match:            DefaultMatchConfig(),
		Extraction:       DefaultExtractionConfig(),
		Ledger:           DefaultLedgerConfig(),
		Organize:         OrganizeConfig{Mode: ModeMove},
		Log:              LogConfig{Level: "info"},
	}
}

// Validate checks threshold ordering and required values.
func (c MatchConfig) Validate() error {
	if c.FuzzyThreshold < 0 || c.ExactThreshold > 1 {
		return errors.Newf("thresholds must lie in [0,1]: fuzzy %.2f, exact %.2f", c.FuzzyThreshold, c.ExactThreshold)
	}
	if c.FuzzyThreshold > c.ExactThreshold {
		return errors.Newf("fuzzy threshold %.2f exceeds exact threshold %.2f", c.FuzzyThreshold, c.ExactThreshold)
	}
	if c.AmbiguityMargin < 0 {
		return errors.Newf("ambiguity margin must not be negative: %.2f", c.AmbiguityMargin)
	}
	return nil
}

// Validate checks the pipeline settings the monitor cannot run without.
func (c PipelineConfig) Validate() error {
	if err := c.Match.Validate(); err != nil {
		return err
	}
	if len(c.DownloadsDirs) == 0 {
		return errors.New("at least one downloads directory is required")
	}
	if c.Organize.StorageDir == "" {
		return errors.New("storage directory is required")
	}
	switch c.Organize.Mode {
	case ModeMove, ModeCopy:
	default:
		return errors.Newf("unsupported file operation %q: use move or copy", c.Organize.Mode)
	}
	if c.Workers <= 0 {
		return errors.Newf("workers must be positive: %d", c.Workers)
	}
	return nil
}
