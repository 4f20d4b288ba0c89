// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paperwatch CLI.
//
// paperwatch watches download folders for research papers, works out which
// project reference each one is and files it in the project's storage
// directory. Besides the long-running watch command there are one-shot
// match and organize commands and a history view over the journal.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paperwatch/internal/logging"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the paperwatch CLI.
var rootCmd = &cobra.Command{
	Use:   "paperwatch",
	Short: "File downloaded papers under their project reference",
	Long: `paperwatch watches download directories for new documents, extracts a
title from each one, matches it against the references of a research
project and moves or copies matching documents into the project's storage
directory under the reference identifier.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paperwatch.yaml or ~/.config/paperwatch/paperwatch.yaml)")
	rootCmd.PersistentFlags().String("storage", "", "canonical storage directory")
	rootCmd.PersistentFlags().String("project", "", "project file listing the references")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("organize.storage_dir", rootCmd.PersistentFlags().Lookup("storage"))
	_ = viper.BindPFlag("project_file", rootCmd.PersistentFlags().Lookup("project"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paperwatch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paperwatch"))
		}
	}

	setDefaults(viper.GetViper(), types.DefaultPipelineConfig())
	viper.SetEnvPrefix("PAPERWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key so environment variables
// reach keys that no config file mentions.
func setDefaults(v *viper.Viper, d types.PipelineConfig) {
	defaults := map[string]any{
		"downloads_dirs":                d.DownloadsDirs,
		"recursive":                     d.Recursive,
		"project_file":                  d.ProjectFile,
		"references_file":               d.ReferencesFile,
		"extensions":                    d.Extensions,
		"download_debounce":             d.DownloadDebounce,
		"project_debounce":              d.ProjectDebounce,
		"workers":                       d.Workers,
		"journal_path":                  d.JournalPath,
		"metrics_addr":                  d.MetricsAddr,
		"match.exact_threshold":         d.Match.ExactThreshold,
		"match.fuzzy_threshold":         d.Match.FuzzyThreshold,
		"match.ambiguity_margin":        d.Match.AmbiguityMargin,
		"match.max_compare_runes":       d.Match.MaxCompareRunes,
		"extraction.read_limit":         d.Extraction.ReadLimit,
		"extraction.min_filename_words": d.Extraction.MinFilenameWords,
		"extraction.cache_size":         d.Extraction.CacheSize,
		"extraction.retry_delay":        d.Extraction.RetryDelay,
		"ledger.ttl":                    d.Ledger.TTL,
		"ledger.max_entries":            d.Ledger.MaxEntries,
		"ledger.sweep_interval":         d.Ledger.SweepInterval,
		"organize.storage_dir":          d.Organize.StorageDir,
		"organize.mode":                 string(d.Organize.Mode),
		"organize.id_prefix":            d.Organize.IDPrefix,
		"log.level":                     d.Log.Level,
		"log.json":                      d.Log.JSON,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// loadConfig decodes the merged configuration (defaults, file, environment,
// flags) into a PipelineConfig.
func loadConfig() (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "decoding configuration")
	}
	if cfg.JournalPath == "" && cfg.Organize.StorageDir != "" {
		cfg.JournalPath = filepath.Join(cfg.Organize.StorageDir, ".paperwatch", "journal.db")
	}
	return cfg, nil
}

// newLogger builds the process logger from the configuration.
func newLogger(cfg types.PipelineConfig) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.JSON)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}
