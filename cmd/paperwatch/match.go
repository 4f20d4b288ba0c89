// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperwatch/internal/pipeline"
	"github.com/pdiddy/paperwatch/pkg/types"
)

var matchCmd = &cobra.Command{
	Use:   "match <file>...",
	Short: "Show which reference each file matches, without touching it",
	Long: `Match extracts a title from each file and scores it against the project
references. Nothing is moved, copied or journaled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func runMatch(cmd *cobra.Command, args []string) error {
	m, cleanup, err := oneShotMonitor(nil)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	reports := make([]pipeline.Report, 0, len(args))
	for _, path := range args {
		reports = append(reports, m.ProcessFile(ctx, path, false))
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatReports(reports, jsonOutput)
}

// reportJSON is the JSON form of a report; errors become strings.
type reportJSON struct {
	Path    string                     `json:"path"`
	Match   types.MatchResult          `json:"match"`
	Outcome *types.OrganizationOutcome `json:"outcome,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

func formatReports(reports []pipeline.Report, jsonOutput bool) error {
	if jsonOutput {
		out := make([]reportJSON, 0, len(reports))
		for _, r := range reports {
			j := reportJSON{Path: r.Event.Path, Match: r.Match, Outcome: r.Outcome}
			if r.Err != nil {
				j.Error = r.Err.Error()
			}
			out = append(out, j)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, r := range reports {
		printReport(os.Stdout, r)
		if r.Match.Candidate.Title != "" {
			fmt.Fprintf(os.Stdout, "    title (%s): %s\n", r.Match.Candidate.Tier, r.Match.Candidate.Title)
		}
	}
	return nil
}

// oneShotMonitor builds a monitor for the match and organize commands and
// loads the references. Download directories are not needed.
func oneShotMonitor(j pipeline.Journal) (*pipeline.Monitor, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if len(cfg.DownloadsDirs) == 0 {
		cfg.DownloadsDirs = []string{"."}
	}
	if cfg.ProjectFile == "" && cfg.ReferencesFile == "" {
		return nil, nil, fmt.Errorf("project file is required: set --project or project_file")
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	m, err := pipeline.Build(cfg, log, j, nil)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	if err := m.Reload(context.Background()); err != nil {
		log.Sync()
		return nil, nil, err
	}
	return m, func() { log.Sync() }, nil
}

func init() {
	matchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(matchCmd)
}
