// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperwatch/internal/journal"
	"github.com/pdiddy/paperwatch/internal/pipeline"
	"github.com/pdiddy/paperwatch/pkg/types"
)

var organizeCmd = &cobra.Command{
	Use:   "organize <file>...",
	Short: "Match files and file them in the storage directory",
	Long: `Organize runs each file through the same steps as watch: title
extraction, matching and, for exact or clear fuzzy matches, a move or copy
into the storage directory. Outcomes are recorded in the journal.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOrganize,
}

func runOrganize(cmd *cobra.Command, args []string) error {
	if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
		viper.Set("organize.mode", mode)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.JournalPath == "" {
		return fmt.Errorf("storage directory is required: set --storage or organize.storage_dir")
	}
	store, err := journal.NewStore(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer store.Close()

	m, cleanup, err := oneShotMonitor(store)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	reports := make([]pipeline.Report, 0, len(args))
	failed := 0
	for _, path := range args {
		r := m.ProcessFile(ctx, path, true)
		if r.Outcome != nil && r.Outcome.Status == types.StatusFailed {
			failed++
		}
		reports = append(reports, r)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if err := formatReports(reports, jsonOutput); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func init() {
	organizeCmd.Flags().String("mode", "", "file operation: move or copy (default from config)")
	organizeCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(organizeCmd)
}
