// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paperwatch/internal/journal"
	"github.com/pdiddy/paperwatch/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded organization outcomes",
	Long: `History reads the journal kept in the storage directory and lists the
most recent outcomes, newest first, followed by a count per status.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	ctx := context.Background()
	limit, _ := cmd.Flags().GetInt("limit")
	refID, _ := cmd.Flags().GetString("reference")

	var outcomes []types.OrganizationOutcome
	if refID != "" {
		outcomes, err = store.ByReference(ctx, refID)
	} else {
		outcomes, err = store.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}

	if len(outcomes) == 0 {
		fmt.Println("No outcomes recorded.")
		return nil
	}
	fmt.Println(renderHistory(outcomes))

	counts, err := store.Counts(ctx)
	if err != nil {
		return err
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Printf("%s: %d  ", s, counts[types.OutcomeStatus(s)])
	}
	fmt.Println()
	return nil
}

func renderHistory(outcomes []types.OrganizationOutcome) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Time", "Status", "Tier", "Score", "Reference", "File", "Destination"})
	for _, o := range outcomes {
		ref := ""
		if o.Match.Reference != nil {
			ref = o.Match.Reference.ID
		}
		dest := ""
		if o.Destination != "" {
			dest = filepath.Base(o.Destination)
		}
		tw.AppendRow(table.Row{
			o.Time.Local().Format("2006-01-02 15:04:05"),
			o.Status,
			o.Match.Tier,
			fmt.Sprintf("%.2f", o.Match.Score),
			ref,
			filepath.Base(o.Source),
			dest,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum outcomes to list (0 = all)")
	historyCmd.Flags().String("reference", "", "only outcomes bound to this reference ID")
	historyCmd.Flags().Bool("json", false, "output outcomes as JSON")
	rootCmd.AddCommand(historyCmd)
}
