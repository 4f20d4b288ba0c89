// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paperwatch/internal/journal"
	"github.com/pdiddy/paperwatch/internal/metrics"
	"github.com/pdiddy/paperwatch/internal/pipeline"
)

const lockFile = ".paperwatch.lock"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch download directories and organize matching papers",
	Long: `Watch subscribes to the download directories and the project file.
Each document that settles in a download directory is matched against the
project references; exact and clear fuzzy matches are moved or copied into
the storage directory. Editing the project file reloads the references.

Only one watch may run per storage directory. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := os.MkdirAll(cfg.Organize.StorageDir, 0o755); err != nil {
		return errors.Wrap(err, "creating storage directory")
	}
	lock := flock.New(filepath.Join(cfg.Organize.StorageDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "acquiring storage lock")
	}
	if !locked {
		return errors.WithHint(
			errors.Newf("another paperwatch is already watching %s", cfg.Organize.StorageDir),
			"stop the other instance or use a different storage directory")
	}
	defer lock.Unlock()

	store, err := journal.NewStore(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer store.Close()

	collector := metrics.NewCollector()
	m, err := pipeline.Build(cfg, log, store, collector)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, collector, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if err := m.Start(ctx); err != nil {
		return err
	}
	for _, uerr := range m.Unavailable() {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", uerr)
	}
	fmt.Fprintf(os.Stdout, "Watching %v (storage %s). Press Ctrl-C to stop.\n",
		cfg.DownloadsDirs, cfg.Organize.StorageDir)

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	for r := range m.Reports() {
		printReport(os.Stdout, r)
	}
	return nil
}

func serveMetrics(addr string, c *metrics.Collector, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}

// printReport writes one line per processed document.
func printReport(w io.Writer, r pipeline.Report) {
	status := "matched"
	dest := ""
	if r.Outcome != nil {
		status = string(r.Outcome.Status)
		dest = r.Outcome.Destination
	}
	ref := "-"
	if r.Match.Reference != nil {
		ref = r.Match.Reference.ID
	}
	fmt.Fprintf(w, "%-14s  %-9s  %.2f  %-20s  %s", status, r.Match.Tier, r.Match.Score, ref, filepath.Base(r.Event.Path))
	if dest != "" && status == "organized" {
		fmt.Fprintf(w, " -> %s", dest)
	}
	if r.Err != nil {
		fmt.Fprintf(w, " (%v)", r.Err)
	}
	fmt.Fprintln(w)
}

func init() {
	watchCmd.Flags().StringSlice("downloads", nil, "download directories to watch (repeatable)")
	watchCmd.Flags().String("mode", "", "file operation: move or copy")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	watchCmd.Flags().Int("workers", 0, "concurrent documents")

	_ = viper.BindPFlag("downloads_dirs", watchCmd.Flags().Lookup("downloads"))
	_ = viper.BindPFlag("organize.mode", watchCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("metrics_addr", watchCmd.Flags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("workers", watchCmd.Flags().Lookup("workers"))

	rootCmd.AddCommand(watchCmd)
}
