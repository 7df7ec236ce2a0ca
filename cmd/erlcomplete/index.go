package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/indexer"
)

var flagReset bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the symbol index in the foreground",
	Long:  "Scans every configured root, extracts exported functions and replaces the cache contents in a single commit.",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagReset, "reset", false, "delete and recreate the cache directory before indexing")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireRoots(); err != nil {
		return fmt.Errorf("%w (use --root or set roots in the config file)", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := openCache(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer c.Close()

	if flagReset {
		if err := c.Reset(ctx); err != nil {
			return fmt.Errorf("resetting cache: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared cache: %s\n", c.Dir())
	}

	idx, _, err := newIndexer(cfg, c, logger)
	if err != nil {
		return err
	}

	stats, err := idx.RebuildSync(ctx)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	return writeStatistics(cmd.OutOrStdout(), stats, c.Path())
}

func writeStatistics(w io.Writer, stats *indexer.Statistics, path string) error {
	if flagFormat == formatJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Indexed %s files (%s failed) in %s\n",
		humanize.Comma(int64(stats.FilesIndexed)),
		humanize.Comma(int64(stats.FilesFailed)),
		stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Modules: %s, functions: %s\n",
		humanize.Comma(int64(stats.ModulesIndexed)),
		humanize.Comma(int64(stats.SymbolsExtracted)))
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(w, "  skipped: %s\n", msg)
	}
	fmt.Fprintf(w, "Cache: %s\n", path)
	return nil
}
