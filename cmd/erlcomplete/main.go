package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/cache"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/config"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/indexer"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/parser"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/scanner"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	flagConfig   string
	flagCacheDir string
	flagRoots    []string
	flagFormat   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "erlcomplete",
	Short:         "Erlang exported-function index for editor autocompletion",
	Long:          "erlcomplete scans Erlang sources, stores every exported function in a SQLite cache and answers completion queries over MCP or the command line.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: <user config dir>/erlcomplete/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "cache directory (overrides config)")
	rootCmd.PersistentFlags().StringArrayVar(&flagRoots, "root", nil, "source root to index, repeatable (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and storage driver information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "erlcomplete %s\n", version)
		fmt.Fprintf(w, "Build Time: %s\n", buildTime)
		fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
		fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
		fmt.Fprintf(w, "Schema Version: %s\n", storage.CurrentSchemaVersion)
	},
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	if flagCacheDir != "" {
		cfg.CacheDir = flagCacheDir
	}
	if len(flagRoots) > 0 {
		cfg.Roots = append([]string(nil), flagRoots...)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger logs to stderr; stdout carries MCP traffic and query output.
func newLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	return logger
}

// openCache opens the cache described by cfg. With resume set the last
// committed build is served without rebuilding first.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger, resume bool) (*cache.Cache, error) {
	c, err := cache.Open(ctx, cache.Options{
		Dir:             cfg.CacheDir,
		DataType:        cfg.DataType,
		Version:         cfg.Version,
		ResumeLastBuild: resume,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening cache in %s: %w", cfg.CacheDir, err)
	}
	return c, nil
}

// newIndexer wires scanner and parser from cfg into an indexer over c.
func newIndexer(cfg *config.Config, c *cache.Cache, logger *slog.Logger) (*indexer.Indexer, *scanner.Scanner, error) {
	set, err := cfg.PatternSet()
	if err != nil {
		return nil, nil, err
	}
	sc := scanner.New(scanner.Options{
		Extension:        cfg.Extension,
		RespectGitignore: cfg.RespectGitignore,
		Logger:           logger,
	})
	idx := indexer.New(c, indexer.Config{
		Roots:   cfg.Roots,
		Workers: cfg.Workers,
		Scanner: sc,
		Parser:  parser.New(set),
		Logger:  logger,
	})
	return idx, sc, nil
}
