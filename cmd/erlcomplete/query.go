package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/cache"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/config"
)

var (
	flagRebuild bool
	flagPrefix  string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the symbol index",
	Long:  "Answers completion queries from the last committed build. When no build exists yet and roots are configured, the index is built first.",
}

func init() {
	queryCmd.PersistentFlags().BoolVar(&flagRebuild, "rebuild", false, "rebuild the index before querying")

	modulesCmd.Flags().StringVar(&flagPrefix, "prefix", "", "only list modules starting with this prefix")

	queryCmd.AddCommand(moduleCmd)
	queryCmd.AddCommand(modulesCmd)
	queryCmd.AddCommand(positionCmd)
}

var moduleCmd = &cobra.Command{
	Use:   "module <module>",
	Short: "List the exported functions of a module as completions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueryCache(func(ctx context.Context, c *cache.Cache) error {
			items := c.QueryByModule(ctx, args[0])
			if flagFormat == formatJSON {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			formatCompletionsText(cmd.OutOrStdout(), items)
			return nil
		})
	},
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List every indexed module",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueryCache(func(ctx context.Context, c *cache.Cache) error {
			items := c.QueryModules(ctx)
			if flagPrefix != "" {
				filtered := items[:0]
				for _, item := range items {
					if strings.HasPrefix(item.Value, flagPrefix) {
						filtered = append(filtered, item)
					}
				}
				items = filtered
			}
			if flagFormat == formatJSON {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			formatModulesText(cmd.OutOrStdout(), items)
			return nil
		})
	},
}

var positionCmd = &cobra.Command{
	Use:   "position <module> <function>",
	Short: "Show where a function is defined",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueryCache(func(ctx context.Context, c *cache.Cache) error {
			items := c.QueryPosition(ctx, args[0], args[1])
			if flagFormat == formatJSON {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			formatPositionsText(cmd.OutOrStdout(), items)
			return nil
		})
	},
}

// withQueryCache opens the cache resuming its last build, rebuilds it when
// asked to or when nothing was ever committed, then runs fn.
func withQueryCache(fn func(ctx context.Context, c *cache.Cache) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx := context.Background()

	c, err := openCache(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := ensureBuilt(ctx, cfg, c, logger); err != nil {
		return err
	}
	return fn(ctx, c)
}

func ensureBuilt(ctx context.Context, cfg *config.Config, c *cache.Cache, logger *slog.Logger) error {
	if c.Ready() && !flagRebuild {
		return nil
	}
	if len(cfg.Roots) == 0 {
		if flagRebuild {
			return fmt.Errorf("%w (use --root or set roots in the config file)", config.ErrNoRoots)
		}
		fmt.Fprintln(os.Stderr, "Index is empty: run 'erlcomplete index' or pass --root")
		return nil
	}

	idx, _, err := newIndexer(cfg, c, logger)
	if err != nil {
		return err
	}
	if _, err := idx.RebuildSync(ctx); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	return nil
}
