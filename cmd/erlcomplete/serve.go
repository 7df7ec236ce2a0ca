package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/mcp"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/watcher"
)

var (
	flagNoInitialBuild bool
	flagWatch          bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve completion queries over MCP on stdio",
	Long:  "Opens the cache, starts a background rebuild of the configured roots and answers MCP tool calls on stdin/stdout until interrupted.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&flagNoInitialBuild, "no-initial-build", false, "do not rebuild the index on startup")
	serveCmd.Flags().BoolVar(&flagWatch, "watch", false, "rebuild when source files change (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("watch") {
		cfg.Watch = flagWatch
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := openCache(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer c.Close()

	idx, sc, err := newIndexer(cfg, c, logger)
	if err != nil {
		return err
	}

	if len(cfg.Roots) == 0 {
		logger.Warn("no source roots configured, queries stay empty until roots are set")
	} else if !flagNoInitialBuild {
		b := idx.Rebuild(ctx)
		logger.Info("initial rebuild started", "build_id", b.ID, "roots", cfg.Roots)
	}

	if cfg.Watch && len(cfg.Roots) > 0 {
		w, err := watcher.New(func(ctx context.Context) error {
			return idx.Rebuild(ctx).Err()
		}, watcher.Options{
			Roots:       cfg.Roots,
			Debounce:    cfg.WatchDebounce,
			MinInterval: cfg.RebuildInterval,
			Match:       sc.Match,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer w.Close()

		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watcher stopped", "error", err)
			}
		}()
		logger.Info("watching sources", "roots", cfg.Roots, "debounce", cfg.WatchDebounce)
	}

	server, err := mcp.NewServer(c, idx, logger)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Let a running build commit before the cache closes underneath it
	if b := idx.LastBuild(); b != nil && !b.Finished() {
		logger.Info("waiting for running build", "build_id", b.ID)
		if _, err := b.Wait(context.Background()); err != nil {
			logger.Warn("build failed during shutdown", "build_id", b.ID, "error", err)
		}
	}

	logger.Info("server stopped")
	return nil
}
