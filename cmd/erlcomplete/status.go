package main

import (
	"context"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache location, size and contents",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	status, err := c.Status(ctx)
	if err != nil {
		return err
	}
	if flagFormat == formatJSON {
		return writeJSON(cmd.OutOrStdout(), status)
	}
	formatStatusText(cmd.OutOrStdout(), status)
	return nil
}
