package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/proxysync/internal/snapshot"
	"github.com/stacklok/proxysync/internal/sync/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the local configuration cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the cached configuration document",
		Long: `Print the configuration document the node would apply at startup, as stored
in the data directory. Nothing is printed to stdout when no cache exists.`,
		RunE: runCacheShow,
	}
	show.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := show.MarkFlagRequired("config"); err != nil {
		panic(err)
	}

	cmd.AddCommand(show)
	return cmd
}

func runCacheShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c := cache.New(cfg.DataDir, cfg.ClusterID)
	snap, found, err := c.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache %s: %w", c.Path(), err)
	}
	if !found {
		_, err = fmt.Fprintf(cmd.ErrOrStderr(), "no cached configuration at %s\n", c.Path())
		return err
	}

	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
