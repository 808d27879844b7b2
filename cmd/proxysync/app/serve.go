package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	proxyapp "github.com/stacklok/proxysync/internal/app"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon and its status API",
		Long: `Run the sync daemon. The node applies its cached configuration, then pulls
newer cluster configurations from the primary member on every interval.

The configuration file (--config) names the cluster, the data directory,
the database members and the sync policy. Without a clusterId the node runs
standalone and only serves its status API.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}

	cmd.Flags().String("address", "", "Address to listen on (overrides http.address)")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := v.BindPFlag("address", cmd.Flags().Lookup("address")); err != nil {
		slog.Error("Error binding address flag", "error", err)
	}
	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}

	return cmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	slog.Info("Loaded configuration",
		"cluster", cfg.ClusterID,
		"data_dir", cfg.DataDir,
		"members", len(cfg.Members),
		"interval", cfg.GetSyncInterval())

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	opts := []proxyapp.ProxySyncAppOptions{proxyapp.WithConfig(cfg)}
	if addr := v.GetString("address"); addr != "" {
		opts = append(opts, proxyapp.WithAddress(addr))
	}

	proxySyncApp, err := proxyapp.NewProxySyncApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- proxySyncApp.Start()
	}()

	select {
	case err := <-errCh:
		if stopErr := proxySyncApp.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Shutdown failed", "error", stopErr)
		}
		return err
	case <-ctx.Done():
	}

	return proxySyncApp.Stop(defaultGracefulTimeout)
}
