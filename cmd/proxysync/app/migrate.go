package app

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacklok/proxysync/database"
	"github.com/stacklok/proxysync/internal/config"
	"github.com/stacklok/proxysync/internal/db"
	"github.com/stacklok/proxysync/internal/sync/selector"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long: `Database migration tool for the shared configuration store. Migrations run
against the cluster's primary member unless --member names another one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate down (0 = all)")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")
	cmd.PersistentFlags().String("member", "", "Name of the member to migrate (default: the primary)")
	if err := cmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(err)
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	return cmd
}

// setupMigration loads the configuration, picks the target member and
// opens a migrator against it
func setupMigration(cmd *cobra.Command) (database.Migrator, db.Endpoint, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, db.Endpoint{}, err
	}
	if cfg.Database == nil {
		return nil, db.Endpoint{}, fmt.Errorf("database configuration is required")
	}
	if len(cfg.Members) == 0 {
		return nil, db.Endpoint{}, fmt.Errorf("at least one member must be configured")
	}

	dialer, err := db.NewDialer(ctx, cfg.Database)
	if err != nil {
		return nil, db.Endpoint{}, fmt.Errorf("failed to create database dialer: %w", err)
	}

	member, err := cmd.Flags().GetString("member")
	if err != nil {
		return nil, db.Endpoint{}, fmt.Errorf("failed to get member flag: %w", err)
	}
	target, err := migrationTarget(ctx, cfg, dialer, member)
	if err != nil {
		return nil, db.Endpoint{}, err
	}

	connString, err := dialer.ConnString(ctx, target)
	if err != nil {
		return nil, db.Endpoint{}, fmt.Errorf("failed to build connection string: %w", err)
	}

	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return nil, db.Endpoint{}, err
	}
	return m, target, nil
}

// migrationTarget returns the named member, or the primary when no name is given
func migrationTarget(ctx context.Context, cfg *config.Config, dialer db.Dialer, name string) (db.Endpoint, error) {
	members := make([]db.Endpoint, 0, len(cfg.Members))
	for _, m := range cfg.Members {
		ep := db.EndpointFromMember(m)
		if name != "" && m.Name == name {
			return ep, nil
		}
		members = append(members, ep)
	}
	if name != "" {
		return db.Endpoint{}, fmt.Errorf("member %q is not configured", name)
	}

	prober := selector.NewProber(dialer, members, selector.WithProbeTimeout(cfg.Database.GetConnectTimeout()))
	primary, err := selector.NewMonitorSelector(prober, cfg.ClusterID).Primary(ctx)
	if err != nil {
		return db.Endpoint{}, fmt.Errorf("failed to find the primary member: %w", err)
	}
	return primary, nil
}

func closeMigrator(m database.Migrator) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		slog.Warn("Error closing migration source", "error", srcErr)
	}
	if dbErr != nil {
		slog.Warn("Error closing migration database", "error", dbErr)
	}
}

// confirm asks a yes/no question on the command's input
func confirm(cmd *cobra.Command, prompt string) bool {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (yes/no): ", prompt)
	response, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "yes" || response == "y"
}

// displayMigrationVersion logs the schema version after a migration
func displayMigrationVersion(m database.Migrator) {
	version, dirty, err := m.Version()
	if err != nil {
		slog.Info("No migration applied", "reason", err)
		return
	}
	if dirty {
		slog.Warn("Database is in a dirty state, manual intervention may be required", "version", version)
		return
	}
	slog.Info("Current migration version", "version", version)
}
