package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/proxysync/database"
)

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply all pending database migrations to bring the shared store schema up to date.
The connection parameters are read from the config file.`,
		RunE: runMigrateUp,
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}

	m, target, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if !yes && !confirm(cmd, fmt.Sprintf("About to apply migrations to %s. Continue?", target)) {
		slog.Info("Migration cancelled by user")
		return nil
	}

	slog.Info("Applying database migrations", "member", target.String())
	if err := database.MigrateUp(m); err != nil {
		return err
	}

	displayMigrationVersion(m)
	return nil
}
