package app

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/stacklok/proxysync/database"
)

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the shared store schema down by reverting migrations.
WARNING: This operation drops the stored cluster configurations.

Examples:
  # Migrate down by 1 step
  proxysync migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way
  proxysync migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	}
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps > math.MaxInt32 {
		return fmt.Errorf("number of steps exceeds maximum allowed value")
	}
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}

	m, target, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	prompt := fmt.Sprintf("WARNING: This will migrate %s down ALL steps and drop every stored configuration. Continue?", target)
	if numSteps > 0 {
		prompt = fmt.Sprintf("WARNING: This will migrate %s down %d step(s) and may drop stored configurations. Continue?",
			target, numSteps)
	}
	if !yes && !confirm(cmd, prompt) {
		return fmt.Errorf("migration cancelled by user")
	}

	if numSteps == 0 {
		slog.Warn("Migrating down all steps", "member", target.String())
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
	} else {
		slog.Info("Migrating down", "member", target.String(), "steps", numSteps)
		if err := database.MigrateDown(m, int(numSteps)); err != nil { // #nosec G115 -- bounded above
			return err
		}
	}

	slog.Info("Migration completed successfully")
	displayMigrationVersion(m)
	return nil
}
