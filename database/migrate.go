package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

// ConfigTable is the table holding one configuration row per cluster
const ConfigTable = "proxysync_config"

//go:embed migrations/000001_init.up.sql
var initMigrationUp string

//go:embed migrations/000001_init.down.sql
var initMigrationDown string

// Execer is satisfied by *pgx.Conn, pgx.Tx and *pgxpool.Pool
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the configuration table if it does not exist.
// It is safe to call concurrently from several nodes.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, initMigrationUp); err != nil {
		return fmt.Errorf("failed to create %s: %w", ConfigTable, err)
	}
	return nil
}

// DropSchema removes the configuration table
func DropSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, initMigrationDown); err != nil {
		return fmt.Errorf("failed to drop %s: %w", ConfigTable, err)
	}
	return nil
}

// MigrateUp applies all pending migrations
func MigrateUp(m Migrator) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// MigrateDown reverts the given number of migrations
func MigrateDown(m Migrator, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("number of steps must be positive, got %d", steps)
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to revert migrations: %w", err)
	}
	return nil
}
