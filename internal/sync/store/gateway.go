// Package store is the gateway to the shared configuration table. It owns a
// single connection to the cluster primary and implements the
// read-for-update / compare-and-swap protocol that arbitrates concurrent
// writers.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stacklok/proxysync/database"
	"github.com/stacklok/proxysync/internal/db"
)

const (
	pgUndefinedTable  = "42P01"
	pgUniqueViolation = "23505"
)

const (
	selectForUpdateSQL = `SELECT version FROM ` + database.ConfigTable + ` WHERE cluster = $1 FOR UPDATE`
	selectNewerSQL     = `SELECT config, version FROM ` + database.ConfigTable + ` WHERE version > $1 AND cluster = $2`
	insertSQL          = `INSERT INTO ` + database.ConfigTable + ` (cluster, version, config) VALUES ($1, $2, $3)`
	updateSQL          = `UPDATE ` + database.ConfigTable +
		` SET version = version + 1, config = $1 WHERE version = $2 AND cluster = $3`
)

var (
	// ErrConnection marks failures to reach or talk to the primary
	ErrConnection = errors.New("store connection failure")
	// ErrSchema marks failures to create or access the configuration table
	ErrSchema = errors.New("store schema failure")
	// ErrNotConnected is returned when an operation runs before Connect
	ErrNotConnected = errors.New("store is not connected")
	// ErrNoTransaction is returned by CommitWithVersion without an open transaction
	ErrNoTransaction = errors.New("no open transaction")
)

// Row describes what BeginReadForUpdate found for a cluster
type Row struct {
	Exists  bool
	Version int64
}

// Gateway is the shared store contract used by the sync manager.
// Implementations are not safe for concurrent use.
//
//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks github.com/stacklok/proxysync/internal/sync/store Gateway
type Gateway interface {
	// Connect ensures a live connection to the endpoint, replacing a
	// connection to a different or unreachable endpoint
	Connect(ctx context.Context, endpoint db.Endpoint) error

	// EnsureSchema creates the configuration table if it is missing
	EnsureSchema(ctx context.Context) error

	// BeginReadForUpdate opens a transaction and locks the cluster row
	BeginReadForUpdate(ctx context.Context, clusterID string) (Row, error)

	// ReadNewer returns the stored payload if its version exceeds version
	ReadNewer(ctx context.Context, clusterID string, version int64) (payload []byte, stored int64, found bool, err error)

	// CommitWithVersion writes the payload if the stored version still
	// equals expected. A lost race returns false without an error.
	CommitWithVersion(ctx context.Context, clusterID string, expected int64, payload []byte) (bool, error)

	// Rollback aborts the open transaction, if any
	Rollback(ctx context.Context) error

	// Close releases the connection
	Close(ctx context.Context) error
}

// PostgresGateway implements Gateway over a single pgx connection
type PostgresGateway struct {
	dialer   db.Dialer
	conn     *pgx.Conn
	endpoint db.Endpoint

	tx        pgx.Tx
	rowExists bool
}

var _ Gateway = (*PostgresGateway)(nil)

// NewPostgresGateway creates a gateway that dials members with dialer
func NewPostgresGateway(dialer db.Dialer) *PostgresGateway {
	return &PostgresGateway{dialer: dialer}
}

// Connect ensures a live connection to the endpoint
func (g *PostgresGateway) Connect(ctx context.Context, endpoint db.Endpoint) error {
	if g.conn != nil && g.endpoint == endpoint {
		if err := g.conn.Ping(ctx); err == nil {
			return nil
		}
		slog.Warn("Lost connection to primary, reconnecting", "member", endpoint.String())
	} else if g.conn != nil {
		slog.Info("Primary changed, reconnecting",
			"previous", g.endpoint.String(),
			"current", endpoint.String())
	}

	g.closeConn(ctx)

	conn, err := g.dialer.Dial(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	g.conn = conn
	g.endpoint = endpoint
	return nil
}

// EnsureSchema creates the configuration table if it is missing
func (g *PostgresGateway) EnsureSchema(ctx context.Context) error {
	if g.conn == nil {
		return ErrNotConnected
	}
	if err := database.EnsureSchema(ctx, g.conn); err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}
	return nil
}

// BeginReadForUpdate opens a transaction and locks the cluster row. A
// missing table is created once and the read retried.
func (g *PostgresGateway) BeginReadForUpdate(ctx context.Context, clusterID string) (Row, error) {
	if g.conn == nil {
		return Row{}, ErrNotConnected
	}
	if err := g.Rollback(ctx); err != nil {
		return Row{}, err
	}

	row, err := g.beginAndRead(ctx, clusterID)
	if isPgError(err, pgUndefinedTable) {
		slog.Info("Configuration table is missing, creating it", "table", database.ConfigTable)
		if err := g.EnsureSchema(ctx); err != nil {
			return Row{}, err
		}
		row, err = g.beginAndRead(ctx, clusterID)
		if err != nil {
			return Row{}, fmt.Errorf("%w: read after creating table: %w", ErrSchema, err)
		}
	}
	if err != nil {
		return Row{}, g.classify("failed to read configuration version", err)
	}

	return row, nil
}

func (g *PostgresGateway) beginAndRead(ctx context.Context, clusterID string) (Row, error) {
	tx, err := g.conn.Begin(ctx)
	if err != nil {
		return Row{}, err
	}

	var row Row
	err = tx.QueryRow(ctx, selectForUpdateSQL, clusterID).Scan(&row.Version)
	switch {
	case err == nil:
		row.Exists = true
	case errors.Is(err, pgx.ErrNoRows):
	default:
		_ = tx.Rollback(ctx)
		return Row{}, err
	}

	g.tx = tx
	g.rowExists = row.Exists
	return row, nil
}

// ReadNewer returns the stored payload if its version exceeds version.
// An absent table reads as no newer configuration.
func (g *PostgresGateway) ReadNewer(
	ctx context.Context, clusterID string, version int64,
) ([]byte, int64, bool, error) {
	if g.conn == nil {
		return nil, 0, false, ErrNotConnected
	}

	var (
		payload []byte
		stored  int64
	)
	err := g.conn.QueryRow(ctx, selectNewerSQL, version, clusterID).Scan(&payload, &stored)
	switch {
	case err == nil:
		return payload, stored, true, nil
	case errors.Is(err, pgx.ErrNoRows), isPgError(err, pgUndefinedTable):
		return nil, 0, false, nil
	default:
		return nil, 0, false, g.classify("failed to read newer configuration", err)
	}
}

// CommitWithVersion writes the payload under compare-and-swap and commits.
// It inserts version expected+1 when BeginReadForUpdate found no row, and
// otherwise bumps the version only if it still equals expected.
func (g *PostgresGateway) CommitWithVersion(
	ctx context.Context, clusterID string, expected int64, payload []byte,
) (bool, error) {
	if g.tx == nil {
		return false, ErrNoTransaction
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	if g.rowExists {
		tag, err = g.tx.Exec(ctx, updateSQL, payload, expected, clusterID)
	} else {
		tag, err = g.tx.Exec(ctx, insertSQL, clusterID, expected+1, payload)
	}
	if err != nil {
		_ = g.Rollback(ctx)
		if isPgError(err, pgUniqueViolation) {
			return false, nil
		}
		return false, g.classify("failed to write configuration", err)
	}

	if tag.RowsAffected() == 0 {
		_ = g.Rollback(ctx)
		return false, nil
	}

	tx := g.tx
	g.tx = nil
	if err := tx.Commit(ctx); err != nil {
		if isPgError(err, pgUniqueViolation) {
			return false, nil
		}
		return false, g.classify("failed to commit configuration", err)
	}

	return true, nil
}

// Rollback aborts the open transaction. It is a no-op without one.
func (g *PostgresGateway) Rollback(ctx context.Context) error {
	if g.tx == nil {
		return nil
	}
	tx := g.tx
	g.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return g.classify("failed to roll back transaction", err)
	}
	return nil
}

// Close rolls back any open transaction and closes the connection
func (g *PostgresGateway) Close(ctx context.Context) error {
	rbErr := g.Rollback(ctx)
	g.closeConn(ctx)
	return rbErr
}

func (g *PostgresGateway) closeConn(ctx context.Context) {
	g.tx = nil
	if g.conn == nil {
		return
	}
	if err := g.conn.Close(ctx); err != nil {
		slog.Debug("Error closing store connection", "error", err)
	}
	g.conn = nil
}

// classify wraps err as a connection error when the connection is gone,
// and as a plain query failure otherwise
func (g *PostgresGateway) classify(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUndefinedTable {
			return fmt.Errorf("%w: %s: %w", ErrSchema, msg, err)
		}
		return fmt.Errorf("%s: %w", msg, err)
	}
	if g.conn == nil || g.conn.IsClosed() {
		return fmt.Errorf("%w: %s: %w", ErrConnection, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
