package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

const (
	// TestDBName is the database created in the test container
	TestDBName = "testdb"
	// TestDBUser is the user of the test container
	TestDBUser = "testuser"
	// TestDBPassword is the password of the test container
	TestDBPassword = "testpass"
)

// TestDB describes a running Postgres test container
type TestDB struct {
	ConnString string
	Host       string
	Port       int
}

// SetupTestDB starts a Postgres container using testcontainers. The
// container is removed when the test finishes. Tests calling it are skipped
// under -short.
func SetupTestDB(t *testing.T) TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(TestDBName),
		postgres.WithUsername(TestDBUser),
		postgres.WithPassword(TestDBPassword),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	tc.CleanupContainer(t, postgresContainer)
	require.NoError(t, err)

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	host, err := postgresContainer.Host(ctx)
	require.NoError(t, err)

	mapped, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return TestDB{
		ConnString: connStr,
		Host:       host,
		Port:       mapped.Int(),
	}
}
