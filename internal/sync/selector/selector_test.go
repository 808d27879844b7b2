package selector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/proxysync/database"
	"github.com/stacklok/proxysync/internal/config"
	"github.com/stacklok/proxysync/internal/db"
)

type staticSource struct {
	members []Member
	err     error
	cluster string
}

func (s *staticSource) Members(_ context.Context, clusterID string) ([]Member, error) {
	s.cluster = clusterID
	return s.members, s.err
}

func TestMonitorSelector_Primary(t *testing.T) {
	t.Parallel()

	db1 := db.Endpoint{Name: "db1", Host: "10.0.0.1"}
	db2 := db.Endpoint{Name: "db2", Host: "10.0.0.2"}

	tests := []struct {
		name     string
		source   *staticSource
		expected db.Endpoint
		wantErr  error
	}{
		{
			name: "picks the primary",
			source: &staticSource{members: []Member{
				{Endpoint: db1},
				{Endpoint: db2, Primary: true},
			}},
			expected: db2,
		},
		{
			name: "no primary",
			source: &staticSource{members: []Member{
				{Endpoint: db1},
				{Endpoint: db2, Err: errors.New("refused")},
			}},
			wantErr: ErrNoPrimary,
		},
		{
			name:    "empty cluster",
			source:  &staticSource{},
			wantErr: ErrNoPrimary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewMonitorSelector(tt.source, "prod")
			ep, err := s.Primary(context.Background())
			assert.Equal(t, "prod", tt.source.cluster)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ep)
		})
	}
}

func TestMonitorSelector_SourceError(t *testing.T) {
	t.Parallel()

	s := NewMonitorSelector(&staticSource{err: errors.New("monitor down")}, "prod")
	_, err := s.Primary(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitor down")
	assert.NotErrorIs(t, err, ErrNoPrimary)
}

func TestProber_Members(t *testing.T) {
	t.Parallel()

	testDB := database.SetupTestDB(t)

	pwFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(pwFile, []byte(database.TestDBPassword), 0600))

	dialer, err := db.NewDialer(context.Background(), &config.DatabaseConfig{
		User:           database.TestDBUser,
		Database:       database.TestDBName,
		PasswordFile:   pwFile,
		SSLMode:        "disable",
		ConnectTimeout: "1s",
	})
	require.NoError(t, err)

	unreachable := db.Endpoint{Name: "gone", Host: "127.0.0.1", Port: 1}
	live := db.Endpoint{Name: "live", Host: testDB.Host, Port: testDB.Port}

	prober := NewProber(dialer, []db.Endpoint{unreachable, live}, WithProbeTimeout(2*time.Second))

	members, err := prober.Members(context.Background(), "prod")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Error(t, members[0].Err)
	assert.False(t, members[0].Primary)
	assert.NoError(t, members[1].Err)
	assert.True(t, members[1].Primary)

	ep, err := NewMonitorSelector(prober, "prod").Primary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, live, ep)
}
