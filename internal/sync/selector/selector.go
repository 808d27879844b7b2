// Package selector resolves which cluster member currently hosts the
// writable shared store.
package selector

import (
	"context"
	"errors"
	"fmt"

	"github.com/stacklok/proxysync/internal/db"
)

// ErrNoPrimary is returned when no member of the cluster is a write-capable primary
var ErrNoPrimary = errors.New("no primary member available")

// Selector resolves the current primary. It is consulted on every cycle
// because the primary may change between cycles.
//
//go:generate mockgen -destination=mocks/mock_selector.go -package=mocks github.com/stacklok/proxysync/internal/sync/selector Selector
type Selector interface {
	Primary(ctx context.Context) (db.Endpoint, error)
}

// Member is one monitored backend and its current role
type Member struct {
	Endpoint db.Endpoint
	Primary  bool
	// Err is set when the member could not be queried
	Err error
}

// MemberSource reports the members monitored for a cluster
type MemberSource interface {
	Members(ctx context.Context, clusterID string) ([]Member, error)
}

// MonitorSelector picks the primary among the members of a MemberSource
type MonitorSelector struct {
	source    MemberSource
	clusterID string
}

// NewMonitorSelector creates a selector over the members monitored for clusterID
func NewMonitorSelector(source MemberSource, clusterID string) *MonitorSelector {
	return &MonitorSelector{source: source, clusterID: clusterID}
}

// Primary returns the first member reporting itself as primary
func (s *MonitorSelector) Primary(ctx context.Context) (db.Endpoint, error) {
	members, err := s.source.Members(ctx, s.clusterID)
	if err != nil {
		return db.Endpoint{}, fmt.Errorf("failed to list members of cluster %q: %w", s.clusterID, err)
	}

	for _, m := range members {
		if m.Primary {
			return m.Endpoint, nil
		}
	}

	return db.Endpoint{}, fmt.Errorf("%w in cluster %q (%d members)", ErrNoPrimary, s.clusterID, len(members))
}
