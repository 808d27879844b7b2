package app

import (
	"github.com/stacklok/proxysync/internal/objects"
	pkgsync "github.com/stacklok/proxysync/internal/sync"
	"github.com/stacklok/proxysync/internal/sync/coordinator"
	"github.com/stacklok/proxysync/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator paces background pull cycles
	SyncCoordinator coordinator.Coordinator

	// SyncManager owns the node's cluster configuration state
	SyncManager pkgsync.Manager

	// Objects holds the live proxy objects
	Objects *objects.Runtime

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry
}
