package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/proxysync/internal/objects"
	"github.com/stacklok/proxysync/internal/otel"
	"github.com/stacklok/proxysync/internal/snapshot"
	"github.com/stacklok/proxysync/internal/status"
	"github.com/stacklok/proxysync/internal/sync/reconcile"
	"github.com/stacklok/proxysync/internal/sync/selector"
	"github.com/stacklok/proxysync/internal/sync/store"
	"github.com/stacklok/proxysync/internal/versions"
)

// managerExists guards the one-manager-per-process rule
var managerExists atomic.Bool

// Result contains the outcome of a pull cycle
type Result struct {
	// Version is the configuration version applied after the cycle
	Version int64
	// Applied is true when a newer configuration was reconciled
	Applied bool
	// Skipped is true when the cycle did not reach the shared store
	Skipped bool
	// Primary names the member that served the cycle
	Primary string

	Removed int
	Added   int
	Altered int
}

// Cache persists the applied snapshot locally
type Cache interface {
	Write(ctx context.Context, s *snapshot.Snapshot) error
	Load(ctx context.Context) (*snapshot.Snapshot, bool, error)
}

// Manager synchronizes the node's runtime configuration with its cluster
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/stacklok/proxysync/internal/sync Manager
type Manager interface {
	// LoadCachedConfig reads the locally cached snapshot, if any
	LoadCachedConfig(ctx context.Context) (*snapshot.Snapshot, bool, error)

	// ProcessCachedConfig applies the cached snapshot to the runtime when
	// nothing has been applied yet
	ProcessCachedConfig(ctx context.Context) error

	// Start locks the cluster row and verifies the local version against it
	Start(ctx context.Context) error

	// Commit publishes the live configuration at the next version
	Commit(ctx context.Context) error

	// Rollback abandons a started change
	Rollback(ctx context.Context) error

	// Change runs apply between Start and Commit, rolling back on failure
	Change(ctx context.Context, apply func(ctx context.Context) error) error

	// Sync pulls and applies a newer cluster configuration
	Sync(ctx context.Context) (*Result, error)

	// Status returns a copy of the current sync status
	Status() *status.SyncStatus

	// Current returns a copy of the applied snapshot
	Current() *snapshot.Snapshot

	// Close rolls back any open change, closes the store connection and
	// releases the process-wide manager slot
	Close(ctx context.Context) error
}

// Params holds the collaborators of a manager
type Params struct {
	// ClusterID names the cluster row. Empty disables synchronization.
	ClusterID string
	Selector  selector.Selector
	Store     store.Gateway
	Cache     Cache
	Objects   objects.Table
	// Writer is the software version recorded in committed snapshots
	Writer string
	// Tracer is optional
	Tracer trace.Tracer
}

// defaultManager is the default implementation of Manager
type defaultManager struct {
	mu sync.Mutex

	clusterID  string
	selector   selector.Selector
	store      store.Gateway
	cache      Cache
	table      objects.Table
	reconciler *reconcile.Reconciler
	writer     string
	tracer     trace.Tracer

	current   *snapshot.Snapshot
	status    *status.SyncStatus
	txOpen    bool
	prevPhase status.SyncPhase
	prevMsg   string
	closed    bool
}

var _ Manager = (*defaultManager)(nil)

// NewManager creates the process-wide sync manager. It returns
// ErrManagerExists while a previously created manager is still open.
func NewManager(p Params) (Manager, error) {
	if p.Objects == nil {
		return nil, fmt.Errorf("object table is required")
	}
	if p.ClusterID != "" {
		if p.Selector == nil || p.Store == nil || p.Cache == nil {
			return nil, fmt.Errorf("selector, store and cache are required when a cluster is configured")
		}
	}
	if !managerExists.CompareAndSwap(false, true) {
		return nil, ErrManagerExists
	}

	return &defaultManager{
		clusterID:  p.ClusterID,
		selector:   p.Selector,
		store:      p.Store,
		cache:      p.Cache,
		table:      p.Objects,
		reconciler: reconcile.New(p.Objects),
		writer:     p.Writer,
		tracer:     p.Tracer,
		current:    snapshot.Empty(p.ClusterID),
		status: &status.SyncStatus{
			Phase:     status.SyncPhaseUnsynced,
			ClusterID: p.ClusterID,
		},
	}, nil
}

func (m *defaultManager) disabled() bool {
	return m.clusterID == ""
}

// LoadCachedConfig reads the cached snapshot of this cluster
func (m *defaultManager) LoadCachedConfig(ctx context.Context) (*snapshot.Snapshot, bool, error) {
	if m.disabled() {
		return nil, false, nil
	}
	snap, found, err := m.cache.Load(ctx)
	if err != nil {
		return nil, false, newError(KindIO, err, "failed to load cached configuration")
	}
	return snap, found, nil
}

// ProcessCachedConfig applies the cached snapshot on top of an empty
// runtime. It does nothing once a configuration has been applied.
func (m *defaultManager) ProcessCachedConfig(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disabled() || m.current.Version != 0 {
		return nil
	}

	cached, found, err := m.LoadCachedConfig(ctx)
	if err != nil {
		return err
	}
	if !found {
		slog.Info("No cached configuration found", "cluster", m.clusterID)
		return nil
	}

	res, err := m.reconciler.Process(ctx, m.current, cached)
	if errors.Is(err, reconcile.ErrStaleVersion) {
		slog.Warn("Cached configuration is not newer than the applied one",
			"cluster", m.clusterID,
			"local_version", m.current.Version,
			"cached_version", cached.Version)
		return nil
	}
	if err != nil {
		return newError(KindFatalApply, err, "failed to apply cached configuration version %d", cached.Version)
	}

	m.current = cached
	m.status.Version = cached.Version
	m.status.ObjectCount = cached.Len()
	m.status.Message = fmt.Sprintf("Loaded cached configuration version %d", cached.Version)

	slog.Info("Applied cached configuration",
		"cluster", m.clusterID,
		"local_version", cached.Version,
		"added", len(res.Added),
		"altered", len(res.Altered))
	return nil
}

// Start locks the cluster row and verifies the local version against it.
// On success the transaction stays open until Commit or Rollback.
func (m *defaultManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start(ctx)
}

func (m *defaultManager) start(ctx context.Context) (retErr error) {
	if m.disabled() {
		return nil
	}
	if m.txOpen {
		return newError(KindConflict, nil, "a configuration change is already in progress")
	}

	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.Start",
		trace.WithAttributes(spanAttrs(m.clusterID, m.current.Version)...))
	defer func() {
		otel.RecordError(span, retErr)
		span.End()
	}()

	m.prevPhase, m.prevMsg = m.status.Phase, m.status.Message
	m.beginAttempt(status.SyncPhaseVerifying, "Verifying local configuration against the shared store")

	if _, err := m.connect(ctx); err != nil {
		m.fail(err)
		return err
	}

	row, err := m.store.BeginReadForUpdate(ctx, m.clusterID)
	if err != nil {
		syncErr := storeError(err, "failed to read stored configuration version")
		m.fail(syncErr)
		return syncErr
	}
	span.SetAttributes(otel.AttrStoredVersion.Int64(row.Version))

	if row.Exists && row.Version != m.current.Version {
		m.rollbackStore(ctx)
		slog.Warn("Local configuration conflicts with the shared store",
			"cluster", m.clusterID,
			"local_version", m.current.Version,
			"stored_version", row.Version)
		syncErr := newError(KindConflict, nil,
			"stored version %d differs from local version %d", row.Version, m.current.Version)
		m.fail(syncErr)
		return syncErr
	}

	m.txOpen = true
	slog.Debug("Configuration change started",
		"cluster", m.clusterID,
		"local_version", m.current.Version,
		"stored_version", row.Version,
		"row_exists", row.Exists)
	return nil
}

// Commit captures the live configuration and publishes it at version+1
func (m *defaultManager) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commit(ctx)
}

func (m *defaultManager) commit(ctx context.Context) (retErr error) {
	if m.disabled() {
		return nil
	}
	if !m.txOpen {
		return newError(KindConflict, store.ErrNoTransaction, "commit without a verified change")
	}

	next := m.current.Version + 1
	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.Commit",
		trace.WithAttributes(spanAttrs(m.clusterID, next)...))
	defer func() {
		otel.RecordError(span, retErr)
		span.End()
	}()

	// a failed commit leaves the node as it was before Start
	abort := func(err *Error) error {
		m.rollbackStore(ctx)
		m.txOpen = false
		m.restorePhase()
		slog.Warn("Configuration commit abandoned",
			"cluster", m.clusterID,
			"local_version", m.current.Version,
			"error", err)
		return err
	}

	live, err := m.table.ListAll(ctx)
	if err != nil {
		return abort(newError(KindFatalApply, err, "failed to list runtime objects"))
	}
	snap, err := snapshot.Capture(m.clusterID, next, live)
	if err != nil {
		return abort(newError(KindFatalApply, err, "failed to capture runtime configuration"))
	}
	snap.Writer = m.writer
	payload, err := snapshot.Encode(snap)
	if err != nil {
		return abort(newError(KindFatalApply, err, "failed to encode configuration"))
	}

	ok, err := m.store.CommitWithVersion(ctx, m.clusterID, m.current.Version, payload)
	if err != nil {
		return abort(storeError(err, "failed to write configuration version %d", next))
	}
	if !ok {
		slog.Warn("Lost configuration write race",
			"cluster", m.clusterID,
			"local_version", m.current.Version,
			"stored_version", next)
		return abort(newError(KindConflict, nil,
			"configuration version %d was written by another node", next))
	}
	m.txOpen = false

	m.writeCache(ctx, snap)
	m.current = snap
	m.succeed(fmt.Sprintf("Committed configuration version %d", next), snap)

	slog.Info("Configuration committed",
		"cluster", m.clusterID,
		"local_version", next,
		"objects", snap.Len())
	return nil
}

// Rollback abandons the open change, restoring the phase held before Start
func (m *defaultManager) Rollback(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disabled() || !m.txOpen {
		return nil
	}
	m.txOpen = false
	m.restorePhase()
	if err := m.store.Rollback(ctx); err != nil {
		return storeError(err, "failed to roll back configuration change")
	}
	return nil
}

// Change verifies, applies and commits a local change while holding the
// manager lock, so no pull cycle can interleave
func (m *defaultManager) Change(ctx context.Context, apply func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disabled() {
		return apply(ctx)
	}

	if err := m.start(ctx); err != nil {
		return err
	}
	if err := apply(ctx); err != nil {
		m.rollbackStore(ctx)
		m.txOpen = false
		m.restorePhase()
		return err
	}
	return m.commit(ctx)
}

// Sync pulls the stored configuration when it is newer than the applied one
func (m *defaultManager) Sync(ctx context.Context) (_ *Result, retErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disabled() {
		return &Result{Skipped: true}, nil
	}
	if m.txOpen {
		slog.Debug("Configuration change in progress, skipping pull", "cluster", m.clusterID)
		return &Result{Version: m.current.Version, Skipped: true}, nil
	}

	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.Sync",
		trace.WithAttributes(spanAttrs(m.clusterID, m.current.Version)...))
	defer func() {
		if retErr != nil {
			span.SetAttributes(otel.AttrErrorKind.String(string(KindOf(retErr))))
		}
		otel.RecordError(span, retErr)
		span.End()
	}()

	m.beginAttempt(status.SyncPhaseVerifying, "Checking the shared store for a newer configuration")

	primary, err := m.connect(ctx)
	if err != nil {
		m.fail(err)
		return nil, err
	}
	span.SetAttributes(otel.AttrPrimary.String(primary))
	result := &Result{Version: m.current.Version, Primary: primary}

	payload, stored, found, err := m.store.ReadNewer(ctx, m.clusterID, m.current.Version)
	if err != nil {
		syncErr := storeError(err, "failed to read stored configuration")
		m.fail(syncErr)
		return nil, syncErr
	}
	if !found {
		m.succeed("Configuration is up to date", m.current)
		return result, nil
	}
	span.SetAttributes(otel.AttrStoredVersion.Int64(stored))

	next, err := snapshot.Decode(payload)
	if err != nil {
		syncErr := newError(KindFatalApply, err, "failed to decode stored configuration version %d", stored)
		m.fail(syncErr)
		return nil, syncErr
	}
	if next.ClusterID != m.clusterID || next.Version != stored {
		slog.Warn("Stored configuration document disagrees with its row",
			"cluster", m.clusterID,
			"document_cluster", next.ClusterID,
			"stored_version", stored,
			"document_version", next.Version)
		next.ClusterID = m.clusterID
		next.Version = stored
	}
	if versions.WrittenByNewer(next.Writer, m.writer) {
		slog.Warn("Configuration was written by a newer release",
			"cluster", m.clusterID,
			"stored_version", stored,
			"writer", next.Writer,
			"running", m.writer)
	}

	res, err := m.reconciler.Process(ctx, m.current, next)
	if errors.Is(err, reconcile.ErrStaleVersion) {
		slog.Warn("Ignoring stale configuration",
			"cluster", m.clusterID,
			"local_version", m.current.Version,
			"stored_version", stored)
		m.succeed("Configuration is up to date", m.current)
		return result, nil
	}
	if err != nil {
		syncErr := newError(KindFatalApply, err, "failed to apply configuration version %d", stored)
		var applyErr *reconcile.ApplyError
		if errors.As(err, &applyErr) {
			span.SetAttributes(
				otel.AttrObjectType.String(applyErr.Type.String()),
				otel.AttrObjectName.String(applyErr.Name))
		}
		slog.Error("Failed to apply configuration",
			"cluster", m.clusterID,
			"local_version", m.current.Version,
			"stored_version", stored,
			"error", err)
		m.fail(syncErr)
		return nil, syncErr
	}

	m.writeCache(ctx, next)
	m.current = next
	m.succeed(fmt.Sprintf("Applied configuration version %d", stored), next)

	slog.Info("Applied cluster configuration",
		"cluster", m.clusterID,
		"local_version", stored,
		"primary", primary,
		"removed", len(res.Removed),
		"added", len(res.Added),
		"altered", len(res.Altered))

	result.Version = stored
	result.Applied = true
	result.Removed = len(res.Removed)
	result.Added = len(res.Added)
	result.Altered = len(res.Altered)
	return result, nil
}

// Status returns a copy of the current sync status
func (m *defaultManager) Status() *status.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.Copy()
}

// Current returns a copy of the applied snapshot
func (m *defaultManager) Current() *snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Close releases the store connection and the manager slot
func (m *defaultManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.txOpen = false
	defer managerExists.Store(false)

	if m.store == nil {
		return nil
	}
	if err := m.store.Close(ctx); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

// connect selects the primary and makes sure the store talks to it
func (m *defaultManager) connect(ctx context.Context) (string, error) {
	primary, err := m.selector.Primary(ctx)
	if err != nil {
		return "", newError(KindConnection, err, "failed to select primary for cluster %s", m.clusterID)
	}
	if err := m.store.Connect(ctx, primary); err != nil {
		return "", storeError(err, "failed to connect to %s", primary)
	}
	name := primary.Name
	if name == "" {
		name = primary.Address()
	}
	m.status.Primary = name
	return name, nil
}

func (m *defaultManager) rollbackStore(ctx context.Context) {
	if err := m.store.Rollback(ctx); err != nil {
		slog.Warn("Failed to roll back configuration change", "cluster", m.clusterID, "error", err)
	}
}

// writeCache refreshes the local cache. A failure is logged only: the
// shared store already holds the configuration.
func (m *defaultManager) writeCache(ctx context.Context, snap *snapshot.Snapshot) {
	if err := m.cache.Write(ctx, snap); err != nil {
		slog.Error("Failed to write configuration cache",
			"cluster", m.clusterID,
			"local_version", snap.Version,
			"error", newError(KindIO, err, "cache write failed"))
	}
}

func (m *defaultManager) beginAttempt(phase status.SyncPhase, msg string) {
	now := time.Now()
	m.status.Phase = phase
	m.status.Message = msg
	m.status.LastAttempt = &now
}

func (m *defaultManager) restorePhase() {
	m.status.Phase = m.prevPhase
	m.status.Message = m.prevMsg
}

func (m *defaultManager) fail(err error) {
	m.status.Phase = status.SyncPhaseError
	m.status.Message = err.Error()
	m.status.AttemptCount++
}

func (m *defaultManager) succeed(msg string, snap *snapshot.Snapshot) {
	now := time.Now()
	m.status.Phase = status.SyncPhaseSynced
	m.status.Message = msg
	m.status.Version = snap.Version
	m.status.ObjectCount = snap.Len()
	m.status.AttemptCount = 0
	m.status.LastSyncTime = &now
}

// storeError classifies a gateway failure
func storeError(err error, format string, args ...any) *Error {
	kind := KindConnection
	if errors.Is(err, store.ErrSchema) {
		kind = KindSchema
	}
	return newError(kind, err, format, args...)
}

func spanAttrs(clusterID string, version int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		otel.AttrClusterID.String(clusterID),
		otel.AttrLocalVersion.Int64(version),
	}
}
