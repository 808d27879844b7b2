package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/proxysync/internal/config"
	"github.com/stacklok/proxysync/internal/otel"
	"github.com/stacklok/proxysync/internal/status"
	pkgsync "github.com/stacklok/proxysync/internal/sync"
	"github.com/stacklok/proxysync/internal/telemetry"
)

// ErrAlreadyStarted is returned by Start on a coordinator that was started before
var ErrAlreadyStarted = errors.New("coordinator already started")

// Coordinator manages background synchronization scheduling and execution
type Coordinator interface {
	// Start applies the cached configuration, then runs sync cycles until
	// the context is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator and waits for the running cycle
	Stop() error

	// Trigger requests an immediate cycle. Requests made while a cycle is
	// pending are coalesced.
	Trigger()
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager          pkgsync.Manager
	clusterID        string
	enabled          bool
	interval         time.Duration
	statementTimeout time.Duration

	// Lifecycle management
	mu         sync.Mutex
	started    bool
	cancelFunc context.CancelFunc
	done       chan struct{}
	trigger    chan struct{}

	retry             *backoff.ExponentialBackOff
	statusPersistence status.StatusPersistence

	// Observability
	syncMetrics   *telemetry.SyncMetrics
	configMetrics *telemetry.ConfigMetrics
	tracer        trace.Tracer
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.syncMetrics = metrics
	}
}

// WithConfigMetrics sets the applied configuration metrics for the coordinator
func WithConfigMetrics(metrics *telemetry.ConfigMetrics) Option {
	return func(c *defaultCoordinator) {
		c.configMetrics = metrics
	}
}

// WithStatusPersistence saves the sync status after every cycle
func WithStatusPersistence(p status.StatusPersistence) Option {
	return func(c *defaultCoordinator) {
		c.statusPersistence = p
	}
}

// WithTracer sets the tracer used for cycle spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *defaultCoordinator) {
		c.tracer = tracer
	}
}

// New creates a new coordinator with injected dependencies
func New(manager pkgsync.Manager, cfg *config.Config, opts ...Option) Coordinator {
	interval := cfg.GetSyncInterval()
	c := &defaultCoordinator{
		manager:          manager,
		clusterID:        cfg.ClusterID,
		enabled:          cfg.SyncEnabled(),
		interval:         interval,
		statementTimeout: cfg.GetStatementTimeout(),
		done:             make(chan struct{}),
		trigger:          make(chan struct{}, 1),
		retry:            newRetryBackOff(interval),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins background sync coordination. A coordinator runs once.
func (c *defaultCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Background sync coordinator shutting down")
	}()

	if !c.enabled {
		slog.Info("No cluster configured, synchronization disabled")
		return nil
	}

	slog.Info("Starting background sync coordinator",
		"cluster", c.clusterID,
		"interval", c.interval,
		"statement_timeout", c.statementTimeout)

	if err := c.manager.ProcessCachedConfig(coordCtx); err != nil {
		slog.Error("Failed to apply cached configuration", "cluster", c.clusterID, "error", err)
	}

	err := c.runCycle(coordCtx)
	timer := time.NewTimer(c.nextDelay(err))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
		case <-c.trigger:
			timer.Stop()
			slog.Debug("Sync cycle triggered", "cluster", c.clusterID)
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}

		err = c.runCycle(coordCtx)
		timer.Reset(c.nextDelay(err))
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		<-c.done
	}
	return nil
}

// Trigger requests an immediate cycle without blocking
func (c *defaultCoordinator) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// nextDelay returns the jittered interval after a success and the next
// backoff step after a failure
func (c *defaultCoordinator) nextDelay(lastErr error) time.Duration {
	if lastErr != nil {
		return min(c.retry.NextBackOff(), c.interval)
	}
	c.retry.Reset()
	return jitter(c.interval)
}

// runCycle runs one sync cycle and records its outcome
func (c *defaultCoordinator) runCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	logger := slog.With("cluster", c.clusterID, "cycle_id", cycleID)

	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.cycle",
		trace.WithAttributes(otel.AttrClusterID.String(c.clusterID), otel.AttrCycleID.String(cycleID)))
	defer span.End()

	cycleCtx, cancel := context.WithTimeout(ctx, c.statementTimeout)
	defer cancel()

	start := time.Now()
	result, err := c.manager.Sync(cycleCtx)
	duration := time.Since(start)

	c.syncMetrics.RecordSyncDuration(ctx, c.clusterID, duration, err == nil)

	switch {
	case err != nil:
		otel.RecordError(span, err)
		c.syncMetrics.RecordFailure(ctx, c.clusterID, string(pkgsync.KindOf(err)))
		logger.Error("Sync cycle failed", "error", err, "duration", duration)
	case result.Applied:
		logger.Info("Sync cycle applied a new configuration",
			"version", result.Version,
			"primary", result.Primary,
			"removed", result.Removed,
			"added", result.Added,
			"altered", result.Altered,
			"duration", duration)
	default:
		logger.Debug("Sync cycle completed", "version", result.Version, "skipped", result.Skipped)
	}

	st := c.manager.Status()
	if err == nil {
		c.configMetrics.RecordApplied(ctx, c.clusterID, st.Version, st.ObjectCount)
	}
	if c.statusPersistence != nil {
		if perr := c.statusPersistence.SaveStatus(ctx, st); perr != nil {
			logger.Warn("Failed to persist sync status", "error", perr)
		}
	}

	return err
}
