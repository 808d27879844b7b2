package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/proxysync/internal/api"
	"github.com/stacklok/proxysync/internal/config"
	"github.com/stacklok/proxysync/internal/db"
	"github.com/stacklok/proxysync/internal/objects"
	"github.com/stacklok/proxysync/internal/status"
	pkgsync "github.com/stacklok/proxysync/internal/sync"
	"github.com/stacklok/proxysync/internal/sync/cache"
	"github.com/stacklok/proxysync/internal/sync/coordinator"
	"github.com/stacklok/proxysync/internal/sync/selector"
	"github.com/stacklok/proxysync/internal/sync/store"
	"github.com/stacklok/proxysync/internal/telemetry"
	"github.com/stacklok/proxysync/internal/versions"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	// SyncTracerName names the tracer used by the manager and coordinator
	SyncTracerName = "github.com/stacklok/proxysync/sync"
)

// ProxySyncAppOptions is a function that configures the app builder
type ProxySyncAppOptions func(*proxySyncAppConfig) error

// proxySyncAppConfig collects the builder inputs.
// It supports dependency injection for testing while providing sensible defaults for production.
type proxySyncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	syncManager pkgsync.Manager
	objects     *objects.Runtime
	gateway     store.Gateway
	selector    selector.Selector
	telemetry   *telemetry.Telemetry

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	dataDir string
}

func baseConfig(opts ...ProxySyncAppOptions) (*proxySyncAppConfig, error) {
	cfg := &proxySyncAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.GetHTTPAddress()
	}
	if cfg.dataDir == "" {
		cfg.dataDir = cfg.config.DataDir
	}

	return cfg, nil
}

// NewProxySyncApp builds the application from the given options
func NewProxySyncApp(
	ctx context.Context,
	opts ...ProxySyncAppOptions,
) (*ProxySyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.telemetry == nil {
		node, _ := os.Hostname()
		cfg.telemetry, err = telemetry.New(ctx,
			telemetry.WithTelemetryConfig(cfg.config.Telemetry),
			telemetry.WithNode(cfg.config.ClusterID, node))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	if cfg.objects == nil {
		cfg.objects = objects.NewRuntime()
	}

	syncManager, syncCoordinator, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(ctx, cfg, syncManager, syncCoordinator)
	if err != nil {
		_ = syncManager.Close(ctx)
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	return &ProxySyncApp{
		config: cfg.config,
		components: &AppComponents{
			SyncCoordinator: syncCoordinator,
			SyncManager:     syncManager,
			Objects:         cfg.objects,
			Telemetry:       cfg.telemetry,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) ProxySyncAppOptions {
	return func(cfg *proxySyncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) ProxySyncAppOptions {
	return func(cfg *proxySyncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		parts := strings.SplitN(addr, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		host, port := parts[0], parts[1]
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ProxySyncAppOptions {
	return func(cfg *proxySyncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithDataDirectory overrides the directory holding the cache and status files
func WithDataDirectory(dir string) ProxySyncAppOptions {
	return func(cfg *proxySyncAppConfig) error {
		cfg.dataDir = dir
		return nil
	}
}

// WithSyncManager allows injecting a custom sync manager (for testing)
func WithSyncManager(sm pkgsync.Manager) ProxySyncAppOptions {
	return func(cfg *proxySyncAppConfig) error {
		cfg.syncManager = sm
		return nil
	}
}

// WithObjects allows injecting the live object runtime
func WithObjects(rt *objects.Runtime) ProxySyncAppOptions {
	return func(cfg *proxySyncAppConfig) error {
		cfg.objects = rt
		return nil
	}
}

// WithStoreGateway allows injecting a custom shared store gateway (for testing)
func WithStoreGateway(g store.Gateway) ProxySyncAppOptions {
	return func(cfg *proxySyncAppConfig) error {
		cfg.gateway = g
		return nil
	}
}

// WithSelector allows injecting a custom coordinator selector (for testing)
func WithSelector(s selector.Selector) ProxySyncAppOptions {
	return func(cfg *proxySyncAppConfig) error {
		cfg.selector = s
		return nil
	}
}

// WithTelemetry allows injecting already initialized telemetry
func WithTelemetry(t *telemetry.Telemetry) ProxySyncAppOptions {
	return func(cfg *proxySyncAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// buildSyncComponents builds the sync manager, coordinator, and related components
func buildSyncComponents(
	ctx context.Context,
	b *proxySyncAppConfig,
) (pkgsync.Manager, coordinator.Coordinator, error) {
	slog.Info("Initializing sync components", "cluster", b.config.ClusterID)

	tracer := b.telemetry.Tracer(SyncTracerName)

	if b.syncManager == nil {
		params := pkgsync.Params{
			ClusterID: b.config.ClusterID,
			Objects:   b.objects.Table(),
			Writer:    versions.Version,
			Tracer:    tracer,
		}

		if b.config.SyncEnabled() {
			if err := b.buildStoreAccess(ctx); err != nil {
				return nil, nil, err
			}
			params.Store = b.gateway
			params.Selector = b.selector
			params.Cache = cache.New(b.dataDir, b.config.ClusterID)
		} else {
			slog.Warn("No clusterId configured, configuration sync is disabled")
		}

		mgr, err := pkgsync.NewManager(params)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create sync manager: %w", err)
		}
		b.syncManager = mgr
	}

	coordOpts := []coordinator.Option{
		coordinator.WithTracer(tracer),
		coordinator.WithStatusPersistence(status.NewFileStatusPersistence(b.dataDir)),
	}

	meterProvider := b.telemetry.MeterProvider()
	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider)
	if err != nil {
		_ = b.syncManager.Close(ctx)
		return nil, nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}
	if syncMetrics != nil {
		coordOpts = append(coordOpts, coordinator.WithSyncMetrics(syncMetrics))
	}

	configMetrics, err := telemetry.NewConfigMetrics(meterProvider)
	if err != nil {
		_ = b.syncManager.Close(ctx)
		return nil, nil, fmt.Errorf("failed to create config metrics: %w", err)
	}
	if configMetrics != nil {
		coordOpts = append(coordOpts, coordinator.WithConfigMetrics(configMetrics))
	}

	syncCoordinator := coordinator.New(b.syncManager, b.config, coordOpts...)
	slog.Info("Sync components initialized successfully")

	return b.syncManager, syncCoordinator, nil
}

// buildStoreAccess creates the gateway and selector that reach the
// cluster's members, unless they were injected
func (b *proxySyncAppConfig) buildStoreAccess(ctx context.Context) error {
	if b.gateway != nil && b.selector != nil {
		return nil
	}

	dialer, err := db.NewDialer(ctx, b.config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database dialer: %w", err)
	}

	if b.gateway == nil {
		b.gateway = store.NewPostgresGateway(dialer)
	}

	if b.selector == nil {
		members := make([]db.Endpoint, 0, len(b.config.Members))
		for _, m := range b.config.Members {
			members = append(members, db.EndpointFromMember(m))
		}
		prober := selector.NewProber(dialer, members,
			selector.WithProbeTimeout(b.config.Database.GetConnectTimeout()))
		b.selector = selector.NewMonitorSelector(prober, b.config.ClusterID)
	}

	return nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *proxySyncAppConfig,
	mgr pkgsync.Manager,
	coord coordinator.Coordinator,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry middlewares go first to capture every request
	metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	b.middlewares = append([]func(http.Handler) http.Handler{
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
		metricsMiddleware,
	}, b.middlewares...)

	serverOpts := []api.ServerOption{api.WithMiddlewares(b.middlewares...)}
	if b.config.SyncEnabled() {
		serverOpts = append(serverOpts, api.WithTrigger(coord))
	}
	if h := b.telemetry.MetricsHandler(); h != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(h))
		slog.Info("Prometheus metrics endpoint enabled", "path", "/metrics")
	}

	router := api.NewServer(mgr, b.objects, serverOpts...)

	server := &http.Server{
		Addr:              b.address,
		Handler:           router,
		ReadTimeout:       b.readTimeout,
		ReadHeaderTimeout: b.readTimeout,
		WriteTimeout:      b.writeTimeout,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
