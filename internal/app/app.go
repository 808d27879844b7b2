// Package app provides application lifecycle management for the sync daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/stacklok/proxysync/internal/config"
)

// ProxySyncApp encapsulates all components needed to run the sync daemon
// and its status API. It provides lifecycle management and graceful shutdown.
type ProxySyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the application components (HTTP server and background sync)
// This method blocks until the HTTP server stops or encounters an error
func (app *ProxySyncApp) Start() error {
	go func() {
		if err := app.components.SyncCoordinator.Start(app.ctx); err != nil {
			slog.Error("Sync coordinator failed", "error", err)
		}
	}()

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// The coordinator stops first so no cycle races the manager shutdown.
func (app *ProxySyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	var err error
	if stopErr := app.components.SyncCoordinator.Stop(); stopErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to stop sync coordinator: %w", stopErr))
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if shutdownErr := app.httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		err = multierr.Append(err, fmt.Errorf("server forced to shutdown: %w", shutdownErr))
	}
	if closeErr := app.components.SyncManager.Close(shutdownCtx); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close sync manager: %w", closeErr))
	}
	if app.components.Telemetry != nil {
		if telErr := app.components.Telemetry.Shutdown(shutdownCtx); telErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to shutdown telemetry: %w", telErr))
		}
	}

	if err != nil {
		return err
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *ProxySyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *ProxySyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired application components
func (app *ProxySyncApp) Components() *AppComponents {
	return app.components
}
