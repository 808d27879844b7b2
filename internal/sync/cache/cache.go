// Package cache persists the last applied snapshot on local disk so a node
// can rebuild its runtime configuration at startup without reaching the
// shared store.
//
// Writes go to a temporary file in the same directory which is flushed,
// closed and renamed over the canonical path. The rename is the only
// durability boundary: readers see either the previous complete file or
// the new complete file.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/stacklok/proxysync/internal/snapshot"
)

const (
	// FileName is the name of the cache file inside the data directory
	FileName = "proxysync-config.json"

	lockRetryDelay = 50 * time.Millisecond
	filePerm       = 0600
	dirPerm        = 0750
)

// ErrLocked is returned when another process holds the cache lock
var ErrLocked = errors.New("cache file is locked by another process")

// Cache reads and writes the local snapshot cache of one cluster
type Cache struct {
	path      string
	clusterID string
	lock      *flock.Flock
}

// New creates a cache rooted at dataDir for clusterID
func New(dataDir, clusterID string) *Cache {
	path := filepath.Join(dataDir, FileName)
	return &Cache{
		path:      path,
		clusterID: clusterID,
		lock:      flock.New(path + ".lock"),
	}
}

// Path returns the canonical cache file path
func (c *Cache) Path() string {
	return c.path
}

// Write atomically replaces the cache file with the snapshot
func (c *Cache) Write(ctx context.Context, s *snapshot.Snapshot) error {
	data, err := snapshot.Encode(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	locked, err := c.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock cache file: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			slog.Warn("Failed to unlock cache file", "path", c.path, "error", err)
		}
	}()

	if err := writeAtomic(c.path, data); err != nil {
		return err
	}

	slog.Debug("Wrote configuration cache", "path", c.path, "version", s.Version, "objects", s.Len())
	return nil
}

// Load reads the cache. A missing file, or one written for a different
// cluster, reads as no cache. The file is never modified here.
func (c *Cache) Load(_ context.Context) (*snapshot.Snapshot, bool, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache file %s: %w", c.path, err)
	}

	s, err := snapshot.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse cache file %s: %w", c.path, err)
	}

	if s.ClusterID != c.clusterID {
		slog.Warn("Ignoring cached configuration of another cluster",
			"path", c.path,
			"cached_cluster", s.ClusterID,
			"cluster", c.clusterID)
		return nil, false, nil
	}

	return s, true, nil
}

func writeAtomic(path string, data []byte) (retErr error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+FileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if retErr != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temporary cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to flush temporary cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary cache file: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		return fmt.Errorf("failed to set cache file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	return nil
}
