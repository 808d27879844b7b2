package status

import "time"

// SyncPhase represents the state of the node's configuration relative to the cluster
type SyncPhase string

const (
	// SyncPhaseUnsynced means no cycle has completed since startup
	SyncPhaseUnsynced SyncPhase = "Unsynced"

	// SyncPhaseVerifying means a local change is being verified against the shared store
	SyncPhaseVerifying SyncPhase = "Verifying"

	// SyncPhaseSynced means the local version matches the shared store
	SyncPhaseSynced SyncPhase = "Synced"

	// SyncPhaseError means the last cycle failed
	SyncPhaseError SyncPhase = "Error"
)

// SyncStatus represents the current state of cluster configuration synchronization
type SyncStatus struct {
	// Phase represents the current synchronization phase
	Phase SyncPhase `json:"phase" yaml:"phase"`

	// Message provides additional information about the sync status
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// ClusterID is the cluster this node synchronizes with
	ClusterID string `json:"clusterId,omitempty" yaml:"clusterId,omitempty"`

	// Version is the configuration version currently applied
	Version int64 `json:"version" yaml:"version"`

	// Primary names the member hosting the shared store during the last cycle
	Primary string `json:"primary,omitempty" yaml:"primary,omitempty"`

	// LastAttempt is the timestamp of the last sync attempt
	LastAttempt *time.Time `json:"lastAttempt,omitempty" yaml:"lastAttempt,omitempty"`

	// AttemptCount is the number of failed attempts since the last success
	AttemptCount int `json:"attemptCount,omitempty" yaml:"attemptCount,omitempty"`

	// LastSyncTime is the timestamp of the last successful cycle
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty" yaml:"lastSyncTime,omitempty"`

	// ObjectCount is the number of objects in the applied configuration
	ObjectCount int `json:"objectCount" yaml:"objectCount"`
}

// Copy returns a deep copy of the status
func (s *SyncStatus) Copy() *SyncStatus {
	if s == nil {
		return nil
	}
	out := *s
	if s.LastAttempt != nil {
		t := *s.LastAttempt
		out.LastAttempt = &t
	}
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		out.LastSyncTime = &t
	}
	return &out
}
