package sync

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a sync failure
type ErrorKind string

const (
	// KindConnection covers unreachable members and failed store queries
	KindConnection ErrorKind = "Connection"
	// KindSchema covers a configuration table that cannot be created or read
	KindSchema ErrorKind = "Schema"
	// KindConflict means another node changed the configuration first
	KindConflict ErrorKind = "Conflict"
	// KindStaleVersion means a payload was not newer than the applied one
	KindStaleVersion ErrorKind = "StaleVersion"
	// KindFatalApply means an object operation failed while reconciling
	KindFatalApply ErrorKind = "FatalApply"
	// KindIO covers local cache failures
	KindIO ErrorKind = "IO"
)

// ErrManagerExists is returned by NewManager while another manager is open
var ErrManagerExists = errors.New("a sync manager already exists in this process")

// Error represents a classified sync failure
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err carries a sync Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of a sync Error, or an empty kind for other errors
func KindOf(err error) ErrorKind {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	return ""
}
