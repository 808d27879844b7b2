// Package validators provides validation functions for proxy configuration objects.
package validators

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/stacklok/proxysync/internal/snapshot"
)

const (
	maxObjectNameLength = 128

	// DefaultMaxObjectSize bounds the serialized attributes and
	// relationships of a single object
	DefaultMaxObjectSize = 64 * 1024
)

// Object names must start and end with an alphanumeric character and may
// contain dots, underscores and hyphens in the middle
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

// ValidateObjectName validates the name of a new configuration object.
// Returns the trimmed name and an error if validation fails.
//
// Examples of valid names:
//   - db1
//   - read-write.service
//   - listener_5432
//
// Examples of invalid names:
//   - -db1 (starts with a dash)
//   - db 1 (contains a space)
//   - db1/primary (contains a slash)
func ValidateObjectName(name string) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", fmt.Errorf("object name cannot be empty")
	}
	if len(name) > maxObjectNameLength {
		return "", fmt.Errorf("object name exceeds maximum length of %d characters", maxObjectNameLength)
	}
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf(
			"object name '%s' is invalid. Names must start and end with alphanumeric characters, "+
				"and may contain dots, underscores, and hyphens in the middle",
			name,
		)
	}

	return name, nil
}

// IsValidObjectName is a convenience wrapper around ValidateObjectName for boolean checks
func IsValidObjectName(name string) bool {
	_, err := ValidateObjectName(name)
	return err == nil
}

// ValidateObjectSize checks that the serialized attributes and relationships
// of an object fit in maxSize bytes. Set maxSize to 0 or negative to disable
// the check.
func ValidateObjectSize(obj snapshot.Object, maxSize int) error {
	if maxSize <= 0 {
		return nil
	}

	data, err := json.Marshal(struct {
		Attributes    map[string]any                   `json:"attributes,omitempty"`
		Relationships map[string]snapshot.Relationship `json:"relationships,omitempty"`
	}{obj.Attributes, obj.Relationships})
	if err != nil {
		return fmt.Errorf("failed to serialize object %q: %w", obj.ID, err)
	}

	if len(data) > maxSize {
		return fmt.Errorf("object %q is %d bytes, exceeding the maximum of %d bytes", obj.ID, len(data), maxSize)
	}
	return nil
}
