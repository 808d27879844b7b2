package v1

import "github.com/stacklok/proxysync/internal/snapshot"

// ObjectRequest is the body of PUT /v1/objects/{type}/{name}
type ObjectRequest struct {
	Attributes    map[string]any                   `json:"attributes,omitempty"`
	Relationships map[string]snapshot.Relationship `json:"relationships,omitempty"`
}

// ObjectListResponse lists the live objects
type ObjectListResponse struct {
	Objects []snapshot.Object `json:"objects"`
	Count   int               `json:"count"`
}

// TriggerResponse acknowledges a sync request
type TriggerResponse struct {
	Status string `json:"status" example:"triggered"`
}
