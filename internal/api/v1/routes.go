// Package v1 provides the REST API handlers for sync status and object changes.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/proxysync/internal/api/common"
	"github.com/stacklok/proxysync/internal/objects"
	"github.com/stacklok/proxysync/internal/snapshot"
	"github.com/stacklok/proxysync/internal/sync"
	"github.com/stacklok/proxysync/internal/validators"
)

// maxBodySize bounds object request bodies
const maxBodySize = 1 << 20

var errInvalidName = errors.New("invalid object name")

// Trigger requests an immediate sync cycle
type Trigger interface {
	Trigger()
}

// Objects exposes the live proxy objects
type Objects interface {
	Get(name string) (snapshot.Object, bool)
	Table() objects.Table
}

// Routes defines the v1 routes with dependency injection
type Routes struct {
	manager sync.Manager
	objects Objects
	trigger Trigger
}

// NewRoutes creates a new Routes instance. trigger may be nil.
func NewRoutes(mgr sync.Manager, objs Objects, trigger Trigger) *Routes {
	return &Routes{
		manager: mgr,
		objects: objs,
		trigger: trigger,
	}
}

// Router creates a new router for the v1 API
func Router(mgr sync.Manager, objs Objects, trigger Trigger) http.Handler {
	routes := NewRoutes(mgr, objs, trigger)

	r := chi.NewRouter()

	r.Get("/sync/status", routes.getSyncStatus)
	r.Post("/sync", routes.triggerSync)
	r.Get("/config", routes.getConfig)

	r.Get("/objects", routes.listObjects)
	r.Get("/objects/{type}/{name}", routes.getObject)
	r.Put("/objects/{type}/{name}", routes.putObject)
	r.Delete("/objects/{type}/{name}", routes.deleteObject)

	return r
}

// getSyncStatus handles GET /v1/sync/status
func (rr *Routes) getSyncStatus(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, rr.manager.Status(), http.StatusOK)
}

// triggerSync handles POST /v1/sync
func (rr *Routes) triggerSync(w http.ResponseWriter, _ *http.Request) {
	if rr.trigger == nil {
		common.WriteErrorResponse(w, "sync is disabled", http.StatusConflict)
		return
	}
	rr.trigger.Trigger()
	common.WriteJSONResponse(w, TriggerResponse{Status: "triggered"}, http.StatusAccepted)
}

// getConfig handles GET /v1/config and returns the applied snapshot document
func (rr *Routes) getConfig(w http.ResponseWriter, r *http.Request) {
	data, err := snapshot.Encode(rr.manager.Current())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to encode configuration", "error", err)
		common.WriteErrorResponse(w, "Failed to encode configuration", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// listObjects handles GET /v1/objects?type=&name=
// The name parameter is a glob pattern.
func (rr *Routes) listObjects(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	matcher, err := validators.CompileNamePattern(query.Get("name"))
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	typ := query.Get("type")

	objs, err := rr.objects.Table().ListAll(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list objects", "error", err)
		common.WriteErrorResponse(w, "Failed to list objects", http.StatusInternalServerError)
		return
	}

	filtered := make([]snapshot.Object, 0, len(objs))
	for _, obj := range objs {
		if typ != "" && obj.Type != snapshot.Type(typ) {
			continue
		}
		if matcher.Match(obj.ID) {
			filtered = append(filtered, obj)
		}
	}
	common.WriteJSONResponse(w, ObjectListResponse{Objects: filtered, Count: len(filtered)}, http.StatusOK)
}

// getObject handles GET /v1/objects/{type}/{name}
func (rr *Routes) getObject(w http.ResponseWriter, r *http.Request) {
	typ, name, ok := objectParams(w, r)
	if !ok {
		return
	}
	obj, found := rr.objects.Get(name)
	if !found || obj.Type != typ {
		common.WriteErrorResponse(w, "object not found", http.StatusNotFound)
		return
	}
	common.WriteJSONResponse(w, obj, http.StatusOK)
}

// putObject handles PUT /v1/objects/{type}/{name}. The object is created
// or altered, then committed cluster-wide.
func (rr *Routes) putObject(w http.ResponseWriter, r *http.Request) {
	typ, name, ok := objectParams(w, r)
	if !ok {
		return
	}

	var req ObjectRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		common.WriteErrorResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	obj := snapshot.Object{
		ID:            name,
		Type:          typ,
		Attributes:    req.Attributes,
		Relationships: req.Relationships,
	}
	if err := validators.ValidateObjectSize(obj, validators.DefaultMaxObjectSize); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	created := false
	err := rr.manager.Change(r.Context(), func(ctx context.Context) error {
		h, err := rr.objects.Table().Lookup(typ)
		if err != nil {
			return err
		}
		if _, exists := rr.objects.Get(name); exists {
			if h.Alter == nil {
				return objects.ErrUnsupported
			}
			return h.Alter(ctx, name, obj)
		}
		if h.Create == nil {
			return objects.ErrUnsupported
		}
		if _, err := validators.ValidateObjectName(name); err != nil {
			return fmt.Errorf("%w: %w", errInvalidName, err)
		}
		created = true
		return h.Create(ctx, obj)
	})
	if err != nil {
		writeChangeError(r.Context(), w, err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	stored, _ := rr.objects.Get(name)
	common.WriteJSONResponse(w, stored, code)
}

// deleteObject handles DELETE /v1/objects/{type}/{name}[?force=true]
func (rr *Routes) deleteObject(w http.ResponseWriter, r *http.Request) {
	typ, name, ok := objectParams(w, r)
	if !ok {
		return
	}

	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			common.WriteErrorResponse(w, "force must be a boolean", http.StatusBadRequest)
			return
		}
		force = parsed
	}

	err := rr.manager.Change(r.Context(), func(ctx context.Context) error {
		h, err := rr.objects.Table().Lookup(typ)
		if err != nil {
			return err
		}
		if obj, exists := rr.objects.Get(name); !exists || obj.Type != typ {
			return objects.ErrNotFound
		}
		if h.Destroy == nil {
			return objects.ErrUnsupported
		}
		return h.Destroy(ctx, name, force)
	})
	if err != nil {
		writeChangeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// objectParams extracts and validates the type and name URL parameters
func objectParams(w http.ResponseWriter, r *http.Request) (snapshot.Type, string, bool) {
	rawType, err := common.GetAndValidateURLParam(r, "type")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return "", "", false
	}
	typ := snapshot.Type(rawType)
	if !typ.Valid() {
		common.WriteErrorResponse(w, "unknown object type "+strconv.Quote(rawType), http.StatusBadRequest)
		return "", "", false
	}
	name, err := common.GetAndValidateURLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return "", "", false
	}
	return typ, name, true
}

// writeChangeError maps object and sync errors to HTTP status codes
func writeChangeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, objects.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, objects.ErrUnknownType), errors.Is(err, errInvalidName):
		code = http.StatusBadRequest
	case errors.Is(err, objects.ErrUnsupported):
		code = http.StatusMethodNotAllowed
	case errors.Is(err, objects.ErrConflict), errors.Is(err, objects.ErrInUse):
		code = http.StatusConflict
	case errors.Is(err, objects.ErrDanglingReference):
		code = http.StatusUnprocessableEntity
	case sync.IsKind(err, sync.KindConflict):
		code = http.StatusConflict
	case sync.IsKind(err, sync.KindConnection), sync.IsKind(err, sync.KindSchema):
		code = http.StatusServiceUnavailable
	}

	if code >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Configuration change failed", "error", err)
	} else {
		slog.DebugContext(ctx, "Configuration change rejected", "error", err, "status", code)
	}
	common.WriteErrorResponse(w, err.Error(), code)
}
