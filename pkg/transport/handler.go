package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/statekit/statekit/pkg/definition"
	"github.com/statekit/statekit/pkg/dispatch"
	"github.com/statekit/statekit/pkg/engine"
	"github.com/statekit/statekit/pkg/logger"
)

// ActorHeader carries the acting party's id on transition requests.
// Upstream authentication middleware is expected to set it; the transport
// itself performs no authentication.
const ActorHeader = "X-Actor-ID"

// EntityStore loads and persists entities for the transition endpoint.
// Implementations should return ErrEntityNotFound (wrapped or verbatim)
// for unknown ids. Save is the caller-side persistence step of the
// transition protocol; the engine itself never persists.
type EntityStore interface {
	Get(ctx context.Context, entityType, id string) (engine.Entity, error)
	Save(ctx context.Context, e engine.Entity) error
}

// ErrEntityNotFound is returned by entity stores for unknown ids.
var ErrEntityNotFound = errors.New("transport: entity not found")

// Handler exposes lifecycle transitions over HTTP. The surface is thin by
// design: resolve the URL trigger name, load the entity, run the engine,
// persist, map errors to status codes.
type Handler struct {
	engine *engine.Engine
	store  EntityStore
	defs   *definition.Store
	log    *slog.Logger
}

// NewHandler creates the transition HTTP handler.
func NewHandler(eng *engine.Engine, store EntityStore, defs *definition.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: eng, store: store, defs: defs, log: log}
}

// Routes mounts the transition endpoints:
//
//	POST /{entityType}/{id}/transition/{name}
//	GET  /{entityType}/{id}/transitions
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{entityType}/{id}/transition/{name}", h.transition)
	r.Get("/{entityType}/{id}/transitions", h.availableTransitions)
	return r
}

type transitionResponse struct {
	Success  bool   `json:"success"`
	NewState string `json:"new_state,omitempty"`
}

type conflictResponse struct {
	Transition string `json:"transition"`
	Conflict   string `json:"conflict"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")
	actorID := r.Header.Get(ActorHeader)

	ent, ok := h.loadEntity(w, r, entityType, id)
	if !ok {
		return
	}

	trigger, ok := h.resolveTrigger(w, r, ent, name)
	if !ok {
		return
	}

	var payload map[string]any
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "malformed payload")
			return
		}
	}

	res, err := h.engine.Trigger(r.Context(), ent, trigger, engine.Attempt{
		ActorID: actorID,
		Payload: payload,
	})

	switch {
	case err == nil:
		// applied; fall through to persistence
	case dispatch.IsListenerError(err):
		// Listener failures do not undo the transition; persist anyway
		// and keep the noise in the logs.
		h.log.WarnContext(r.Context(), "transition listeners failed",
			logger.Entity(entityType, id),
			logger.Trigger(trigger),
			logger.Error(err))
	case engine.IsNoMatchingTransitionError(err):
		writeJSON(w, http.StatusConflict, conflictResponse{Transition: name, Conflict: err.Error()})
		return
	case engine.IsTransitionRejectedError(err):
		var rej *engine.TransitionRejectedError
		errors.As(err, &rej)
		if rej.PermissionDenied {
			writeError(w, http.StatusForbidden, rej.Reason)
			return
		}
		writeJSON(w, http.StatusConflict, conflictResponse{Transition: name, Conflict: rej.Reason})
		return
	default:
		// Definition resolution and synchronous action failures. The
		// entity is not persisted on this path.
		h.log.ErrorContext(r.Context(), "transition failed",
			logger.Entity(entityType, id),
			logger.Trigger(trigger),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "transition failed")
		return
	}

	if err := h.store.Save(r.Context(), ent); err != nil {
		h.log.ErrorContext(r.Context(), "entity save failed",
			logger.Entity(entityType, id),
			logger.Trigger(trigger),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}

	writeJSON(w, http.StatusOK, transitionResponse{Success: true, NewState: res.Dest})
}

func (h *Handler) availableTransitions(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	id := chi.URLParam(r, "id")
	actorID := r.Header.Get(ActorHeader)

	ent, ok := h.loadEntity(w, r, entityType, id)
	if !ok {
		return
	}

	triggers, err := h.engine.AvailableTransitions(r.Context(), ent, engine.Attempt{ActorID: actorID})
	if err != nil {
		h.log.ErrorContext(r.Context(), "available transitions failed",
			logger.Entity(entityType, id),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "resolution failed")
		return
	}
	if triggers == nil {
		triggers = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": triggers})
}

func (h *Handler) loadEntity(w http.ResponseWriter, r *http.Request, entityType, id string) (engine.Entity, bool) {
	ent, err := h.store.Get(r.Context(), entityType, id)
	if errors.Is(err, ErrEntityNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	if err != nil {
		h.log.ErrorContext(r.Context(), "entity load failed",
			logger.Entity(entityType, id),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "load failed")
		return nil, false
	}
	return ent, true
}

// resolveTrigger translates the hyphenated URL trigger name into the
// definition's trigger name, admitting only transitions marked as API
// triggers.
func (h *Handler) resolveTrigger(w http.ResponseWriter, r *http.Request, ent engine.Entity, name string) (string, bool) {
	def, err := h.defs.Resolve(ent.EntityType(), ent.Variant())
	if err != nil {
		h.log.ErrorContext(r.Context(), "definition resolution failed",
			logger.Entity(ent.EntityType(), ent.ID()),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "definition unavailable")
		return "", false
	}
	trigger, ok := def.APITriggers()[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown transition")
		return "", false
	}
	return trigger, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
