package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"shopsync/internal/middleware"
	"shopsync/internal/model"
	"shopsync/internal/service"
	"shopsync/pkg/apierror"
)

type SyncHandler struct {
	service *service.SyncService
}

func NewSyncHandler(service *service.SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// Pull serves the change feed: everything in the caller's partition
// modified strictly after ?since, tombstones included.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	collection := chi.URLParam(r, "collection")
	since := strings.TrimSpace(r.URL.Query().Get("since"))

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apierror.New("BAD_REQUEST", "limit must be an integer", raw, http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	resp, err := h.service.Pull(r.Context(), collection, since, scope, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp, nil)
}

// Push ingests a batch of client records. Partial success is the
// normal case: failed items come back in the errors list and the
// client re-submits them on its next cycle.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	var payload model.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	collection := chi.URLParam(r, "collection")
	resp, err := h.service.Push(r.Context(), collection, payload.Entities, scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp, nil)
}

// Tombstones answers "which of these ids did the server hard-delete".
func (h *SyncHandler) Tombstones(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	var payload model.TombstoneRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	collection := chi.URLParam(r, "collection")
	deleted, err := h.service.TombstoneDiff(r.Context(), collection, payload.IDs, scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.TombstoneResponse{DeletedIDs: deleted}, nil)
}
