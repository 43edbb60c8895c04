package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"shopsync/internal/middleware"
	"shopsync/internal/model"
	"shopsync/internal/service"
	"shopsync/pkg/apierror"
)

type TrashHandler struct {
	service *service.TrashService
}

func NewTrashHandler(service *service.TrashService) *TrashHandler {
	return &TrashHandler{service: service}
}

func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	includeRestored := strings.EqualFold(r.URL.Query().Get("include_restored"), "true")

	entries, err := h.service.List(r.Context(), includeRestored)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entries, nil)
}

func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	entry, err := h.service.Restore(r.Context(), chi.URLParam(r, "id"), scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.RestoreResponse{NewRecordID: entry.RestoredRecordID}, nil)
}

func (h *TrashHandler) Purge(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	if err := h.service.Purge(r.Context(), chi.URLParam(r, "id"), scope); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"purged": true}, nil)
}

func (h *TrashHandler) Empty(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	count, err := h.service.Empty(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"purged": count}, nil)
}
