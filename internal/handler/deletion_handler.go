package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"shopsync/internal/middleware"
	"shopsync/internal/model"
	"shopsync/internal/service"
	"shopsync/pkg/apierror"
)

type DeletionHandler struct {
	service *service.DeletionService
}

func NewDeletionHandler(service *service.DeletionService) *DeletionHandler {
	return &DeletionHandler{service: service}
}

func (h *DeletionHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	var payload model.CreateDeletionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	req, err := h.service.Create(r.Context(), payload, scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, req, nil)
}

func (h *DeletionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	req, err := h.service.AdminValidate(r.Context(), chi.URLParam(r, "id"), scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, req, nil)
}

func (h *DeletionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	var payload model.DecideDeletionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	req, err := h.service.AgentDecide(r.Context(), chi.URLParam(r, "id"), scope, payload.Approve)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, req, nil)
}

func (h *DeletionHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	req, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, req, nil)
}

func (h *DeletionHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	status := model.DeletionStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	requests, err := h.service.List(r.Context(), scope, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, requests, nil)
}
