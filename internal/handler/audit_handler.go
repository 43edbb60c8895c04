package handler

import (
	"net/http"
	"strconv"
	"strings"

	"shopsync/internal/model"
	"shopsync/internal/service"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := model.AuditQuery{
		Action:  strings.TrimSpace(q.Get("action")),
		ActorID: strings.TrimSpace(q.Get("actor_id")),
		Status:  strings.TrimSpace(q.Get("status")),
		Path:    strings.TrimSpace(q.Get("resource")),
		From:    strings.TrimSpace(q.Get("from")),
		To:      strings.TrimSpace(q.Get("to")),
	}
	query.Page, _ = strconv.Atoi(q.Get("page"))
	query.Limit, _ = strconv.Atoi(q.Get("limit"))

	entries, meta, err := h.service.Query(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entries, &meta)
}
