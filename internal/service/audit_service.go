package service

import (
	"context"
	"log/slog"
	"time"

	"shopsync/internal/model"
)

// AuditService records who did what to which resource. Logging is
// best-effort: a failed audit write must not fail the operation it
// describes, so errors are logged and swallowed.
type AuditService struct {
	store AuditStore
	clock Clock
}

func NewAuditService(store AuditStore, clock Clock) *AuditService {
	return &AuditService{store: store, clock: clock}
}

func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, before any, after any, errText string) {
	if s == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: s.clock.Now().Format(time.RFC3339Nano),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Before:     before,
		After:      after,
		Error:      errText,
	}

	if err := s.store.Log(ctx, entry); err != nil {
		slog.Error("audit log write failed", "action", action, "resource", resource, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	return s.store.Query(ctx, query)
}
