package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopsync/internal/event"
	"shopsync/internal/model"
)

// DeletionService runs the two-party approval flow gating destructive
// operations: an admin requests, an admin validates, the owning field
// agent decides. Approval is the only path that ever removes a live
// record from a protected collection, and the removal, the trash
// snapshot and the terminal status land in one transaction.
type DeletionService struct {
	deletions DeletionStore
	records   RecordStore
	trash     TrashStore
	tx        TxManager
	clock     Clock
	audit     *AuditService
	bus       event.Bus
}

func NewDeletionService(deletions DeletionStore, records RecordStore, trash TrashStore, tx TxManager, clock Clock, audit *AuditService, bus event.Bus) *DeletionService {
	return &DeletionService{
		deletions: deletions,
		records:   records,
		trash:     trash,
		tx:        tx,
		clock:     clock,
		audit:     audit,
		bus:       bus,
	}
}

// Create opens a deletion request. The caller-supplied reference is an
// idempotency token: re-posting the same reference returns the request
// already opened instead of spawning a second state machine.
func (s *DeletionService) Create(ctx context.Context, payload model.CreateDeletionRequest, admin model.ActorScope) (model.DeletionRequest, error) {
	reference := strings.TrimSpace(payload.Reference)
	if reference == "" {
		return model.DeletionRequest{}, fmt.Errorf("%w: reference is required", model.ErrValidation)
	}
	if !ValidCollection(payload.Collection) {
		return model.DeletionRequest{}, fmt.Errorf("%w: invalid collection %q", model.ErrValidation, payload.Collection)
	}
	if strings.TrimSpace(payload.RecordID) == "" {
		return model.DeletionRequest{}, fmt.Errorf("%w: record_id is required", model.ErrValidation)
	}

	if existing, err := s.deletions.FindByReference(ctx, reference); err == nil {
		return existing, nil
	} else if !errors.Is(err, model.ErrDeletionNotFound) {
		return model.DeletionRequest{}, err
	}

	target, err := s.records.Get(ctx, payload.Collection, payload.RecordID)
	if err != nil {
		return model.DeletionRequest{}, err
	}

	req := model.DeletionRequest{
		ID:          uuid.NewString(),
		Reference:   reference,
		Collection:  payload.Collection,
		RecordID:    target.ID,
		ShopID:      target.ShopID,
		Reason:      strings.TrimSpace(payload.Reason),
		Status:      model.DeletionRequested,
		RequestedBy: admin.Actor,
		RequestedAt: s.clock.Now(),
	}

	if err := s.deletions.Create(ctx, req); err != nil {
		// A concurrent Create with the same reference can slip past the
		// FindByReference check above; the unique constraint catches it
		// and the request the winner opened is the idempotent answer.
		if errors.Is(err, model.ErrDuplicateReference) {
			return s.deletions.FindByReference(ctx, reference)
		}
		return model.DeletionRequest{}, err
	}

	s.audit.Log(ctx, "deletion.request", auditActor(admin), "success",
		req.Collection+"/"+req.RecordID, nil, map[string]any{"reference": reference, "reason": req.Reason}, "")
	s.publish(event.TypeDeletionRequested, admin.Actor, req)

	return req, nil
}

// AdminValidate is the second confirmation required before any field
// agent sees the request. Valid only from the requested state.
func (s *DeletionService) AdminValidate(ctx context.Context, requestID string, admin model.ActorScope) (model.DeletionRequest, error) {
	var validated model.DeletionRequest

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		req, err := s.deletions.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.DeletionRequested {
			return fmt.Errorf("%w: request is %s, expected %s",
				model.ErrPreconditionFailed, req.Status, model.DeletionRequested)
		}

		now := s.clock.Now()
		if err := s.deletions.MarkValidated(txCtx, req.ID, admin.Actor, now); err != nil {
			return err
		}

		req.Status = model.DeletionAdminValidated
		req.AdminValidatedBy = admin.Actor
		req.AdminValidatedAt = &now
		validated = req
		return nil
	})
	if err != nil {
		return model.DeletionRequest{}, err
	}

	s.audit.Log(ctx, "deletion.validate", auditActor(admin), "success",
		validated.Collection+"/"+validated.RecordID, nil, map[string]any{"request_id": validated.ID}, "")
	s.publish(event.TypeDeletionValidated, admin.Actor, validated)

	return validated, nil
}

// AgentDecide is terminal. Approval snapshots the record into the
// trash, removes it from its live collection and closes the request in
// one atomic step; rejection closes the request and touches nothing.
// Deciding from any state but admin_validated is a precondition
// failure, so callers can tell "already decided" apart from success.
func (s *DeletionService) AgentDecide(ctx context.Context, requestID string, agent model.ActorScope, approve bool) (model.DeletionRequest, error) {
	var decided model.DeletionRequest

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		req, err := s.deletions.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.DeletionAdminValidated {
			return fmt.Errorf("%w: request is %s, expected %s",
				model.ErrPreconditionFailed, req.Status, model.DeletionAdminValidated)
		}
		if !agent.IsAdmin() && req.ShopID != agent.ShopID {
			return model.ErrScopeViolation
		}

		now := s.clock.Now()
		if !approve {
			if err := s.deletions.MarkDecided(txCtx, req.ID, agent.Actor, now, model.DeletionAgentRejected, ""); err != nil {
				return err
			}
			req.Status = model.DeletionAgentRejected
			req.AgentDecisionBy = agent.Actor
			req.AgentDecisionAt = &now
			decided = req
			return nil
		}

		record, err := s.records.GetForUpdate(txCtx, req.Collection, req.RecordID)
		if err != nil {
			return fmt.Errorf("%w: target record no longer exists", model.ErrPreconditionFailed)
		}

		entry := model.TrashEntry{
			ID:             uuid.NewString(),
			Collection:     record.Collection,
			RecordID:       record.ID,
			ShopID:         record.ShopID,
			Snapshot:       record.Fields,
			DeletedAt:      now,
			DeletedBy:      agent.Actor,
			DeletionReason: req.Reason,
		}
		if err := s.trash.Create(txCtx, entry); err != nil {
			return err
		}

		if err := s.records.Delete(txCtx, req.Collection, req.RecordID); err != nil {
			return err
		}

		if err := s.deletions.MarkDecided(txCtx, req.ID, agent.Actor, now, model.DeletionAgentApproved, entry.ID); err != nil {
			return err
		}

		req.Status = model.DeletionAgentApproved
		req.AgentDecisionBy = agent.Actor
		req.AgentDecisionAt = &now
		req.TrashEntryID = entry.ID
		decided = req
		return nil
	})
	if err != nil {
		return model.DeletionRequest{}, err
	}

	action, eventType := "deletion.reject", event.TypeDeletionRejected
	if approve {
		action, eventType = "deletion.approve", event.TypeDeletionApproved
	}
	s.audit.Log(ctx, action, auditActor(agent), "success",
		decided.Collection+"/"+decided.RecordID, nil, map[string]any{"request_id": decided.ID}, "")
	s.publish(eventType, agent.Actor, decided)

	return decided, nil
}

func (s *DeletionService) Get(ctx context.Context, requestID string, scope model.ActorScope) (model.DeletionRequest, error) {
	req, err := s.deletions.FindByID(ctx, requestID)
	if err != nil {
		return model.DeletionRequest{}, err
	}
	if !scope.IsAdmin() && req.ShopID != scope.ShopID {
		return model.DeletionRequest{}, model.ErrDeletionNotFound
	}
	return req, nil
}

func (s *DeletionService) List(ctx context.Context, scope model.ActorScope, status model.DeletionStatus) ([]model.DeletionRequest, error) {
	switch status {
	case "", model.DeletionRequested, model.DeletionAdminValidated, model.DeletionAgentApproved, model.DeletionAgentRejected:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, status)
	}
	return s.deletions.List(ctx, scope, status)
}

func (s *DeletionService) publish(t event.Type, actor string, payload any) {
	s.bus.Publish(event.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: s.clock.Now().Format(time.RFC3339Nano),
		ActorID:   actor,
	})
}
