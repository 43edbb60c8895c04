package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shopsync/internal/event"
	"shopsync/internal/model"
)

// TrashService manages the corbeille: snapshots of records removed
// from their live collections. Restore re-creates a live record under
// a brand-new identity; the original id is never resurrected, so
// clients that still hold it see a hard delete via TombstoneDiff and
// learn the replacement through the change feed.
type TrashService struct {
	trash   TrashStore
	records RecordStore
	tx      TxManager
	clock   Clock
	audit   *AuditService
	bus     event.Bus
}

func NewTrashService(trash TrashStore, records RecordStore, tx TxManager, clock Clock, audit *AuditService, bus event.Bus) *TrashService {
	return &TrashService{trash: trash, records: records, tx: tx, clock: clock, audit: audit, bus: bus}
}

func (s *TrashService) List(ctx context.Context, includeRestored bool) ([]model.TrashEntry, error) {
	return s.trash.List(ctx, includeRestored)
}

func (s *TrashService) Get(ctx context.Context, id string) (model.TrashEntry, error) {
	return s.trash.FindByID(ctx, id)
}

// Restore re-inserts the snapshot as a new live record and consumes
// the entry, all in one transaction. A second restore of the same
// entry fails with ErrAlreadyRestored: each restore mutates live state
// and must not be duplicated silently.
func (s *TrashService) Restore(ctx context.Context, trashEntryID string, actor model.ActorScope) (model.TrashEntry, error) {
	var restored model.TrashEntry

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		entry, err := s.trash.FindByIDForUpdate(txCtx, trashEntryID)
		if err != nil {
			return err
		}
		if entry.Restored {
			return model.ErrAlreadyRestored
		}

		now := s.clock.Now()
		record := &model.Record{
			Collection: entry.Collection,
			ShopID:     entry.ShopID,
			Fields:     entry.Snapshot,
			ModifiedAt: now,
			ModifiedBy: actor.Actor,
		}

		newID, err := s.records.Insert(txCtx, record)
		if err != nil {
			return fmt.Errorf("re-insert snapshot: %w", err)
		}

		if err := s.trash.MarkRestored(txCtx, entry.ID, actor.Actor, newID, now); err != nil {
			return err
		}

		entry.Restored = true
		entry.RestoredAt = &now
		entry.RestoredBy = actor.Actor
		entry.RestoredRecordID = newID
		restored = entry
		return nil
	})
	if err != nil {
		return model.TrashEntry{}, err
	}

	s.audit.Log(ctx, "trash.restore", auditActor(actor), "success",
		restored.Collection+"/"+restored.RecordID, nil,
		map[string]any{"trash_entry_id": restored.ID, "new_record_id": restored.RestoredRecordID}, "")
	s.publish(event.TypeTrashRestored, actor.Actor, map[string]any{
		"trash_entry_id": restored.ID,
		"collection":     restored.Collection,
		"new_record_id":  restored.RestoredRecordID,
	})

	return restored, nil
}

// Purge removes a single entry permanently. The snapshot is gone for
// good; only the audit trail remembers it.
func (s *TrashService) Purge(ctx context.Context, trashEntryID string, actor model.ActorScope) error {
	entry, err := s.trash.FindByID(ctx, trashEntryID)
	if err != nil {
		return err
	}

	if err := s.trash.Delete(ctx, trashEntryID); err != nil {
		return err
	}

	s.audit.Log(ctx, "trash.purge", auditActor(actor), "success",
		entry.Collection+"/"+entry.RecordID, entry.Snapshot, nil, "")
	s.publish(event.TypeTrashPurged, actor.Actor, map[string]any{
		"trash_entry_id": entry.ID,
		"collection":     entry.Collection,
	})
	return nil
}

// Empty purges every entry not yet restored and returns the count.
func (s *TrashService) Empty(ctx context.Context, actor model.ActorScope) (int, error) {
	count, err := s.trash.DeleteAllNotRestored(ctx)
	if err != nil {
		return 0, err
	}

	s.audit.Log(ctx, "trash.empty", auditActor(actor), "success", "trash",
		nil, map[string]any{"purged": count}, "")
	return count, nil
}

func (s *TrashService) publish(t event.Type, actor string, payload any) {
	s.bus.Publish(event.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: s.clock.Now().Format(time.RFC3339Nano),
		ActorID:   actor,
	})
}

func auditActor(scope model.ActorScope) model.AuditActor {
	return model.AuditActor{Username: scope.Actor, Role: scope.Role}
}
