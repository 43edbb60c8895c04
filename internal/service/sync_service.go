package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shopsync/internal/event"
	"shopsync/internal/model"
)

// SyncService is the engine the per-table endpoints delegate to: a
// cursor-based change feed (Pull), an idempotent batch reconciler
// (Push) and a hard-delete detector (TombstoneDiff). It owns every
// modified_at/deleted_at value it stores; client clocks are only used
// to decide conflicts, never stored as ordering keys.
type SyncService struct {
	records  RecordStore
	tx       TxManager
	clock    Clock
	resolver ConflictResolver
	registry *CollectionRegistry
	audit    *AuditService
	bus      event.Bus

	maxBatch     int
	defaultLimit int
	maxLimit     int
}

func NewSyncService(records RecordStore, tx TxManager, clock Clock, registry *CollectionRegistry, audit *AuditService, bus event.Bus, maxBatch int, defaultLimit int, maxLimit int) *SyncService {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	if defaultLimit <= 0 {
		defaultLimit = 200
	}
	if maxLimit <= 0 {
		maxLimit = 1000
	}

	return &SyncService{
		records:      records,
		tx:           tx,
		clock:        clock,
		resolver:     LastWriteWins{},
		registry:     registry,
		audit:        audit,
		bus:          bus,
		maxBatch:     maxBatch,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

type applyOutcome int

const (
	outcomeApplied applyOutcome = iota
	outcomeSkipped
)

// Push reconciles a batch of client records. Items are independent:
// one failing item is recorded in the response and rolled back to its
// savepoint while its siblings commit in the surrounding transaction.
// A stale incoming write losing conflict resolution is a skip, not an
// error; the client learns the winning version on its next Pull.
func (s *SyncService) Push(ctx context.Context, collection string, entities []model.SyncEntity, scope model.ActorScope) (model.PushResponse, error) {
	if !ValidCollection(collection) {
		return model.PushResponse{}, fmt.Errorf("%w: invalid collection %q", model.ErrValidation, collection)
	}
	if len(entities) > s.maxBatch {
		return model.PushResponse{}, fmt.Errorf("%w: batch of %d exceeds maximum %d", model.ErrValidation, len(entities), s.maxBatch)
	}

	resp := model.PushResponse{Errors: make([]model.PushItemError, 0)}
	if len(entities) == 0 {
		return resp, nil
	}

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		for i := range entities {
			outcome, applyErr := s.applyOne(txCtx, collection, entities[i], scope)
			if applyErr != nil {
				resp.Errors = append(resp.Errors, model.PushItemError{
					ID:      entities[i].ID,
					Message: applyErr.Error(),
				})
				continue
			}

			if outcome == outcomeSkipped {
				resp.Skipped++
			} else {
				resp.Applied++
			}
		}
		return nil
	})
	if err != nil {
		return model.PushResponse{}, err
	}

	status := "success"
	if len(resp.Errors) > 0 {
		status = "partial"
	}
	s.audit.Log(ctx, "sync.push", model.AuditActor{Username: scope.Actor, Role: scope.Role}, status, collection,
		nil, map[string]any{"applied": resp.Applied, "skipped": resp.Skipped, "failed": len(resp.Errors)}, "")

	return resp, nil
}

// applyOne runs a single item inside a savepoint so its failure never
// poisons the batch transaction.
func (s *SyncService) applyOne(ctx context.Context, collection string, entity model.SyncEntity, scope model.ActorScope) (applyOutcome, error) {
	naturalKey := s.registry.NaturalKey(collection, entity.Fields)
	if entity.ID == "" && naturalKey == "" {
		return 0, fmt.Errorf("%w: entity has neither id nor natural key", model.ErrValidation)
	}

	clientModifiedAt, err := s.parseClientTime(entity.ModifiedAt)
	if err != nil {
		return 0, err
	}

	outcome := outcomeApplied
	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		// Re-read under the row lock inside this transaction; two
		// concurrent pushes of the same id serialize here instead of
		// both resolving against the same stale "existing".
		existing, lookupErr := s.lookupExisting(txCtx, collection, entity.ID, naturalKey)
		if lookupErr != nil {
			return lookupErr
		}

		if existing != nil && !scope.CanSee(existing) {
			return model.ErrScopeViolation
		}

		incoming := &model.Record{
			ID:         entity.ID,
			Collection: collection,
			ShopID:     s.ownerShop(entity, scope),
			Fields:     entity.Fields,
			NaturalKey: naturalKey,
			ModifiedAt: clientModifiedAt,
		}

		if winner := s.resolver.Resolve(existing, incoming); winner != incoming {
			outcome = outcomeSkipped
			return nil
		}

		now := s.clock.Now()
		incoming.ModifiedAt = now
		incoming.ModifiedBy = scope.Actor
		incoming.Synced = true
		incoming.SyncedAt = s.syncedAt(entity.SyncedAt, now)
		if entity.Deleted {
			incoming.DeletedAt = &now
		}

		if existing == nil {
			if _, insertErr := s.records.Insert(txCtx, incoming); insertErr != nil {
				return insertErr
			}
		} else {
			incoming.ID = existing.ID
			if updateErr := s.records.Update(txCtx, incoming); updateErr != nil {
				return updateErr
			}
		}

		s.publish(eventTypeFor(entity.Deleted), scope.Actor, map[string]any{
			"collection": collection,
			"id":         incoming.ID,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	if outcome == outcomeSkipped {
		s.publish(event.TypeRecordSkipped, scope.Actor, map[string]any{
			"collection": collection,
			"id":         entity.ID,
		})
	}
	return outcome, nil
}

// Pull returns every record in the caller's partition changed strictly
// after the cursor, tombstones included, ordered by (modified_at, id)
// so the last row is a gapless resume point even when a page boundary
// falls inside a run of tied timestamps. The sentinel cursor returns
// the full dataset.
func (s *SyncService) Pull(ctx context.Context, collection string, since string, scope model.ActorScope, limit int) (model.PullResponse, error) {
	if !ValidCollection(collection) {
		return model.PullResponse{}, fmt.Errorf("%w: invalid collection %q", model.ErrValidation, collection)
	}

	cursor, err := ParseCursor(since)
	if err != nil {
		return model.PullResponse{}, err
	}

	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	records, err := s.records.ListSince(ctx, collection, cursor.At, cursor.ID, scope, limit)
	if err != nil {
		return model.PullResponse{}, err
	}

	entities := make([]model.SyncEntity, 0, len(records))
	next := cursor
	for i := range records {
		entities = append(entities, toSyncEntity(&records[i]))
		next = Cursor{At: records[i].ModifiedAt, ID: records[i].ID}
	}

	return model.PullResponse{
		Entities:   entities,
		Count:      len(entities),
		NextCursor: FormatCursor(next),
	}, nil
}

// TombstoneDiff reports which of the client's locally known ids no
// longer exist server-side. Hard deletes leave no row for the change
// feed, so this is the only way a client learns about them. An empty
// id set short-circuits: it must not read as "everything deleted".
func (s *SyncService) TombstoneDiff(ctx context.Context, collection string, knownIDs []string, scope model.ActorScope) ([]string, error) {
	if !ValidCollection(collection) {
		return nil, fmt.Errorf("%w: invalid collection %q", model.ErrValidation, collection)
	}

	deleted := make([]string, 0)
	if len(knownIDs) == 0 {
		return deleted, nil
	}

	existing, err := s.records.ExistingIDs(ctx, collection, knownIDs, scope)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, ok := existing[id]; !ok {
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

// lookupExisting resolves identity the way the store assigned it: by
// id when the client has one, else by the collection's natural key for
// records created offline before a server id existed.
func (s *SyncService) lookupExisting(ctx context.Context, collection string, id string, naturalKey string) (*model.Record, error) {
	if id != "" {
		rec, err := s.records.GetForUpdate(ctx, collection, id)
		if errors.Is(err, model.ErrRecordNotFound) {
			// First sight of a client-generated id: insert path.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}

	rec, err := s.records.FindByNaturalKey(ctx, collection, naturalKey)
	if errors.Is(err, model.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ownerShop decides the partition a pushed record lands in. Agents
// always write into their own shop regardless of what the payload
// claims; admins may write on behalf of any shop.
func (s *SyncService) ownerShop(entity model.SyncEntity, scope model.ActorScope) string {
	if scope.IsAdmin() {
		return entity.ShopID
	}
	return scope.ShopID
}

// parseClientTime normalizes the client's conflict timestamp. A
// missing value means "fresh write now"; garbage is a per-item
// validation error.
func (s *SyncService) parseClientTime(raw string) (time.Time, error) {
	if raw == "" {
		return s.clock.Now(), nil
	}

	if value, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return value.UTC(), nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid modified_at %q", model.ErrValidation, raw)
	}
	return value.UTC(), nil
}

// syncedAt preserves the client's own sync bookkeeping timestamp when
// it sent one, so its local ordering survives clock skew.
func (s *SyncService) syncedAt(raw string, fallback time.Time) *time.Time {
	if raw != "" {
		if value, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			utc := value.UTC()
			return &utc
		}
		if value, err := time.Parse(time.RFC3339, raw); err == nil {
			utc := value.UTC()
			return &utc
		}
	}
	return &fallback
}

func (s *SyncService) publish(t event.Type, actor string, payload any) {
	s.bus.Publish(event.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: s.clock.Now().Format(time.RFC3339Nano),
		ActorID:   actor,
	})
}

func eventTypeFor(deleted bool) event.Type {
	if deleted {
		return event.TypeRecordTombstoned
	}
	return event.TypeRecordApplied
}

func toSyncEntity(rec *model.Record) model.SyncEntity {
	entity := model.SyncEntity{
		ID:         rec.ID,
		ShopID:     rec.ShopID,
		Fields:     rec.Fields,
		ModifiedAt: rec.ModifiedAt.UTC().Format(time.RFC3339Nano),
		Deleted:    rec.IsDeleted(),
	}
	if rec.SyncedAt != nil {
		entity.SyncedAt = rec.SyncedAt.UTC().Format(time.RFC3339Nano)
	}
	return entity
}
