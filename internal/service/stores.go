package service

import (
	"context"
	"time"

	"shopsync/internal/model"
)

// RecordStore is the engine's view of the per-collection persistence
// layer. Field validation and schema concerns live behind it; the
// engine only sees identity, timestamps and the opaque field bag.
type RecordStore interface {
	Get(ctx context.Context, collection string, id string) (*model.Record, error)
	GetForUpdate(ctx context.Context, collection string, id string) (*model.Record, error)
	FindByNaturalKey(ctx context.Context, collection string, key string) (*model.Record, error)
	Insert(ctx context.Context, rec *model.Record) (string, error)
	Update(ctx context.Context, rec *model.Record) error
	ListSince(ctx context.Context, collection string, after time.Time, afterID string, scope model.ActorScope, limit int) ([]model.Record, error)
	ExistingIDs(ctx context.Context, collection string, ids []string, scope model.ActorScope) (map[string]struct{}, error)
	Delete(ctx context.Context, collection string, id string) error
}

type TrashStore interface {
	Create(ctx context.Context, entry model.TrashEntry) error
	FindByID(ctx context.Context, id string) (model.TrashEntry, error)
	FindByIDForUpdate(ctx context.Context, id string) (model.TrashEntry, error)
	MarkRestored(ctx context.Context, id string, actor string, restoredRecordID string, at time.Time) error
	List(ctx context.Context, includeRestored bool) ([]model.TrashEntry, error)
	Delete(ctx context.Context, id string) error
	DeleteAllNotRestored(ctx context.Context) (int, error)
}

type DeletionStore interface {
	Create(ctx context.Context, req model.DeletionRequest) error
	FindByID(ctx context.Context, id string) (model.DeletionRequest, error)
	FindByIDForUpdate(ctx context.Context, id string) (model.DeletionRequest, error)
	FindByReference(ctx context.Context, reference string) (model.DeletionRequest, error)
	MarkValidated(ctx context.Context, id string, admin string, at time.Time) error
	MarkDecided(ctx context.Context, id string, agent string, at time.Time, status model.DeletionStatus, trashEntryID string) error
	List(ctx context.Context, scope model.ActorScope, status model.DeletionStatus) ([]model.DeletionRequest, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// TxManager scopes a function to one storage transaction. Nested calls
// become savepoints, which is how a push batch isolates item failures
// from their siblings.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
