package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"shopsync/internal/model"
)

// fakeClock hands out a controllable now so tests can order writes.
type fakeClock struct {
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start.UTC()}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// passTx satisfies TxManager without a database. Item isolation is
// exercised by failing store calls before they mutate anything.
type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memRecords struct {
	byKey map[string]*model.Record // collection + "/" + id

	updateErr map[string]error // id -> forced Update failure
	diffCalls int
}

func newMemRecords() *memRecords {
	return &memRecords{
		byKey:     make(map[string]*model.Record),
		updateErr: make(map[string]error),
	}
}

func (m *memRecords) key(collection string, id string) string {
	return collection + "/" + id
}

func (m *memRecords) seed(rec model.Record) {
	clone := rec
	m.byKey[m.key(rec.Collection, rec.ID)] = &clone
}

func (m *memRecords) Get(_ context.Context, collection string, id string) (*model.Record, error) {
	rec, ok := m.byKey[m.key(collection, id)]
	if !ok {
		return nil, model.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *memRecords) GetForUpdate(ctx context.Context, collection string, id string) (*model.Record, error) {
	return m.Get(ctx, collection, id)
}

func (m *memRecords) FindByNaturalKey(_ context.Context, collection string, key string) (*model.Record, error) {
	for _, rec := range m.byKey {
		if rec.Collection == collection && rec.NaturalKey != "" && rec.NaturalKey == key {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, model.ErrRecordNotFound
}

func (m *memRecords) Insert(_ context.Context, rec *model.Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	clone := *rec
	m.byKey[m.key(rec.Collection, rec.ID)] = &clone
	return rec.ID, nil
}

func (m *memRecords) Update(_ context.Context, rec *model.Record) error {
	if err, forced := m.updateErr[rec.ID]; forced {
		return err
	}
	if _, ok := m.byKey[m.key(rec.Collection, rec.ID)]; !ok {
		return model.ErrRecordNotFound
	}
	clone := *rec
	m.byKey[m.key(rec.Collection, rec.ID)] = &clone
	return nil
}

func (m *memRecords) ListSince(_ context.Context, collection string, after time.Time, afterID string, scope model.ActorScope, limit int) ([]model.Record, error) {
	afterWatermark := func(rec *model.Record) bool {
		if rec.ModifiedAt.After(after) {
			return true
		}
		return rec.ModifiedAt.Equal(after) && rec.ID > afterID
	}

	matched := make([]model.Record, 0)
	for _, rec := range m.byKey {
		if rec.Collection != collection || !afterWatermark(rec) {
			continue
		}
		if !scope.IsAdmin() && rec.ShopID != scope.ShopID {
			continue
		}
		matched = append(matched, *rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ModifiedAt.Equal(matched[j].ModifiedAt) {
			return matched[i].ModifiedAt.Before(matched[j].ModifiedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *memRecords) ExistingIDs(_ context.Context, collection string, ids []string, scope model.ActorScope) (map[string]struct{}, error) {
	m.diffCalls++

	existing := make(map[string]struct{})
	for _, id := range ids {
		rec, ok := m.byKey[m.key(collection, id)]
		if !ok {
			continue
		}
		if !scope.IsAdmin() && rec.ShopID != scope.ShopID {
			continue
		}
		existing[id] = struct{}{}
	}
	return existing, nil
}

func (m *memRecords) Delete(_ context.Context, collection string, id string) error {
	k := m.key(collection, id)
	if _, ok := m.byKey[k]; !ok {
		return model.ErrRecordNotFound
	}
	delete(m.byKey, k)
	return nil
}

type memTrash struct {
	entries map[string]*model.TrashEntry
}

func newMemTrash() *memTrash {
	return &memTrash{entries: make(map[string]*model.TrashEntry)}
}

func (m *memTrash) Create(_ context.Context, entry model.TrashEntry) error {
	clone := entry
	m.entries[entry.ID] = &clone
	return nil
}

func (m *memTrash) FindByID(_ context.Context, id string) (model.TrashEntry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return model.TrashEntry{}, model.ErrTrashEntryNotFound
	}
	return *entry, nil
}

func (m *memTrash) FindByIDForUpdate(ctx context.Context, id string) (model.TrashEntry, error) {
	return m.FindByID(ctx, id)
}

func (m *memTrash) MarkRestored(_ context.Context, id string, actor string, restoredRecordID string, at time.Time) error {
	entry, ok := m.entries[id]
	if !ok {
		return model.ErrTrashEntryNotFound
	}
	if entry.Restored {
		return model.ErrAlreadyRestored
	}
	entry.Restored = true
	entry.RestoredBy = actor
	entry.RestoredRecordID = restoredRecordID
	ts := at
	entry.RestoredAt = &ts
	return nil
}

func (m *memTrash) List(_ context.Context, includeRestored bool) ([]model.TrashEntry, error) {
	out := make([]model.TrashEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		if !includeRestored && entry.Restored {
			continue
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedAt.Before(out[j].DeletedAt) })
	return out, nil
}

func (m *memTrash) Delete(_ context.Context, id string) error {
	if _, ok := m.entries[id]; !ok {
		return model.ErrTrashEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *memTrash) DeleteAllNotRestored(_ context.Context) (int, error) {
	count := 0
	for id, entry := range m.entries {
		if entry.Restored {
			continue
		}
		delete(m.entries, id)
		count++
	}
	return count, nil
}

type memDeletions struct {
	requests map[string]*model.DeletionRequest

	// missFinds makes the next N reference lookups come back empty,
	// simulating a concurrent Create racing past the idempotency check.
	missFinds int
}

func newMemDeletions() *memDeletions {
	return &memDeletions{requests: make(map[string]*model.DeletionRequest)}
}

func (m *memDeletions) Create(_ context.Context, req model.DeletionRequest) error {
	for _, existing := range m.requests {
		if existing.Reference == req.Reference {
			return model.ErrDuplicateReference
		}
	}
	clone := req
	m.requests[req.ID] = &clone
	return nil
}

func (m *memDeletions) FindByID(_ context.Context, id string) (model.DeletionRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return model.DeletionRequest{}, model.ErrDeletionNotFound
	}
	return *req, nil
}

func (m *memDeletions) FindByIDForUpdate(ctx context.Context, id string) (model.DeletionRequest, error) {
	return m.FindByID(ctx, id)
}

func (m *memDeletions) FindByReference(_ context.Context, reference string) (model.DeletionRequest, error) {
	if m.missFinds > 0 {
		m.missFinds--
		return model.DeletionRequest{}, model.ErrDeletionNotFound
	}
	for _, req := range m.requests {
		if req.Reference == reference {
			return *req, nil
		}
	}
	return model.DeletionRequest{}, model.ErrDeletionNotFound
}

func (m *memDeletions) MarkValidated(_ context.Context, id string, admin string, at time.Time) error {
	req, ok := m.requests[id]
	if !ok {
		return model.ErrDeletionNotFound
	}
	if req.Status != model.DeletionRequested {
		return model.ErrPreconditionFailed
	}
	req.Status = model.DeletionAdminValidated
	req.AdminValidatedBy = admin
	ts := at
	req.AdminValidatedAt = &ts
	return nil
}

func (m *memDeletions) MarkDecided(_ context.Context, id string, agent string, at time.Time, status model.DeletionStatus, trashEntryID string) error {
	req, ok := m.requests[id]
	if !ok {
		return model.ErrDeletionNotFound
	}
	if req.Status != model.DeletionAdminValidated {
		return model.ErrPreconditionFailed
	}
	req.Status = status
	req.AgentDecisionBy = agent
	ts := at
	req.AgentDecisionAt = &ts
	req.TrashEntryID = trashEntryID
	return nil
}

func (m *memDeletions) List(_ context.Context, scope model.ActorScope, status model.DeletionStatus) ([]model.DeletionRequest, error) {
	out := make([]model.DeletionRequest, 0)
	for _, req := range m.requests {
		if status != "" && req.Status != status {
			continue
		}
		if !scope.IsAdmin() && req.ShopID != scope.ShopID {
			continue
		}
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

type memAudit struct {
	entries []model.AuditEntry
}

func (m *memAudit) Log(_ context.Context, entry model.AuditEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAudit) Query(_ context.Context, _ model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	return m.entries, model.Meta{Total: len(m.entries)}, nil
}
