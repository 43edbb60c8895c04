package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsync/internal/event"
	"shopsync/internal/model"
)

var syncBase = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func newSyncFixture() (*SyncService, *memRecords, *fakeClock) {
	records := newMemRecords()
	clock := newFakeClock(syncBase)
	audit := NewAuditService(&memAudit{}, clock)
	svc := NewSyncService(records, passTx{}, clock, NewCollectionRegistry(), audit, event.NewBus(), 10, 3, 5)
	return svc, records, clock
}

func adminScope() model.ActorScope {
	return model.ActorScope{Actor: "admin1", Role: model.RoleAdmin}
}

func agentScope(shopID string) model.ActorScope {
	return model.ActorScope{Actor: "agent1", Role: model.RoleAgent, ShopID: shopID}
}

func TestSyncService_Push(t *testing.T) {
	t.Run("inserts a new record with server-owned timestamps", func(t *testing.T) {
		svc, records, clock := newSyncFixture()

		resp, err := svc.Push(context.Background(), "products", []model.SyncEntity{
			{
				Fields:     map[string]any{"reference": "PRD-001", "price": 1500},
				ModifiedAt: syncBase.Add(-time.Hour).Format(time.RFC3339Nano),
			},
		}, agentScope("shop-a"))

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Applied)
		assert.Equal(t, 0, resp.Skipped)
		assert.Empty(t, resp.Errors)

		stored, err := records.FindByNaturalKey(context.Background(), "products", "PRD-001")
		require.NoError(t, err)
		assert.NotEmpty(t, stored.ID)
		assert.Equal(t, "shop-a", stored.ShopID)
		assert.Equal(t, "agent1", stored.ModifiedBy)
		assert.True(t, stored.Synced)
		// The client clock decides conflicts but never becomes the
		// stored ordering key.
		assert.Equal(t, clock.Now(), stored.ModifiedAt)
	})

	t.Run("re-pushing an already applied write is a skip", func(t *testing.T) {
		svc, records, clock := newSyncFixture()
		entity := model.SyncEntity{
			Fields:     map[string]any{"reference": "PRD-002", "price": 900},
			ModifiedAt: syncBase.Add(-time.Minute).Format(time.RFC3339Nano),
		}

		first, err := svc.Push(context.Background(), "products", []model.SyncEntity{entity}, agentScope("shop-a"))
		require.NoError(t, err)
		require.Equal(t, 1, first.Applied)

		clock.Advance(time.Second)
		second, err := svc.Push(context.Background(), "products", []model.SyncEntity{entity}, agentScope("shop-a"))
		require.NoError(t, err)
		assert.Equal(t, 0, second.Applied)
		assert.Equal(t, 1, second.Skipped)

		stored, err := records.FindByNaturalKey(context.Background(), "products", "PRD-002")
		require.NoError(t, err)
		assert.Equal(t, 900, stored.Fields["price"])
	})

	t.Run("strictly later client write replaces the stored version in full", func(t *testing.T) {
		svc, records, clock := newSyncFixture()
		records.seed(model.Record{
			ID:         "rec-1",
			Collection: "clients",
			ShopID:     "shop-a",
			Fields:     map[string]any{"phone": "770000001", "name": "old", "note": "keep?"},
			NaturalKey: "770000001",
			ModifiedAt: syncBase,
		})

		clock.Advance(2 * time.Hour)
		resp, err := svc.Push(context.Background(), "clients", []model.SyncEntity{
			{
				ID:         "rec-1",
				Fields:     map[string]any{"phone": "770000001", "name": "new"},
				ModifiedAt: syncBase.Add(time.Hour).Format(time.RFC3339Nano),
			},
		}, agentScope("shop-a"))

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Applied)

		stored, err := records.Get(context.Background(), "clients", "rec-1")
		require.NoError(t, err)
		assert.Equal(t, "new", stored.Fields["name"])
		// Loser's fields are discarded, never merged.
		assert.NotContains(t, stored.Fields, "note")
		assert.Equal(t, clock.Now(), stored.ModifiedAt)
	})

	t.Run("stale client write is skipped regardless of arrival order", func(t *testing.T) {
		svc, records, _ := newSyncFixture()
		records.seed(model.Record{
			ID:         "rec-2",
			Collection: "clients",
			ShopID:     "shop-a",
			Fields:     map[string]any{"phone": "770000002", "name": "current"},
			ModifiedAt: syncBase,
		})

		resp, err := svc.Push(context.Background(), "clients", []model.SyncEntity{
			{
				ID:         "rec-2",
				Fields:     map[string]any{"phone": "770000002", "name": "stale"},
				ModifiedAt: syncBase.Add(-time.Hour).Format(time.RFC3339Nano),
			},
		}, agentScope("shop-a"))

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Skipped)

		stored, err := records.Get(context.Background(), "clients", "rec-2")
		require.NoError(t, err)
		assert.Equal(t, "current", stored.Fields["name"])
	})

	t.Run("deleted flag sets a tombstone", func(t *testing.T) {
		svc, records, clock := newSyncFixture()
		records.seed(model.Record{
			ID:         "rec-3",
			Collection: "credits",
			ShopID:     "shop-a",
			Fields:     map[string]any{"reference": "CR-1"},
			ModifiedAt: syncBase.Add(-time.Hour),
		})

		resp, err := svc.Push(context.Background(), "credits", []model.SyncEntity{
			{
				ID:         "rec-3",
				Fields:     map[string]any{"reference": "CR-1"},
				ModifiedAt: syncBase.Format(time.RFC3339Nano),
				Deleted:    true,
			},
		}, agentScope("shop-a"))

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Applied)

		stored, err := records.Get(context.Background(), "credits", "rec-3")
		require.NoError(t, err)
		require.NotNil(t, stored.DeletedAt)
		assert.Equal(t, clock.Now(), *stored.DeletedAt)
		assert.Equal(t, model.StateTombstoned, stored.State())
	})

	t.Run("agent writes always land in the agent's own shop", func(t *testing.T) {
		svc, records, _ := newSyncFixture()

		_, err := svc.Push(context.Background(), "products", []model.SyncEntity{
			{
				ShopID:     "shop-b",
				Fields:     map[string]any{"reference": "PRD-003"},
				ModifiedAt: syncBase.Format(time.RFC3339Nano),
			},
		}, agentScope("shop-a"))
		require.NoError(t, err)

		stored, err := records.FindByNaturalKey(context.Background(), "products", "PRD-003")
		require.NoError(t, err)
		assert.Equal(t, "shop-a", stored.ShopID)
	})

	t.Run("agent touching another shop's record fails that item only", func(t *testing.T) {
		svc, records, _ := newSyncFixture()
		records.seed(model.Record{
			ID:         "foreign-1",
			Collection: "clients",
			ShopID:     "shop-b",
			Fields:     map[string]any{"phone": "770000009"},
			ModifiedAt: syncBase.Add(-time.Hour),
		})

		resp, err := svc.Push(context.Background(), "clients", []model.SyncEntity{
			{
				ID:         "foreign-1",
				Fields:     map[string]any{"phone": "770000009", "name": "stolen"},
				ModifiedAt: syncBase.Format(time.RFC3339Nano),
			},
			{
				Fields:     map[string]any{"phone": "770000010"},
				ModifiedAt: syncBase.Format(time.RFC3339Nano),
			},
		}, agentScope("shop-a"))

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Applied)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "foreign-1", resp.Errors[0].ID)

		stored, err := records.Get(context.Background(), "clients", "foreign-1")
		require.NoError(t, err)
		assert.NotContains(t, stored.Fields, "name")
	})

	t.Run("one failing item does not sink its siblings", func(t *testing.T) {
		svc, records, _ := newSyncFixture()
		records.seed(model.Record{
			ID:         "rec-ok",
			Collection: "clients",
			ShopID:     "shop-a",
			Fields:     map[string]any{"phone": "770000011"},
			ModifiedAt: syncBase.Add(-time.Hour),
		})
		records.seed(model.Record{
			ID:         "rec-bad",
			Collection: "clients",
			ShopID:     "shop-a",
			Fields:     map[string]any{"phone": "770000012"},
			ModifiedAt: syncBase.Add(-time.Hour),
		})
		records.updateErr["rec-bad"] = assert.AnError

		resp, err := svc.Push(context.Background(), "clients", []model.SyncEntity{
			{ID: "rec-bad", Fields: map[string]any{"phone": "770000012"}, ModifiedAt: syncBase.Format(time.RFC3339Nano)},
			{ID: "rec-ok", Fields: map[string]any{"phone": "770000011", "name": "updated"}, ModifiedAt: syncBase.Format(time.RFC3339Nano)},
		}, agentScope("shop-a"))

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Applied)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "rec-bad", resp.Errors[0].ID)

		stored, err := records.Get(context.Background(), "clients", "rec-ok")
		require.NoError(t, err)
		assert.Equal(t, "updated", stored.Fields["name"])
	})

	t.Run("rejects oversized batches outright", func(t *testing.T) {
		svc, _, _ := newSyncFixture()

		entities := make([]model.SyncEntity, 11)
		for i := range entities {
			entities[i] = model.SyncEntity{Fields: map[string]any{"reference": "x"}}
		}

		_, err := svc.Push(context.Background(), "products", entities, adminScope())
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("item without id or natural key is a per-item error", func(t *testing.T) {
		svc, _, _ := newSyncFixture()

		resp, err := svc.Push(context.Background(), "products", []model.SyncEntity{
			{Fields: map[string]any{"price": 100}},
		}, adminScope())

		require.NoError(t, err)
		assert.Equal(t, 0, resp.Applied)
		require.Len(t, resp.Errors, 1)
	})

	t.Run("rejects collection names a client could not produce", func(t *testing.T) {
		svc, _, _ := newSyncFixture()

		_, err := svc.Push(context.Background(), "Products; DROP", nil, adminScope())
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestSyncService_Pull(t *testing.T) {
	seedFeed := func(records *memRecords, n int) {
		for i := 0; i < n; i++ {
			records.seed(model.Record{
				ID:         string(rune('a' + i)),
				Collection: "clients",
				ShopID:     "shop-a",
				Fields:     map[string]any{"phone": "77000000" + string(rune('0'+i))},
				ModifiedAt: syncBase.Add(time.Duration(i) * time.Minute),
			})
		}
	}

	t.Run("pages the feed without gaps or duplicates", func(t *testing.T) {
		svc, records, _ := newSyncFixture()
		seedFeed(records, 5)

		collected := make(map[string]int)
		cursor := "0"
		for rounds := 0; rounds < 10; rounds++ {
			resp, err := svc.Pull(context.Background(), "clients", cursor, adminScope(), 2)
			require.NoError(t, err)
			if resp.Count == 0 {
				// An empty page echoes the cursor back.
				assert.Equal(t, cursor, resp.NextCursor)
				break
			}
			for _, e := range resp.Entities {
				collected[e.ID]++
			}
			cursor = resp.NextCursor
		}

		assert.Len(t, collected, 5)
		for id, seen := range collected {
			assert.Equal(t, 1, seen, "record %s delivered more than once", id)
		}
	})

	t.Run("a page boundary inside tied timestamps loses nothing", func(t *testing.T) {
		svc, records, _ := newSyncFixture()
		// One push batch is stamped from a single clock read, so runs
		// of identical modified_at values are the normal case.
		for _, id := range []string{"a", "b", "c"} {
			records.seed(model.Record{
				ID:         id,
				Collection: "clients",
				ShopID:     "shop-a",
				Fields:     map[string]any{"phone": id},
				ModifiedAt: syncBase,
			})
		}

		collected := make(map[string]int)
		cursor := "0"
		for rounds := 0; rounds < 10; rounds++ {
			resp, err := svc.Pull(context.Background(), "clients", cursor, adminScope(), 2)
			require.NoError(t, err)
			if resp.Count == 0 {
				break
			}
			for _, e := range resp.Entities {
				collected[e.ID]++
			}
			cursor = resp.NextCursor
		}

		assert.Len(t, collected, 3)
		for id, seen := range collected {
			assert.Equal(t, 1, seen, "record %s delivered more than once", id)
		}
	})

	t.Run("includes tombstones with the deleted flag", func(t *testing.T) {
		svc, records, _ := newSyncFixture()
		deletedAt := syncBase.Add(time.Minute)
		records.seed(model.Record{
			ID:         "dead-1",
			Collection: "clients",
			ShopID:     "shop-a",
			Fields:     map[string]any{"phone": "770000020"},
			ModifiedAt: deletedAt,
			DeletedAt:  &deletedAt,
		})

		resp, err := svc.Pull(context.Background(), "clients", "0", adminScope(), 0)
		require.NoError(t, err)
		require.Equal(t, 1, resp.Count)
		assert.True(t, resp.Entities[0].Deleted)
	})

	t.Run("agents only see their own shop's partition", func(t *testing.T) {
		svc, records, _ := newSyncFixture()
		records.seed(model.Record{
			ID: "mine", Collection: "clients", ShopID: "shop-a",
			Fields: map[string]any{"phone": "1"}, ModifiedAt: syncBase,
		})
		records.seed(model.Record{
			ID: "theirs", Collection: "clients", ShopID: "shop-b",
			Fields: map[string]any{"phone": "2"}, ModifiedAt: syncBase,
		})

		resp, err := svc.Pull(context.Background(), "clients", "0", agentScope("shop-a"), 0)
		require.NoError(t, err)
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "mine", resp.Entities[0].ID)
	})

	t.Run("caps the page size at the configured maximum", func(t *testing.T) {
		svc, records, _ := newSyncFixture()
		seedFeed(records, 8)

		resp, err := svc.Pull(context.Background(), "clients", "0", adminScope(), 100)
		require.NoError(t, err)
		assert.Equal(t, 5, resp.Count)
	})

	t.Run("rejects a malformed cursor", func(t *testing.T) {
		svc, _, _ := newSyncFixture()

		_, err := svc.Pull(context.Background(), "clients", "last tuesday", adminScope(), 0)
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestSyncService_TombstoneDiff(t *testing.T) {
	t.Run("reports ids the server no longer has", func(t *testing.T) {
		svc, records, _ := newSyncFixture()
		records.seed(model.Record{ID: "a", Collection: "products", ShopID: "shop-a", ModifiedAt: syncBase})
		records.seed(model.Record{ID: "c", Collection: "products", ShopID: "shop-a", ModifiedAt: syncBase})

		deleted, err := svc.TombstoneDiff(context.Background(), "products", []string{"a", "b", "c", "b"}, agentScope("shop-a"))
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, deleted)
	})

	t.Run("an empty id set never reads as everything deleted", func(t *testing.T) {
		svc, records, _ := newSyncFixture()
		records.seed(model.Record{ID: "a", Collection: "products", ShopID: "shop-a", ModifiedAt: syncBase})

		deleted, err := svc.TombstoneDiff(context.Background(), "products", nil, agentScope("shop-a"))
		require.NoError(t, err)
		assert.Empty(t, deleted)
		assert.Zero(t, records.diffCalls)
	})
}
