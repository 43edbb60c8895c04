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

var trashBase = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func newTrashFixture() (*TrashService, *memTrash, *memRecords, *fakeClock) {
	trash := newMemTrash()
	records := newMemRecords()
	clock := newFakeClock(trashBase)
	audit := NewAuditService(&memAudit{}, clock)
	svc := NewTrashService(trash, records, passTx{}, clock, audit, event.NewBus())
	return svc, trash, records, clock
}

func seedTrashEntry(trash *memTrash, id string) model.TrashEntry {
	entry := model.TrashEntry{
		ID:         id,
		Collection: "clients",
		RecordID:   "orig-" + id,
		ShopID:     "shop-a",
		Snapshot:   map[string]any{"phone": "770000001", "name": "Awa"},
		DeletedAt:  trashBase.Add(-24 * time.Hour),
		DeletedBy:  "admin1",
	}
	_ = trash.Create(context.Background(), entry)
	return entry
}

func TestTrashService_Restore(t *testing.T) {
	t.Run("re-creates the snapshot under a brand-new identity", func(t *testing.T) {
		svc, trash, records, clock := newTrashFixture()
		entry := seedTrashEntry(trash, "entry-1")

		restored, err := svc.Restore(context.Background(), "entry-1", agentScope("shop-a"))
		require.NoError(t, err)

		assert.True(t, restored.Restored)
		assert.NotEmpty(t, restored.RestoredRecordID)
		// The original id stays dead; clients holding it learn of the
		// replacement through the change feed.
		assert.NotEqual(t, entry.RecordID, restored.RestoredRecordID)

		rec, err := records.Get(context.Background(), "clients", restored.RestoredRecordID)
		require.NoError(t, err)
		assert.Equal(t, "Awa", rec.Fields["name"])
		assert.Equal(t, "shop-a", rec.ShopID)
		assert.Equal(t, clock.Now(), rec.ModifiedAt)

		_, err = records.Get(context.Background(), "clients", entry.RecordID)
		assert.ErrorIs(t, err, model.ErrRecordNotFound)
	})

	t.Run("restoring twice fails and creates nothing", func(t *testing.T) {
		svc, trash, records, _ := newTrashFixture()
		seedTrashEntry(trash, "entry-2")

		_, err := svc.Restore(context.Background(), "entry-2", agentScope("shop-a"))
		require.NoError(t, err)

		_, err = svc.Restore(context.Background(), "entry-2", agentScope("shop-a"))
		assert.ErrorIs(t, err, model.ErrAlreadyRestored)
		assert.Len(t, records.byKey, 1)
	})

	t.Run("unknown entry", func(t *testing.T) {
		svc, _, _, _ := newTrashFixture()

		_, err := svc.Restore(context.Background(), "nope", agentScope("shop-a"))
		assert.ErrorIs(t, err, model.ErrTrashEntryNotFound)
	})
}

func TestTrashService_PurgeAndEmpty(t *testing.T) {
	t.Run("purge removes a single entry for good", func(t *testing.T) {
		svc, trash, _, _ := newTrashFixture()
		seedTrashEntry(trash, "entry-3")

		require.NoError(t, svc.Purge(context.Background(), "entry-3", adminScope()))

		_, err := svc.Get(context.Background(), "entry-3")
		assert.ErrorIs(t, err, model.ErrTrashEntryNotFound)
	})

	t.Run("empty skips entries already restored", func(t *testing.T) {
		svc, trash, _, _ := newTrashFixture()
		seedTrashEntry(trash, "entry-4")
		seedTrashEntry(trash, "entry-5")
		_, err := svc.Restore(context.Background(), "entry-4", agentScope("shop-a"))
		require.NoError(t, err)

		count, err := svc.Empty(context.Background(), adminScope())
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		remaining, err := svc.List(context.Background(), true)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, "entry-4", remaining[0].ID)
	})
}
