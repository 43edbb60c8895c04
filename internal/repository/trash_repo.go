package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"shopsync/internal/database"
	"shopsync/internal/model"
)

const trashColumns = `id, collection, record_id, shop_id, snapshot,
	        deleted_at, deleted_by, deletion_reason,
	        restored, restored_at, restored_by, restored_record_id`

type TrashRepository struct {
	db *database.DB
}

func NewTrashRepository(db *database.DB) *TrashRepository {
	return &TrashRepository{db: db}
}

func (r *TrashRepository) q(ctx context.Context) database.Querier {
	if tx := database.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.Pool
}

func (r *TrashRepository) Create(ctx context.Context, entry model.TrashEntry) error {
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal trash snapshot: %w", err)
	}

	_, err = r.q(ctx).Exec(ctx,
		`INSERT INTO trash_entries
		 (id, collection, record_id, shop_id, snapshot,
		  deleted_at, deleted_by, deletion_reason, restored)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)`,
		entry.ID, entry.Collection, entry.RecordID, entry.ShopID, snapshot,
		entry.DeletedAt, entry.DeletedBy, entry.DeletionReason)
	if err != nil {
		return fmt.Errorf("create trash entry: %w", err)
	}
	return nil
}

func (r *TrashRepository) FindByID(ctx context.Context, id string) (model.TrashEntry, error) {
	return r.find(ctx, id, false)
}

// FindByIDForUpdate row-locks the entry so two concurrent restores of
// the same entry cannot both observe restored=false.
func (r *TrashRepository) FindByIDForUpdate(ctx context.Context, id string) (model.TrashEntry, error) {
	return r.find(ctx, id, true)
}

func (r *TrashRepository) find(ctx context.Context, id string, forUpdate bool) (model.TrashEntry, error) {
	query := `SELECT ` + trashColumns + ` FROM trash_entries WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	entry, err := scanTrashEntry(r.q(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TrashEntry{}, model.ErrTrashEntryNotFound
	}
	if err != nil {
		return model.TrashEntry{}, fmt.Errorf("find trash entry: %w", err)
	}
	return entry, nil
}

// MarkRestored flips the entry exactly once. The restored = FALSE
// guard makes a duplicate restore visible as zero affected rows.
func (r *TrashRepository) MarkRestored(ctx context.Context, id string, actor string, restoredRecordID string, at time.Time) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE trash_entries
		 SET restored = TRUE, restored_at = $2, restored_by = $3, restored_record_id = $4
		 WHERE id = $1 AND restored = FALSE`,
		id, at, actor, restoredRecordID)
	if err != nil {
		return fmt.Errorf("mark trash entry restored: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAlreadyRestored
	}
	return nil
}

func (r *TrashRepository) List(ctx context.Context, includeRestored bool) ([]model.TrashEntry, error) {
	query := `SELECT ` + trashColumns + ` FROM trash_entries`
	if !includeRestored {
		query += ` WHERE restored = FALSE`
	}
	query += ` ORDER BY deleted_at DESC`

	rows, err := r.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list trash entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.TrashEntry, 0)
	for rows.Next() {
		entry, scanErr := scanTrashEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan trash entry: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *TrashRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM trash_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trash entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTrashEntryNotFound
	}
	return nil
}

// DeleteAllNotRestored purges every entry still awaiting restoration
// and returns how many were removed.
func (r *TrashRepository) DeleteAllNotRestored(ctx context.Context) (int, error) {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM trash_entries WHERE restored = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("empty trash: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanTrashEntry(row rowScanner) (model.TrashEntry, error) {
	var entry model.TrashEntry
	var snapshot []byte
	var restoredBy *string
	var restoredRecordID *string

	err := row.Scan(&entry.ID, &entry.Collection, &entry.RecordID, &entry.ShopID, &snapshot,
		&entry.DeletedAt, &entry.DeletedBy, &entry.DeletionReason,
		&entry.Restored, &entry.RestoredAt, &restoredBy, &restoredRecordID)
	if err != nil {
		return model.TrashEntry{}, err
	}

	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &entry.Snapshot); err != nil {
			return model.TrashEntry{}, fmt.Errorf("unmarshal trash snapshot: %w", err)
		}
	}
	if restoredBy != nil {
		entry.RestoredBy = *restoredBy
	}
	if restoredRecordID != nil {
		entry.RestoredRecordID = *restoredRecordID
	}
	return entry, nil
}
