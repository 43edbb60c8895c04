package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"shopsync/internal/database"
	"shopsync/internal/model"
)

const recordColumns = `id, collection, shop_id, natural_key, fields,
	        modified_at, modified_by, deleted_at, synced, synced_at`

// RecordRepository is the generic store behind every synchronized
// collection. It is the sole id authority: inserts without an id get a
// server-generated one, and a client-supplied id is only trusted after
// its first sight here.
type RecordRepository struct {
	db *database.DB
}

func NewRecordRepository(db *database.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// q routes SQL through the transaction carried in ctx when there is
// one, so a service-level WithinTx covers every call inside it.
func (r *RecordRepository) q(ctx context.Context) database.Querier {
	if tx := database.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.Pool
}

func (r *RecordRepository) Get(ctx context.Context, collection string, id string) (*model.Record, error) {
	return r.get(ctx, collection, id, false)
}

// GetForUpdate takes a row lock on the record for the duration of the
// surrounding transaction, serializing concurrent reconciliations of
// the same id.
func (r *RecordRepository) GetForUpdate(ctx context.Context, collection string, id string) (*model.Record, error) {
	return r.get(ctx, collection, id, true)
}

func (r *RecordRepository) get(ctx context.Context, collection string, id string, forUpdate bool) (*model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE collection = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rec, err := scanRecord(r.q(ctx).QueryRow(ctx, query, collection, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// FindByNaturalKey locates a record created by another client before a
// server id existed for it. Only rows that declared a natural key at
// insert time are candidates.
func (r *RecordRepository) FindByNaturalKey(ctx context.Context, collection string, key string) (*model.Record, error) {
	if key == "" {
		return nil, model.ErrRecordNotFound
	}

	rec, err := scanRecord(r.q(ctx).QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE collection = $1 AND natural_key = $2 FOR UPDATE`,
		collection, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record by natural key: %w", err)
	}
	return rec, nil
}

// Insert writes a new record and returns its identity. An empty id is
// replaced with a server-generated one; rec is updated in place.
func (r *RecordRepository) Insert(ctx context.Context, rec *model.Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", fmt.Errorf("marshal record fields: %w", err)
	}

	_, err = r.q(ctx).Exec(ctx,
		`INSERT INTO records
		 (id, collection, shop_id, natural_key, fields,
		  modified_at, modified_by, deleted_at, synced, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Collection, rec.ShopID, rec.NaturalKey, fields,
		rec.ModifiedAt, rec.ModifiedBy, rec.DeletedAt, rec.Synced, rec.SyncedAt)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return rec.ID, nil
}

func (r *RecordRepository) Update(ctx context.Context, rec *model.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal record fields: %w", err)
	}

	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE records
		 SET shop_id = $3, natural_key = $4, fields = $5,
		     modified_at = $6, modified_by = $7, deleted_at = $8,
		     synced = $9, synced_at = $10
		 WHERE collection = $1 AND id = $2`,
		rec.Collection, rec.ID, rec.ShopID, rec.NaturalKey, fields,
		rec.ModifiedAt, rec.ModifiedBy, rec.DeletedAt, rec.Synced, rec.SyncedAt)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRecordNotFound
	}
	return nil
}

// ListSince returns records strictly after the (modified_at, id)
// watermark, ordered the same way so callers can resume from the last
// row. The id tie-break matters: a page boundary can fall inside a run
// of records sharing one modified_at, and a timestamp-only comparison
// would hide the rest of that run from the next page. Tombstones are
// included: soft deletion bumps modified_at.
func (r *RecordRepository) ListSince(ctx context.Context, collection string, after time.Time, afterID string, scope model.ActorScope, limit int) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records
	          WHERE collection = $1 AND (modified_at, id) > ($2, $3)`
	args := []any{collection, after, afterID}

	if !scope.IsAdmin() {
		query += ` AND shop_id = $4`
		args = append(args, scope.ShopID)
	}

	query += fmt.Sprintf(` ORDER BY modified_at ASC, id ASC LIMIT %d`, limit)

	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records since: %w", err)
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan record: %w", scanErr)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ExistingIDs reports which of the given ids still have a row, live or
// tombstoned, within the caller's partition. Single set-membership
// query regardless of len(ids).
func (r *RecordRepository) ExistingIDs(ctx context.Context, collection string, ids []string, scope model.ActorScope) (map[string]struct{}, error) {
	query := `SELECT id FROM records WHERE collection = $1 AND id = ANY($2)`
	args := []any{collection, ids}

	if !scope.IsAdmin() {
		query += ` AND shop_id = $3`
		args = append(args, scope.ShopID)
	}

	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("check existing ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan record id: %w", err)
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

// Delete removes the row entirely. The approval flow is the only
// caller; it snapshots the record into the trash first.
func (r *RecordRepository) Delete(ctx context.Context, collection string, id string) error {
	tag, err := r.q(ctx).Exec(ctx,
		`DELETE FROM records WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRecordNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.Record, error) {
	var rec model.Record
	var fields []byte

	err := row.Scan(&rec.ID, &rec.Collection, &rec.ShopID, &rec.NaturalKey, &fields,
		&rec.ModifiedAt, &rec.ModifiedBy, &rec.DeletedAt, &rec.Synced, &rec.SyncedAt)
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal record fields: %w", err)
		}
	}
	return &rec, nil
}
