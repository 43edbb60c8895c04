package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"shopsync/internal/database"
	"shopsync/internal/model"
)

const deletionColumns = `id, reference, collection, record_id, shop_id, reason, status,
	        requested_by, requested_at,
	        admin_validated_by, admin_validated_at,
	        agent_decision_by, agent_decision_at, trash_entry_id`

type DeletionRepository struct {
	db *database.DB
}

func NewDeletionRepository(db *database.DB) *DeletionRepository {
	return &DeletionRepository{db: db}
}

func (r *DeletionRepository) q(ctx context.Context) database.Querier {
	if tx := database.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.Pool
}

func (r *DeletionRepository) Create(ctx context.Context, req model.DeletionRequest) error {
	_, err := r.q(ctx).Exec(ctx,
		`INSERT INTO deletion_requests
		 (id, reference, collection, record_id, shop_id, reason, status, requested_by, requested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		req.ID, req.Reference, req.Collection, req.RecordID, req.ShopID,
		req.Reason, req.Status, req.RequestedBy, req.RequestedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.ErrDuplicateReference
		}
		return fmt.Errorf("create deletion request: %w", err)
	}
	return nil
}

func (r *DeletionRepository) FindByID(ctx context.Context, id string) (model.DeletionRequest, error) {
	return r.find(ctx, `id = $1`, id, false)
}

// FindByIDForUpdate locks the request row so concurrent transitions
// serialize; the status check that follows then sees committed state.
func (r *DeletionRepository) FindByIDForUpdate(ctx context.Context, id string) (model.DeletionRequest, error) {
	return r.find(ctx, `id = $1`, id, true)
}

// FindByReference resolves the caller-supplied idempotency token.
func (r *DeletionRepository) FindByReference(ctx context.Context, reference string) (model.DeletionRequest, error) {
	return r.find(ctx, `reference = $1`, reference, false)
}

func (r *DeletionRepository) find(ctx context.Context, where string, arg string, forUpdate bool) (model.DeletionRequest, error) {
	query := `SELECT ` + deletionColumns + ` FROM deletion_requests WHERE ` + where
	if forUpdate {
		query += ` FOR UPDATE`
	}

	req, err := scanDeletionRequest(r.q(ctx).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DeletionRequest{}, model.ErrDeletionNotFound
	}
	if err != nil {
		return model.DeletionRequest{}, fmt.Errorf("find deletion request: %w", err)
	}
	return req, nil
}

// MarkValidated advances requested -> admin_validated. The status
// guard in the WHERE clause turns any other starting state into zero
// affected rows, which the service reports as a precondition failure.
func (r *DeletionRepository) MarkValidated(ctx context.Context, id string, admin string, at time.Time) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE deletion_requests
		 SET status = $2, admin_validated_by = $3, admin_validated_at = $4
		 WHERE id = $1 AND status = $5`,
		id, model.DeletionAdminValidated, admin, at, model.DeletionRequested)
	if err != nil {
		return fmt.Errorf("validate deletion request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPreconditionFailed
	}
	return nil
}

// MarkDecided moves admin_validated into one of the two terminal
// states and, on approval, links the trash entry created in the same
// transaction.
func (r *DeletionRepository) MarkDecided(ctx context.Context, id string, agent string, at time.Time, status model.DeletionStatus, trashEntryID string) error {
	var trashID *string
	if trashEntryID != "" {
		trashID = &trashEntryID
	}

	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE deletion_requests
		 SET status = $2, agent_decision_by = $3, agent_decision_at = $4, trash_entry_id = $5
		 WHERE id = $1 AND status = $6`,
		id, status, agent, at, trashID, model.DeletionAdminValidated)
	if err != nil {
		return fmt.Errorf("decide deletion request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPreconditionFailed
	}
	return nil
}

// List returns requests visible to the caller, optionally filtered by
// status. Agents only see requests targeting their own shop.
func (r *DeletionRepository) List(ctx context.Context, scope model.ActorScope, status model.DeletionStatus) ([]model.DeletionRequest, error) {
	query := `SELECT ` + deletionColumns + ` FROM deletion_requests`
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if !scope.IsAdmin() {
		args = append(args, scope.ShopID)
		where = append(where, fmt.Sprintf("shop_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	for i, clause := range where {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY requested_at DESC`

	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deletion requests: %w", err)
	}
	defer rows.Close()

	requests := make([]model.DeletionRequest, 0)
	for rows.Next() {
		req, scanErr := scanDeletionRequest(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan deletion request: %w", scanErr)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanDeletionRequest(row rowScanner) (model.DeletionRequest, error) {
	var req model.DeletionRequest
	var trashEntryID *string

	err := row.Scan(&req.ID, &req.Reference, &req.Collection, &req.RecordID, &req.ShopID,
		&req.Reason, &req.Status, &req.RequestedBy, &req.RequestedAt,
		&req.AdminValidatedBy, &req.AdminValidatedAt,
		&req.AgentDecisionBy, &req.AgentDecisionAt, &trashEntryID)
	if err != nil {
		return model.DeletionRequest{}, err
	}

	if trashEntryID != nil {
		req.TrashEntryID = *trashEntryID
	}
	return req, nil
}
