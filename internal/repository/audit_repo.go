package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shopsync/internal/database"
	"shopsync/internal/model"
)

type AuditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) q(ctx context.Context) database.Querier {
	if tx := database.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.Pool
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	var beforeJSON, afterJSON []byte
	var err error

	if entry.Before != nil {
		beforeJSON, err = json.Marshal(entry.Before)
		if err != nil {
			return fmt.Errorf("marshal before data: %w", err)
		}
	}
	if entry.After != nil {
		afterJSON, err = json.Marshal(entry.After)
		if err != nil {
			return fmt.Errorf("marshal after data: %w", err)
		}
	}

	occurredAt, err := parseAuditTime(entry.OccurredAt)
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	_, err = r.q(ctx).Exec(ctx,
		`INSERT INTO audit_entries
		 (action, occurred_at, actor_user_id, actor_username, actor_role, actor_ip,
		  status, resource, before_data, after_data, error_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.Action, occurredAt,
		entry.Actor.UserID, entry.Actor.Username, entry.Actor.Role, entry.Actor.IP,
		entry.Status, entry.Resource, beforeJSON, afterJSON, entry.Error)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if action := strings.TrimSpace(query.Action); action != "" {
		where = append(where, fmt.Sprintf("lower(action) = lower($%d)", argIdx))
		args = append(args, action)
		argIdx++
	}
	if actorID := strings.TrimSpace(query.ActorID); actorID != "" {
		where = append(where, fmt.Sprintf("actor_user_id = $%d", argIdx))
		args = append(args, actorID)
		argIdx++
	}
	if status := strings.TrimSpace(query.Status); status != "" {
		where = append(where, fmt.Sprintf("lower(status) = lower($%d)", argIdx))
		args = append(args, status)
		argIdx++
	}
	if path := strings.TrimSpace(query.Path); path != "" {
		where = append(where, fmt.Sprintf("resource ILIKE $%d", argIdx))
		args = append(args, "%"+path+"%")
		argIdx++
	}
	if from := strings.TrimSpace(query.From); from != "" {
		at, err := parseAuditTime(from)
		if err != nil {
			return nil, model.Meta{}, fmt.Errorf("%w: invalid 'from' datetime", model.ErrInvalidInput)
		}
		where = append(where, fmt.Sprintf("occurred_at >= $%d", argIdx))
		args = append(args, at)
		argIdx++
	}
	if to := strings.TrimSpace(query.To); to != "" {
		at, err := parseAuditTime(to)
		if err != nil {
			return nil, model.Meta{}, fmt.Errorf("%w: invalid 'to' datetime", model.ErrInvalidInput)
		}
		where = append(where, fmt.Sprintf("occurred_at <= $%d", argIdx))
		args = append(args, at)
		argIdx++
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.q(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_entries`+whereSQL, args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
	}

	listSQL := fmt.Sprintf(
		`SELECT id, action, occurred_at, actor_user_id, actor_username, actor_role, actor_ip,
		        status, resource, before_data, after_data, error_text
		 FROM audit_entries%s
		 ORDER BY occurred_at DESC
		 LIMIT $%d OFFSET $%d`, whereSQL, argIdx, argIdx+1)
	args = append(args, query.Limit, (query.Page-1)*query.Limit)

	rows, err := r.q(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var entry model.AuditEntry
		var occurredAt time.Time
		var beforeJSON, afterJSON []byte

		if err := rows.Scan(&entry.ID, &entry.Action, &occurredAt,
			&entry.Actor.UserID, &entry.Actor.Username, &entry.Actor.Role, &entry.Actor.IP,
			&entry.Status, &entry.Resource, &beforeJSON, &afterJSON, &entry.Error); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.OccurredAt = occurredAt.Format(time.RFC3339Nano)
		if len(beforeJSON) > 0 {
			var before any
			if json.Unmarshal(beforeJSON, &before) == nil {
				entry.Before = before
			}
		}
		if len(afterJSON) > 0 {
			var after any
			if json.Unmarshal(afterJSON, &after) == nil {
				entry.After = after
			}
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Meta{}, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}

	meta := model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages}
	return entries, meta, nil
}

func parseAuditTime(raw string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}

	return value.UTC(), nil
}
