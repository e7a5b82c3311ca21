package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
	"github.com/HonoraryIndians/axon-sub001/internal/service"
)

const failureColumns = `id, identity_key, user_id, campaign_activity_id, product_id, payload, reason, kind,
	attempt_count, status, first_seen_at, last_seen_at, raw_body`

// FailureLogRepository stores payment failures awaiting reconciliation.
type FailureLogRepository struct {
	pool PoolInterface
}

// NewFailureLogRepository creates a new FailureLogRepository with the given pool.
func NewFailureLogRepository(pool *pgxpool.Pool) *FailureLogRepository {
	return &FailureLogRepository{pool: pool}
}

// NewFailureLogRepositoryWithPool creates a new FailureLogRepository with a custom pool interface.
// This is primarily used for testing.
func NewFailureLogRepositoryWithPool(pool PoolInterface) *FailureLogRepository {
	return &FailureLogRepository{pool: pool}
}

// Upsert inserts e or, if an entry with the same identity key exists,
// increments its attempt count, refreshes reason, kind and last seen and
// reopens it. e is filled in with the stored row.
func (r *FailureLogRepository) Upsert(ctx context.Context, e *model.FailureLogEntry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode failure payload: %w", err)
	}

	query := `INSERT INTO payment_failure_logs
		(identity_key, user_id, campaign_activity_id, product_id, payload, reason, kind, raw_body,
		 attempt_count, status, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, 'PENDING', $9, $9)
		ON CONFLICT (identity_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			reason = EXCLUDED.reason,
			kind = EXCLUDED.kind,
			raw_body = EXCLUDED.raw_body,
			attempt_count = payment_failure_logs.attempt_count + 1,
			status = 'PENDING',
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING ` + failureColumns

	stored, err := scanFailure(r.pool.QueryRow(ctx, query,
		e.IdentityKey, e.UserID, e.CampaignActivityID, e.ProductID, payload, e.Reason, e.Kind, e.RawBody, e.LastSeenAt))
	if err != nil {
		return wrapErr("upsert failure log", err)
	}
	*e = *stored
	return nil
}

// List returns entries matching filter, newest first.
func (r *FailureLogRepository) List(ctx context.Context, filter model.FailureLogFilter) ([]model.FailureLogEntry, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CampaignActivityID > 0 {
		args = append(args, filter.CampaignActivityID)
		conds = append(conds, fmt.Sprintf("campaign_activity_id = $%d", len(args)))
	}
	if filter.UserID > 0 {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}

	query := `SELECT ` + failureColumns + ` FROM payment_failure_logs`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(` ORDER BY last_seen_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list failure logs", err)
	}
	defer rows.Close()

	entries := []model.FailureLogEntry{}
	for rows.Next() {
		e, err := scanFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failure log: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate failure logs", err)
	}
	return entries, nil
}

// GetByID returns nil, nil if the entry is not found.
func (r *FailureLogRepository) GetByID(ctx context.Context, id int64) (*model.FailureLogEntry, error) {
	e, err := scanFailure(r.pool.QueryRow(ctx,
		`SELECT `+failureColumns+` FROM payment_failure_logs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get failure log", err)
	}
	return e, nil
}

// UpdateStatus moves an entry currently in one of from to status to.
// Returns service.ErrFailureLogNotFound if no such entry exists.
func (r *FailureLogRepository) UpdateStatus(ctx context.Context, id int64, from []model.FailureStatus, to model.FailureStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payment_failure_logs SET status = $3 WHERE id = $1 AND status = ANY($2)`,
		id, statusStrings(from), string(to))
	if err != nil {
		return wrapErr("update failure status", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrFailureLogNotFound
	}
	return nil
}

// UpdateStatusByIdentity moves the entry with the given identity key from
// any of from to status to and reports how many rows changed.
func (r *FailureLogRepository) UpdateStatusByIdentity(ctx context.Context, identityKey string, from []model.FailureStatus, to model.FailureStatus) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payment_failure_logs SET status = $3 WHERE identity_key = $1 AND status = ANY($2)`,
		identityKey, statusStrings(from), string(to))
	if err != nil {
		return 0, wrapErr("update failure status", err)
	}
	return tag.RowsAffected(), nil
}

func statusStrings(statuses []model.FailureStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanFailure(row pgx.Row) (*model.FailureLogEntry, error) {
	var (
		e       model.FailureLogEntry
		payload []byte
		status  string
	)
	err := row.Scan(
		&e.ID,
		&e.IdentityKey,
		&e.UserID,
		&e.CampaignActivityID,
		&e.ProductID,
		&payload,
		&e.Reason,
		&e.Kind,
		&e.AttemptCount,
		&status,
		&e.FirstSeenAt,
		&e.LastSeenAt,
		&e.RawBody,
	)
	if err != nil {
		return nil, err
	}
	e.Status = model.FailureStatus(status)
	if err := json.Unmarshal(payload, &e.Payload); err != nil {
		return nil, fmt.Errorf("decode failure payload: %w", err)
	}
	return &e, nil
}
