package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// ActivityLogRepository appends admission audit records.
type ActivityLogRepository struct {
	pool PoolInterface
}

// NewActivityLogRepository creates a new ActivityLogRepository with the given pool.
func NewActivityLogRepository(pool *pgxpool.Pool) *ActivityLogRepository {
	return &ActivityLogRepository{pool: pool}
}

// NewActivityLogRepositoryWithPool creates a new ActivityLogRepository with a custom pool interface.
// This is primarily used for testing.
func NewActivityLogRepositoryWithPool(pool PoolInterface) *ActivityLogRepository {
	return &ActivityLogRepository{pool: pool}
}

// Insert appends one audit record.
func (r *ActivityLogRepository) Insert(ctx context.Context, e model.ActivityLogEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_logs (campaign_activity_id, user_id, product_id, quantity, admission_order, admitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ActivityID, e.UserID, e.ProductID, e.Quantity, e.Order, e.AdmittedAt)
	if err != nil {
		return wrapErr("insert activity log", err)
	}
	return nil
}
