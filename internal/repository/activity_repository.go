package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
	"github.com/HonoraryIndians/axon-sub001/internal/service"
	"github.com/HonoraryIndians/axon-sub001/pkg/database"
)

const activityColumns = `id, campaign_id, product_id, name, activity_type, limit_count, remaining_count,
	status, start_date, end_date, price::text, filters, created_at`

// ActivityRepository provides data access for campaign activities using pgx.
type ActivityRepository struct {
	pool PoolInterface
}

// NewActivityRepository creates a new ActivityRepository with the given pool.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// NewActivityRepositoryWithPool creates a new ActivityRepository with a custom pool interface.
// This is primarily used for testing.
func NewActivityRepositoryWithPool(pool PoolInterface) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Insert stores a new activity and fills in its id and created_at.
func (r *ActivityRepository) Insert(ctx context.Context, a *model.CampaignActivity) error {
	filters, err := json.Marshal(a.Filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}

	query := `INSERT INTO campaign_activities
		(campaign_id, product_id, name, activity_type, limit_count, remaining_count, status, start_date, end_date, price, filters)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11)
		RETURNING id, created_at`

	err = r.pool.QueryRow(ctx, query,
		a.CampaignID, a.ProductID, a.Name, string(a.ActivityType), a.LimitCount, a.RemainingCount,
		string(a.Status), a.StartDate, a.EndDate, a.Price.String(), filters,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return wrapErr("insert activity", err)
	}
	return nil
}

// GetByID retrieves an activity by id.
// Returns nil, nil if the activity is not found (service layer handles this).
func (r *ActivityRepository) GetByID(ctx context.Context, id int64) (*model.CampaignActivity, error) {
	query := `SELECT ` + activityColumns + ` FROM campaign_activities WHERE id = $1`

	activity, err := scanActivity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(fmt.Sprintf("get activity %d", id), err)
	}
	return activity, nil
}

// UpdateStatus moves an activity from status from to status to.
// Returns service.ErrInvalidTransition when the row is missing or its status
// changed concurrently.
func (r *ActivityRepository) UpdateStatus(ctx context.Context, id int64, from, to model.ActivityStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE campaign_activities SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return wrapErr("update activity status", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrInvalidTransition
	}
	return nil
}

// DecrementRemaining takes quantity slots from an ACTIVE activity inside tx
// and returns the remaining count. The check and the decrement are one
// statement, so concurrent callers can never drive the count below zero.
// Returns service.ErrCapacityExhausted if fewer than quantity slots remain.
func (r *ActivityRepository) DecrementRemaining(ctx context.Context, tx database.TxQuerier, id int64, quantity int) (int, error) {
	query := `UPDATE campaign_activities
		SET remaining_count = remaining_count - $2
		WHERE id = $1 AND status = 'ACTIVE' AND remaining_count >= $2
		RETURNING remaining_count`

	var remaining int
	err := tx.QueryRow(ctx, query, id, quantity).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, service.ErrCapacityExhausted
		}
		return 0, wrapErr("decrement remaining", err)
	}
	return remaining, nil
}

func scanActivity(row pgx.Row) (*model.CampaignActivity, error) {
	var (
		a            model.CampaignActivity
		activityType string
		status       string
		price        string
		filters      []byte
	)
	err := row.Scan(
		&a.ID,
		&a.CampaignID,
		&a.ProductID,
		&a.Name,
		&activityType,
		&a.LimitCount,
		&a.RemainingCount,
		&status,
		&a.StartDate,
		&a.EndDate,
		&price,
		&filters,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ActivityType = model.ActivityType(activityType)
	a.Status = model.ActivityStatus(status)
	if a.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &a.Filters); err != nil {
			return nil, fmt.Errorf("decode filters: %w", err)
		}
	}
	return &a, nil
}
