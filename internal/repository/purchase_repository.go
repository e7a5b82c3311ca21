package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// PurchaseRepository provides append-only access to purchases.
type PurchaseRepository struct {
	pool PoolInterface
}

// NewPurchaseRepository creates a new PurchaseRepository with the given pool.
func NewPurchaseRepository(pool *pgxpool.Pool) *PurchaseRepository {
	return &PurchaseRepository{pool: pool}
}

// NewPurchaseRepositoryWithPool creates a new PurchaseRepository with a custom pool interface.
// This is primarily used for testing.
func NewPurchaseRepositoryWithPool(pool PoolInterface) *PurchaseRepository {
	return &PurchaseRepository{pool: pool}
}

// InsertIfAbsent stores p unless the user already has a purchase for the
// activity, in which case the stored purchase is returned instead.
// Repeating the call with the same payload therefore never duplicates a purchase.
func (r *PurchaseRepository) InsertIfAbsent(ctx context.Context, p *model.Purchase) (*model.Purchase, error) {
	query := `INSERT INTO purchases
		(campaign_activity_id, user_id, product_id, purchase_type, unit_price, quantity, occurred_at, purchased_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		ON CONFLICT (campaign_activity_id, user_id) DO NOTHING
		RETURNING id`

	stored := *p
	err := r.pool.QueryRow(ctx, query,
		p.CampaignActivityID, p.UserID, p.ProductID, string(p.PurchaseType),
		p.UnitPrice.String(), p.Quantity, p.OccurredAt, p.PurchasedAt,
	).Scan(&stored.ID)
	if err == nil {
		return &stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapErr("insert purchase", err)
	}

	// Conflict: the purchase was written by an earlier attempt.
	existing, err := r.GetByActivityAndUser(ctx, p.CampaignActivityID, p.UserID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("insert purchase: conflicting purchase for activity %d user %d vanished", p.CampaignActivityID, p.UserID)
	}
	return existing, nil
}

// GetByActivityAndUser returns nil, nil when the user has no purchase for the activity.
func (r *PurchaseRepository) GetByActivityAndUser(ctx context.Context, activityID, userID int64) (*model.Purchase, error) {
	query := `SELECT id, campaign_activity_id, user_id, product_id, purchase_type, unit_price::text,
		quantity, occurred_at, purchased_at
		FROM purchases WHERE campaign_activity_id = $1 AND user_id = $2`

	var (
		p            model.Purchase
		purchaseType string
		price        string
	)
	err := r.pool.QueryRow(ctx, query, activityID, userID).Scan(
		&p.ID,
		&p.CampaignActivityID,
		&p.UserID,
		&p.ProductID,
		&purchaseType,
		&price,
		&p.Quantity,
		&p.OccurredAt,
		&p.PurchasedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get purchase", err)
	}

	p.PurchaseType = model.PurchaseType(purchaseType)
	if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("decode unit price: %w", err)
	}
	return &p, nil
}
