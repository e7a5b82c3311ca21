package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
	"github.com/HonoraryIndians/axon-sub001/pkg/database"
)

const tokenColumns = `token, user_id, campaign_activity_id, product_id, campaign_activity_type, quantity,
	issued_at, expires_at, redeemed_at`

// TokenRepository stores reservation tokens and their redemption state.
type TokenRepository struct {
	pool PoolInterface
}

// NewTokenRepository creates a new TokenRepository with the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// NewTokenRepositoryWithPool creates a new TokenRepository with a custom pool interface.
// This is primarily used for testing.
func NewTokenRepositoryWithPool(pool PoolInterface) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Insert stores an issued token inside the admission transaction.
func (r *TokenRepository) Insert(ctx context.Context, tx database.TxQuerier, t *model.ReservationToken) error {
	query := `INSERT INTO reservation_tokens
		(token, user_id, campaign_activity_id, product_id, campaign_activity_type, quantity, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		t.Token, t.Payload.UserID, t.Payload.CampaignActivityID, t.Payload.ProductID,
		string(t.Payload.CampaignActivityType), t.Payload.Quantity, t.IssuedAt, t.ExpiresAt)
	if err != nil {
		return wrapErr("insert token", err)
	}
	return nil
}

// Redeem marks the token redeemed if it is unredeemed and was issued after
// issuedAfter. Concurrent callers race on one conditional UPDATE, so at most
// one of them gets the row back.
// Returns nil, nil when nothing was redeemed.
func (r *TokenRepository) Redeem(ctx context.Context, token string, redeemedAt, issuedAfter time.Time) (*model.ReservationToken, error) {
	query := `UPDATE reservation_tokens
		SET redeemed_at = $2
		WHERE token = $1 AND redeemed_at IS NULL AND issued_at > $3
		RETURNING ` + tokenColumns

	t, err := scanToken(r.pool.QueryRow(ctx, query, token, redeemedAt, issuedAfter))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("redeem token", err)
	}
	return t, nil
}

// GetByToken returns nil, nil if the token is unknown.
func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*model.ReservationToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM reservation_tokens WHERE token = $1`

	t, err := scanToken(r.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get token", err)
	}
	return t, nil
}

// GetByActivityAndUser returns the latest token issued to userID for
// activityID, or nil, nil if there is none.
func (r *TokenRepository) GetByActivityAndUser(ctx context.Context, activityID, userID int64) (*model.ReservationToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM reservation_tokens
		WHERE campaign_activity_id = $1 AND user_id = $2
		ORDER BY issued_at DESC
		LIMIT 1`

	t, err := scanToken(r.pool.QueryRow(ctx, query, activityID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(fmt.Sprintf("get token for activity %d user %d", activityID, userID), err)
	}
	return t, nil
}

// DeleteExpired removes tokens whose validity ended before cutoff and returns
// how many were removed.
func (r *TokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reservation_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, wrapErr("delete expired tokens", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*model.ReservationToken, error) {
	var (
		t            model.ReservationToken
		activityType string
	)
	err := row.Scan(
		&t.Token,
		&t.Payload.UserID,
		&t.Payload.CampaignActivityID,
		&t.Payload.ProductID,
		&activityType,
		&t.Payload.Quantity,
		&t.IssuedAt,
		&t.ExpiresAt,
		&t.RedeemedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Payload.CampaignActivityType = model.ActivityType(activityType)
	return &t, nil
}
