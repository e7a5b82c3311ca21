package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// UserProfileRepository reads eligibility profiles maintained outside this service.
type UserProfileRepository struct {
	pool PoolInterface
}

// NewUserProfileRepository creates a new UserProfileRepository with the given pool.
func NewUserProfileRepository(pool *pgxpool.Pool) *UserProfileRepository {
	return &UserProfileRepository{pool: pool}
}

// NewUserProfileRepositoryWithPool creates a new UserProfileRepository with a custom pool interface.
// This is primarily used for testing.
func NewUserProfileRepositoryWithPool(pool PoolInterface) *UserProfileRepository {
	return &UserProfileRepository{pool: pool}
}

// GetByUserID returns nil, nil when the user has no profile.
func (r *UserProfileRepository) GetByUserID(ctx context.Context, userID int64) (*model.UserProfile, error) {
	var p model.UserProfile
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, age, grade FROM user_profiles WHERE user_id = $1`,
		userID).Scan(&p.UserID, &p.Age, &p.Grade)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get user profile", err)
	}
	return &p, nil
}
