package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HonoraryIndians/axon-sub001/internal/service"
	"github.com/HonoraryIndians/axon-sub001/pkg/database"
)

// ParticipantRepository records which users were admitted to an activity.
type ParticipantRepository struct {
	pool PoolInterface
}

// NewParticipantRepository creates a new ParticipantRepository with the given pool.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// NewParticipantRepositoryWithPool creates a new ParticipantRepository with a custom pool interface.
// This is primarily used for testing.
func NewParticipantRepositoryWithPool(pool PoolInterface) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// Insert records an admission within a transaction.
// Returns service.ErrDuplicateEntry if the user was already admitted.
func (r *ParticipantRepository) Insert(ctx context.Context, tx database.TxQuerier, activityID, userID int64, quantity int) error {
	query := `INSERT INTO activity_participants (campaign_activity_id, user_id, quantity) VALUES ($1, $2, $3)`

	_, err := tx.Exec(ctx, query, activityID, userID, quantity)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return service.ErrDuplicateEntry
		}
		return wrapErr("insert participant", err)
	}
	return nil
}

// CountByActivity returns how many users were admitted to an activity.
func (r *ParticipantRepository) CountByActivity(ctx context.Context, activityID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM activity_participants WHERE campaign_activity_id = $1`,
		activityID).Scan(&count)
	if err != nil {
		return 0, wrapErr(fmt.Sprintf("count participants of activity %d", activityID), err)
	}
	return count, nil
}
