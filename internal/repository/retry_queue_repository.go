package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// RetryQueueRepository is the PostgreSQL-backed retry transport.
//
// Claiming a message hides it for the visibility timeout and bumps its
// delivery count; acking deletes it. A consumer that dies between the two
// leaves the message to be delivered again.
type RetryQueueRepository struct {
	pool PoolInterface
}

// NewRetryQueueRepository creates a new RetryQueueRepository with the given pool.
func NewRetryQueueRepository(pool *pgxpool.Pool) *RetryQueueRepository {
	return &RetryQueueRepository{pool: pool}
}

// NewRetryQueueRepositoryWithPool creates a new RetryQueueRepository with a custom pool interface.
// This is primarily used for testing.
func NewRetryQueueRepositoryWithPool(pool PoolInterface) *RetryQueueRepository {
	return &RetryQueueRepository{pool: pool}
}

// Publish enqueues msg. Publishing the same message id twice is a no-op.
func (r *RetryQueueRepository) Publish(ctx context.Context, msg model.RetryMessage) error {
	body, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("encode retry payload: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO payment_retry_queue (message_id, body, reason, occurred_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id) DO NOTHING`,
		msg.MessageID, body, msg.Reason, msg.OccurredAt)
	if err != nil {
		return wrapErr("publish retry message", err)
	}
	return nil
}

// Claim takes up to limit visible messages, oldest first. Rows locked by
// another consumer are skipped rather than waited on.
func (r *RetryQueueRepository) Claim(ctx context.Context, limit int, visibility time.Duration) ([]model.RetryDelivery, error) {
	query := `UPDATE payment_retry_queue
		SET delivery_count = delivery_count + 1,
			available_at = NOW() + make_interval(secs => $2)
		WHERE id IN (
			SELECT id FROM payment_retry_queue
			WHERE available_at <= NOW()
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, message_id::text, body, occurred_at, delivery_count`

	rows, err := r.pool.Query(ctx, query, limit, visibility.Seconds())
	if err != nil {
		return nil, wrapErr("claim retry messages", err)
	}
	defer rows.Close()

	deliveries := []model.RetryDelivery{}
	for rows.Next() {
		var (
			d    model.RetryDelivery
			body []byte
		)
		if err := rows.Scan(&d.ID, &d.MessageID, &body, &d.OccurredAt, &d.DeliveryCount); err != nil {
			return nil, fmt.Errorf("scan retry message: %w", err)
		}
		d.Body = json.RawMessage(body)
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate retry messages", err)
	}
	return deliveries, nil
}

// Ack removes a delivered message.
func (r *RetryQueueRepository) Ack(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM payment_retry_queue WHERE id = $1`, id); err != nil {
		return wrapErr("ack retry message", err)
	}
	return nil
}
