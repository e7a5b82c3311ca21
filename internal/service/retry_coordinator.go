package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/HonoraryIndians/axon-sub001/internal/metrics"
	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// RetryQueueRepositoryInterface defines the retry transport.
// Deliveries are at least once: a claimed message that is not acked becomes
// visible again after the visibility timeout.
type RetryQueueRepositoryInterface interface {
	Publish(ctx context.Context, msg model.RetryMessage) error
	Claim(ctx context.Context, limit int, visibility time.Duration) ([]model.RetryDelivery, error)
	Ack(ctx context.Context, id int64) error
}

// RetrySettler completes the purchase write for an already consumed token.
type RetrySettler interface {
	SettleRetry(ctx context.Context, payload model.ReservationTokenPayload, occurredAt time.Time) (*model.Purchase, error)
}

// FailureRecorder is the write side of the failure log.
type FailureRecorder interface {
	Record(ctx context.Context, payload model.ReservationTokenPayload, cause error) error
	RecordUndecodable(ctx context.Context, d model.RetryDelivery, cause error) error
	// MarkSettled resolves the open entry for payload after a successful retry.
	MarkSettled(ctx context.Context, payload model.ReservationTokenPayload) error
}

// RetryOutcome is the terminal state of one delivery.
type RetryOutcome string

const (
	// RetryCompleted means the purchase was written and the message acked.
	RetryCompleted RetryOutcome = "completed"
	// RetryEscalated means the failure was logged and the message acked.
	RetryEscalated RetryOutcome = "escalated"
	// RetryRedeliver means nothing durable happened; the message will come back.
	RetryRedeliver RetryOutcome = "redeliver"
)

// RetryCoordinatorConfig tunes the consumer loop.
type RetryCoordinatorConfig struct {
	PollInterval      time.Duration
	BatchSize         int
	Workers           int
	VisibilityTimeout time.Duration
}

// RetryCoordinator drains the retry transport. A message is settled once;
// any failure is escalated to the failure log instead of being re-queued.
type RetryCoordinator struct {
	queue    RetryQueueRepositoryInterface
	settler  RetrySettler
	failures FailureRecorder
	cfg      RetryCoordinatorConfig
}

// NewRetryCoordinator creates a new RetryCoordinator.
func NewRetryCoordinator(queue RetryQueueRepositoryInterface, settler RetrySettler, failures FailureRecorder, cfg RetryCoordinatorConfig) *RetryCoordinator {
	cfg.BatchSize = max(cfg.BatchSize, 1)
	cfg.Workers = max(cfg.Workers, 1)
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 30 * time.Second
	}
	return &RetryCoordinator{
		queue:    queue,
		settler:  settler,
		failures: failures,
		cfg:      cfg,
	}
}

// Run polls the transport until ctx is cancelled. A full batch is followed
// immediately by another claim; otherwise the loop waits for the next tick.
func (c *RetryCoordinator) Run(ctx context.Context) error {
	log.Info().
		Dur("poll_interval", c.cfg.PollInterval).
		Int("batch_size", c.cfg.BatchSize).
		Int("workers", c.cfg.Workers).
		Msg("retry coordinator started")

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		n, err := c.ProcessBatch(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("retry batch failed")
		}
		if n == c.cfg.BatchSize && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("retry coordinator stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch claims one batch and handles it with at most cfg.Workers
// deliveries in flight. It returns the number of deliveries claimed.
func (c *RetryCoordinator) ProcessBatch(ctx context.Context) (int, error) {
	deliveries, err := c.queue.Claim(ctx, c.cfg.BatchSize, c.cfg.VisibilityTimeout)
	if err != nil {
		return 0, fmt.Errorf("claim retry messages: %w", err)
	}

	// In-flight deliveries finish even if ctx is cancelled mid-batch.
	workCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for _, d := range deliveries {
		g.Go(func() error {
			c.Handle(workCtx, d)
			return nil
		})
	}
	_ = g.Wait()

	return len(deliveries), nil
}

// Handle drives one delivery to a terminal state.
func (c *RetryCoordinator) Handle(ctx context.Context, d model.RetryDelivery) RetryOutcome {
	logger := log.With().
		Int64("delivery_id", d.ID).
		Str("message_id", d.MessageID).
		Int("delivery_count", d.DeliveryCount).
		Logger()

	payload, cause := decodeRetryBody(d.Body)
	var recordErr error
	if cause != nil {
		recordErr = c.failures.RecordUndecodable(ctx, d, cause)
	} else if _, cause = c.settler.SettleRetry(ctx, payload, d.OccurredAt); cause != nil {
		recordErr = c.failures.Record(ctx, payload, cause)
	} else if err := c.failures.MarkSettled(ctx, payload); err != nil {
		// The purchase is written; the entry stays open for an operator.
		logger.Warn().Err(err).Msg("could not resolve failure log entry after retry")
	}

	outcome := RetryCompleted
	if cause != nil {
		if recordErr != nil {
			logger.Error().Err(recordErr).AnErr("cause", cause).Msg("failure log write failed, leaving message for redelivery")
			metrics.RecordRetryOutcome(string(RetryRedeliver))
			return RetryRedeliver
		}
		outcome = RetryEscalated
		logger.Warn().
			Err(cause).
			Str("kind", string(KindOf(cause))).
			Int64("user_id", payload.UserID).
			Int64("activity_id", payload.CampaignActivityID).
			Msg("retry settlement escalated to failure log")
	}

	if err := c.queue.Ack(ctx, d.ID); err != nil {
		// Both outcomes are idempotent, so a redelivery is harmless.
		logger.Error().Err(err).Msg("ack retry message failed")
	}

	metrics.RecordRetryOutcome(string(outcome))
	return outcome
}

// decodeRetryBody rejects bodies that are not JSON or name no user and
// activity, since such messages have no settlement identity.
func decodeRetryBody(body []byte) (model.ReservationTokenPayload, error) {
	var payload model.ReservationTokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.ReservationTokenPayload{}, fmt.Errorf("%w: decode retry message: %v", ErrInvalidPayload, err)
	}
	if payload.UserID <= 0 || payload.CampaignActivityID <= 0 {
		return model.ReservationTokenPayload{}, fmt.Errorf("%w: retry message names no user or activity", ErrInvalidPayload)
	}
	return payload, nil
}

// Escalate records a failed settlement that never reached the transport.
func (c *RetryCoordinator) Escalate(ctx context.Context, payload model.ReservationTokenPayload, cause error) error {
	if err := c.failures.Record(ctx, payload, cause); err != nil {
		return fmt.Errorf("escalate settlement: %w", err)
	}
	metrics.RecordRetryOutcome(string(RetryEscalated))
	return nil
}
