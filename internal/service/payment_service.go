package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// Settler settles a reservation token on the synchronous path.
type Settler interface {
	Settle(ctx context.Context, req model.ConfirmPaymentRequest) (*model.Purchase, error)
}

// RetryPublisher places a failed settlement on the retry transport.
type RetryPublisher interface {
	Publish(ctx context.Context, msg model.RetryMessage) error
}

// Escalator records a settlement that cannot be retried automatically.
type Escalator interface {
	Escalate(ctx context.Context, payload model.ReservationTokenPayload, cause error) error
}

// PaymentService is the synchronous settlement entry point.
type PaymentService struct {
	settler   Settler
	publisher RetryPublisher
	escalator Escalator
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(settler Settler, publisher RetryPublisher, escalator Escalator) *PaymentService {
	return &PaymentService{
		settler:   settler,
		publisher: publisher,
		escalator: escalator,
	}
}

// Confirm settles a reservation token.
// A retryable failure after the token was consumed is handed to the retry
// transport and reported as ErrSettlementDeferred wrapping the original cause.
// All other failures are returned unchanged.
func (s *PaymentService) Confirm(ctx context.Context, req model.ConfirmPaymentRequest) (*model.Purchase, error) {
	purchase, err := s.settler.Settle(ctx, req)
	if err == nil {
		log.Info().
			Int64("user_id", purchase.UserID).
			Int64("activity_id", purchase.CampaignActivityID).
			Str("purchase_type", string(purchase.PurchaseType)).
			Msg("payment settled")
		return purchase, nil
	}

	var settleErr *SettlementError
	if !errors.As(err, &settleErr) || !IsRetryable(err) {
		return nil, err
	}

	msg := model.RetryMessage{
		MessageID:  uuid.NewString(),
		Payload:    settleErr.Payload,
		OccurredAt: settleErr.OccurredAt,
		Reason:     err.Error(),
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now()
	}

	// The publish must not be cut short by a client that hung up.
	publishCtx := context.WithoutCancel(ctx)
	if pubErr := s.publisher.Publish(publishCtx, msg); pubErr != nil {
		log.Error().
			Err(pubErr).
			Int64("user_id", msg.Payload.UserID).
			Int64("activity_id", msg.Payload.CampaignActivityID).
			Msg("retry publish failed, escalating settlement")

		if escErr := s.escalator.Escalate(publishCtx, msg.Payload, err); escErr != nil {
			log.Error().
				Err(escErr).
				Int64("user_id", msg.Payload.UserID).
				Int64("activity_id", msg.Payload.CampaignActivityID).
				Str("cause", err.Error()).
				Msg("settlement could not be deferred")
			return nil, fmt.Errorf("%w: %w", ErrSystemError, errors.Join(err, pubErr, escErr))
		}
		return nil, fmt.Errorf("%w: %w", ErrSettlementDeferred, err)
	}

	log.Warn().
		Err(err).
		Str("message_id", msg.MessageID).
		Int64("user_id", msg.Payload.UserID).
		Int64("activity_id", msg.Payload.CampaignActivityID).
		Msg("settlement deferred to retry")
	return nil, fmt.Errorf("%w: %w", ErrSettlementDeferred, err)
}
