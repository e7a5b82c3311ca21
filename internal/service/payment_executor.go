package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HonoraryIndians/axon-sub001/internal/metrics"
	"github.com/HonoraryIndians/axon-sub001/internal/model"
	"github.com/HonoraryIndians/axon-sub001/pkg/database"
)

// TokenRepositoryInterface defines the interface for reservation token storage.
type TokenRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, token *model.ReservationToken) error
	// Redeem marks an unredeemed token issued after issuedAfter as redeemed at
	// redeemedAt. It returns nil, nil when no row qualified.
	Redeem(ctx context.Context, token string, redeemedAt, issuedAfter time.Time) (*model.ReservationToken, error)
	GetByToken(ctx context.Context, token string) (*model.ReservationToken, error)
	GetByActivityAndUser(ctx context.Context, activityID, userID int64) (*model.ReservationToken, error)
}

// PurchaseRepositoryInterface defines the interface for purchase storage.
type PurchaseRepositoryInterface interface {
	// InsertIfAbsent stores p unless a purchase for the same activity and user
	// exists, in which case the existing purchase is returned.
	InsertIfAbsent(ctx context.Context, p *model.Purchase) (*model.Purchase, error)
}

// ActivityReader is the read side of the activity store.
type ActivityReader interface {
	GetByID(ctx context.Context, id int64) (*model.CampaignActivity, error)
}

const (
	settlePathNormal = "normal"
	settlePathRetry  = "retry"
)

// redeemRecheckTimeout bounds the token re-read after a failed redeem. The
// re-read runs detached from the request so a cancelled client still gets
// its consumed token handed to the retry path.
const redeemRecheckTimeout = 5 * time.Second

// PaymentExecutor redeems reservation tokens and writes purchases.
// It reports every failure to its caller and never retries or queues.
type PaymentExecutor struct {
	issuer     *TokenIssuer
	tokens     TokenRepositoryInterface
	purchases  PurchaseRepositoryInterface
	activities ActivityReader
	now        func() time.Time
}

// NewPaymentExecutor creates a new PaymentExecutor.
func NewPaymentExecutor(issuer *TokenIssuer, tokens TokenRepositoryInterface, purchases PurchaseRepositoryInterface, activities ActivityReader) *PaymentExecutor {
	return &PaymentExecutor{
		issuer:     issuer,
		tokens:     tokens,
		purchases:  purchases,
		activities: activities,
		now:        time.Now,
	}
}

// Settle redeems req.Token for req.UserID and writes the purchase.
//
// Failures before redemption are returned as plain errors. Once the token is
// consumed any failure is returned as *SettlementError so the caller can hand
// the payload to the retry path.
func (e *PaymentExecutor) Settle(ctx context.Context, req model.ConfirmPaymentRequest) (purchase *model.Purchase, err error) {
	start := time.Now()
	defer func() { observeSettlement(settlePathNormal, start, err) }()

	userID, activityID, err := e.issuer.Verify(req.Token)
	if err != nil {
		return nil, err
	}
	if userID != req.UserID {
		return nil, fmt.Errorf("%w: token was issued to another user", ErrInvalidToken)
	}

	now := e.now()
	redeemed, err := e.tokens.Redeem(ctx, req.Token, now, now.Add(-e.issuer.Validity()))
	if err != nil {
		return nil, e.redeemFailed(ctx, req.Token, userID, activityID, now, storeError(err))
	}
	if redeemed == nil {
		return nil, e.classifyUnredeemable(ctx, req.Token)
	}

	purchase, err = e.writePurchase(ctx, redeemed.Payload, redeemed.IssuedAt)
	if err != nil {
		return nil, &SettlementError{Payload: redeemed.Payload, OccurredAt: redeemed.IssuedAt, Err: err}
	}
	return purchase, nil
}

// SettleRetry writes the purchase for a payload whose token was already
// consumed. A payload carrying only the user and activity is completed from
// the stored token first; otherwise the token is not looked at again.
func (e *PaymentExecutor) SettleRetry(ctx context.Context, payload model.ReservationTokenPayload, occurredAt time.Time) (purchase *model.Purchase, err error) {
	start := time.Now()
	defer func() { observeSettlement(settlePathRetry, start, err) }()

	if isPartialPayload(payload) {
		payload, err = e.completePayload(ctx, payload)
		if err != nil {
			return nil, err
		}
	}
	return e.writePurchase(ctx, payload, occurredAt)
}

// redeemFailed decides what a failed redeem left behind. The UPDATE may have
// committed with only the reply lost, so the token is read back: a token
// redeemed at our timestamp is settled through the retry path, and when the
// read fails too the outcome is unknown and the retry path settles it from
// the user and activity alone.
func (e *PaymentExecutor) redeemFailed(ctx context.Context, token string, userID, activityID int64, redeemedAt time.Time, cause error) error {
	recheckCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redeemRecheckTimeout)
	defer cancel()

	stored, err := e.tokens.GetByToken(recheckCtx, token)
	switch {
	case err != nil:
		return &SettlementError{
			Payload:    model.ReservationTokenPayload{UserID: userID, CampaignActivityID: activityID},
			OccurredAt: redeemedAt,
			Err:        errors.Join(cause, storeError(err)),
		}
	case stored == nil || stored.RedeemedAt == nil:
		return cause
	case !stored.RedeemedAt.Equal(redeemedAt.Truncate(time.Microsecond)) && !stored.RedeemedAt.Equal(redeemedAt):
		return ErrAlreadyRedeemed
	default:
		return &SettlementError{Payload: stored.Payload, OccurredAt: stored.IssuedAt, Err: cause}
	}
}

// completePayload fills a user and activity pair from the token issued for
// it. The token must have been redeemed, otherwise there is nothing to settle.
func (e *PaymentExecutor) completePayload(ctx context.Context, payload model.ReservationTokenPayload) (model.ReservationTokenPayload, error) {
	stored, err := e.tokens.GetByActivityAndUser(ctx, payload.CampaignActivityID, payload.UserID)
	if err != nil {
		return payload, storeError(err)
	}
	if stored == nil {
		return payload, fmt.Errorf("%w: no token for activity %d user %d", ErrInvalidPayload, payload.CampaignActivityID, payload.UserID)
	}
	if stored.RedeemedAt == nil {
		return payload, fmt.Errorf("%w: token for activity %d user %d was never redeemed", ErrInvalidPayload, payload.CampaignActivityID, payload.UserID)
	}
	return stored.Payload, nil
}

func isPartialPayload(p model.ReservationTokenPayload) bool {
	return p.UserID > 0 && p.CampaignActivityID > 0 && p.ProductID == 0
}

func (e *PaymentExecutor) classifyUnredeemable(ctx context.Context, token string) error {
	existing, err := e.tokens.GetByToken(ctx, token)
	if err != nil {
		return storeError(err)
	}
	switch {
	case existing == nil:
		return fmt.Errorf("%w: unknown token", ErrInvalidToken)
	case existing.RedeemedAt != nil:
		return ErrAlreadyRedeemed
	default:
		return fmt.Errorf("%w: token expired at %s", ErrInvalidToken, existing.ExpiresAt.Format(time.RFC3339))
	}
}

func (e *PaymentExecutor) writePurchase(ctx context.Context, payload model.ReservationTokenPayload, occurredAt time.Time) (*model.Purchase, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	activity, err := e.activities.GetByID(ctx, payload.CampaignActivityID)
	if err != nil {
		return nil, storeError(err)
	}
	if activity == nil {
		return nil, fmt.Errorf("%w: activity %d not found", ErrInvalidPayload, payload.CampaignActivityID)
	}
	if activity.ProductID != payload.ProductID || activity.ActivityType != payload.CampaignActivityType {
		return nil, fmt.Errorf("%w: payload does not match activity %d", ErrInvalidPayload, activity.ID)
	}

	p := &model.Purchase{
		CampaignActivityID: payload.CampaignActivityID,
		UserID:             payload.UserID,
		ProductID:          payload.ProductID,
		PurchaseType:       model.PurchaseTypeReward,
		UnitPrice:          decimal.Zero,
		Quantity:           payload.Quantity,
		OccurredAt:         occurredAt,
		PurchasedAt:        e.now(),
	}
	if payload.CampaignActivityType.IsPurchaseRelated() {
		p.PurchaseType = model.PurchaseTypeCampaignActivity
		p.UnitPrice = activity.Price
	}

	stored, err := e.purchases.InsertIfAbsent(ctx, p)
	if err != nil {
		return nil, storeError(err)
	}
	return stored, nil
}

// storeError keeps transient store failures as they are and marks anything
// else as a system error. Repositories already name the failed operation.
func storeError(err error) error {
	if errors.Is(err, ErrTransientStore) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSystemError, err)
}

func observeSettlement(path string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(KindOf(err))
	}
	metrics.RecordSettlement(path, result, time.Since(start).Seconds())
}
