package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
	"github.com/HonoraryIndians/axon-sub001/pkg/database"
)

// ActivityRepositoryInterface defines the interface for campaign activity data access.
type ActivityRepositoryInterface interface {
	Insert(ctx context.Context, activity *model.CampaignActivity) error
	GetByID(ctx context.Context, id int64) (*model.CampaignActivity, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.ActivityStatus) error
	DecrementRemaining(ctx context.Context, tx database.TxQuerier, id int64, quantity int) (int, error)
}

// ParticipantRepositoryInterface defines the interface for admission records.
type ParticipantRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, activityID, userID int64, quantity int) error
	CountByActivity(ctx context.Context, activityID int64) (int, error)
}

// UserProfileRepositoryInterface defines the interface for eligibility profile lookups.
type UserProfileRepositoryInterface interface {
	GetByUserID(ctx context.Context, userID int64) (*model.UserProfile, error)
}

// ActivityRecorder receives audit entries for granted admissions.
type ActivityRecorder interface {
	Record(entry model.ActivityLogEntry)
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AdmitHook runs inside the admission transaction after the decrement.
// Returning an error rolls the admission back.
type AdmitHook func(ctx context.Context, tx database.TxQuerier, slot model.AdmissionSlot) error

// CapacityLedger owns the remaining count of every campaign activity.
type CapacityLedger struct {
	pool         TxBeginner
	activityRepo ActivityRepositoryInterface
	participants ParticipantRepositoryInterface
	profiles     UserProfileRepositoryInterface
	eligibility  *EligibilityEvaluator
	recorder     ActivityRecorder
	now          func() time.Time
}

// NewCapacityLedger creates a new CapacityLedger backed by pool.
func NewCapacityLedger(
	pool *pgxpool.Pool,
	activityRepo ActivityRepositoryInterface,
	participants ParticipantRepositoryInterface,
	profiles UserProfileRepositoryInterface,
	recorder ActivityRecorder,
) *CapacityLedger {
	return NewCapacityLedgerWithTxBeginner(pool, activityRepo, participants, profiles, recorder)
}

// NewCapacityLedgerWithTxBeginner creates a CapacityLedger with a custom TxBeginner.
// Primarily used for testing.
func NewCapacityLedgerWithTxBeginner(
	pool TxBeginner,
	activityRepo ActivityRepositoryInterface,
	participants ParticipantRepositoryInterface,
	profiles UserProfileRepositoryInterface,
	recorder ActivityRecorder,
) *CapacityLedger {
	return &CapacityLedger{
		pool:         pool,
		activityRepo: activityRepo,
		participants: participants,
		profiles:     profiles,
		eligibility:  NewEligibilityEvaluator(),
		recorder:     recorder,
		now:          time.Now,
	}
}

// TryAdmit grants req.Quantity slots of an activity to a user or rejects the request.
//
// The participant insert, the conditional decrement and onAdmit share one
// transaction, so a rejected or failed admission never consumes capacity.
// Returns:
//   - ErrActivityNotFound if the activity doesn't exist
//   - ErrActivityClosed if the activity is outside its admitting phase or window
//   - ErrInvalidPayload if the product or quantity doesn't match the activity
//   - ErrIneligibleUser if the user fails a FAST-phase filter
//   - ErrDuplicateEntry if the user was already admitted
//   - ErrCapacityExhausted if fewer than req.Quantity slots remain
//   - ErrSystemError wrapping any storage failure
func (l *CapacityLedger) TryAdmit(ctx context.Context, req model.AdmissionRequest, onAdmit AdmitHook) (*model.AdmissionSlot, error) {
	if req.Quantity <= 0 || req.UserID <= 0 {
		return nil, fmt.Errorf("%w: quantity and user are required", ErrInvalidPayload)
	}

	activity, err := l.activityRepo.GetByID(ctx, req.ActivityID)
	if err != nil {
		return nil, systemError("get activity", err)
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}

	now := l.now()
	if !activity.IsParticipatable(now) {
		if activity.Status.IsAdmitting() && activity.RemainingCount <= 0 {
			return nil, ErrCapacityExhausted
		}
		return nil, ErrActivityClosed
	}
	if req.ProductID != activity.ProductID {
		return nil, fmt.Errorf("%w: product %d is not sold by activity %d", ErrInvalidPayload, req.ProductID, activity.ID)
	}

	if err := l.checkEligibility(ctx, req.UserID, activity.Filters); err != nil {
		return nil, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, systemError("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// 1. Record the participant (UNIQUE constraint catches duplicates)
	if err := l.participants.Insert(ctx, tx, activity.ID, req.UserID, req.Quantity); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			return nil, ErrDuplicateEntry
		}
		return nil, systemError("insert participant", err)
	}

	// 2. Compare-and-decrement the counter
	remaining, err := l.activityRepo.DecrementRemaining(ctx, tx, activity.ID, req.Quantity)
	if err != nil {
		if errors.Is(err, ErrCapacityExhausted) {
			return nil, ErrCapacityExhausted
		}
		return nil, systemError("decrement remaining", err)
	}

	slot := model.AdmissionSlot{
		ActivityID:   activity.ID,
		CampaignID:   activity.CampaignID,
		UserID:       req.UserID,
		ProductID:    req.ProductID,
		ActivityType: activity.ActivityType,
		Quantity:     req.Quantity,
		Order:        activity.LimitCount - remaining,
		Remaining:    remaining,
		AdmittedAt:   now,
	}

	// 3. Caller work that must commit together with the admission
	if onAdmit != nil {
		if err := onAdmit(ctx, tx, slot); err != nil {
			if KindOf(err) == KindInvalidPayload {
				return nil, err
			}
			return nil, systemError("admit hook", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, systemError("commit admission", err)
	}

	if l.recorder != nil {
		l.recorder.Record(model.ActivityLogEntry{
			ActivityID: slot.ActivityID,
			UserID:     slot.UserID,
			ProductID:  slot.ProductID,
			Quantity:   slot.Quantity,
			Order:      slot.Order,
			AdmittedAt: slot.AdmittedAt,
		})
	}

	log.Debug().
		Int64("activity_id", slot.ActivityID).
		Int64("user_id", slot.UserID).
		Int("order", slot.Order).
		Int("remaining", slot.Remaining).
		Msg("admission granted")

	return &slot, nil
}

func (l *CapacityLedger) checkEligibility(ctx context.Context, userID int64, filters []model.FilterDetail) error {
	if !hasFastFilter(filters) {
		return nil
	}
	profile, err := l.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return systemError("get user profile", err)
	}
	return l.eligibility.Evaluate(profile, filters)
}

func hasFastFilter(filters []model.FilterDetail) bool {
	for _, f := range filters {
		if f.Phase == PhaseFast {
			return true
		}
	}
	return false
}

func systemError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrSystemError, err)
}
