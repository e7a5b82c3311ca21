package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

const (
	// MaxFailureReasonLength bounds the stored failure reason.
	MaxFailureReasonLength = 1000

	defaultFailureListLimit = 100
)

// FailureLogRepositoryInterface defines the interface for failure log storage.
type FailureLogRepositoryInterface interface {
	// Upsert inserts entry or bumps the attempt count of the entry with the
	// same identity key.
	Upsert(ctx context.Context, entry *model.FailureLogEntry) error
	List(ctx context.Context, filter model.FailureLogFilter) ([]model.FailureLogEntry, error)
	GetByID(ctx context.Context, id int64) (*model.FailureLogEntry, error)
	// UpdateStatus moves an entry whose status is one of from to status to.
	UpdateStatus(ctx context.Context, id int64, from []model.FailureStatus, to model.FailureStatus) error
	UpdateStatusByIdentity(ctx context.Context, identityKey string, from []model.FailureStatus, to model.FailureStatus) (int64, error)
}

var openFailureStatuses = []model.FailureStatus{model.FailureStatusPending, model.FailureStatusReplaying}

// FailureLogService owns the durable record of unsettled payments.
type FailureLogService struct {
	repo      FailureLogRepositoryInterface
	publisher RetryPublisher
	limiter   *rate.Limiter
	now       func() time.Time
}

// NewFailureLogService creates a FailureLogService whose replays publish at
// most replayRate messages per second.
func NewFailureLogService(repo FailureLogRepositoryInterface, publisher RetryPublisher, replayRate float64, replayBurst int) *FailureLogService {
	return &FailureLogService{
		repo:      repo,
		publisher: publisher,
		limiter:   rate.NewLimiter(rate.Limit(replayRate), max(replayBurst, 1)),
		now:       time.Now,
	}
}

// Record stores cause for payload. Repeated records for the same identity
// increment the attempt count and reopen the entry.
func (s *FailureLogService) Record(ctx context.Context, payload model.ReservationTokenPayload, cause error) error {
	entry := s.newEntry(model.PayloadIdentityKey(payload), cause)
	entry.UserID = payload.UserID
	entry.CampaignActivityID = payload.CampaignActivityID
	entry.ProductID = payload.ProductID
	entry.Payload = payload
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// RecordUndecodable stores a retry message whose body is not a payload. The
// body is kept verbatim and the entry is keyed on the message id, so
// unrelated bad messages never share an entry.
func (s *FailureLogService) RecordUndecodable(ctx context.Context, d model.RetryDelivery, cause error) error {
	entry := s.newEntry(model.MessageIdentityKey(d.MessageID), cause)
	entry.RawBody = strings.ReplaceAll(strings.ToValidUTF8(string(d.Body), "\uFFFD"), "\x00", "")
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("record undecodable message %s: %w", d.MessageID, err)
	}
	return nil
}

// MarkSettled resolves the open entry for payload, if any, once a retry
// delivery has written its purchase.
func (s *FailureLogService) MarkSettled(ctx context.Context, payload model.ReservationTokenPayload) error {
	key := model.PayloadIdentityKey(payload)
	n, err := s.repo.UpdateStatusByIdentity(ctx, key, openFailureStatuses, model.FailureStatusResolved)
	if err != nil {
		return fmt.Errorf("mark settled: %w", err)
	}
	if n > 0 {
		log.Info().Str("identity_key", key).Msg("failure resolved by retry delivery")
	}
	return nil
}

func (s *FailureLogService) newEntry(identityKey string, cause error) *model.FailureLogEntry {
	reason := "unknown failure"
	if cause != nil {
		reason = truncateReason(cause.Error())
	}
	now := s.now()
	return &model.FailureLogEntry{
		IdentityKey:  identityKey,
		Reason:       reason,
		Kind:         string(KindOf(cause)),
		AttemptCount: 1,
		Status:       model.FailureStatusPending,
		FirstSeenAt:  now,
		LastSeenAt:   now,
	}
}

// List returns entries matching filter, newest first.
func (s *FailureLogService) List(ctx context.Context, filter model.FailureLogFilter) ([]model.FailureLogEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultFailureListLimit
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	return entries, nil
}

// Replay re-publishes PENDING entries matching filter to the retry transport
// and marks them REPLAYING. It returns how many entries were re-published.
func (s *FailureLogService) Replay(ctx context.Context, filter model.FailureLogFilter) (int, error) {
	filter.Status = model.FailureStatusPending
	entries, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, entry := range entries {
		if entry.Undecodable() {
			log.Warn().Int64("failure_id", entry.ID).Msg("undecodable message cannot be replayed, resolve it manually")
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return replayed, fmt.Errorf("replay interrupted: %w", err)
		}

		// Mark first so a fast consumer that fails again reopens the entry.
		err := s.repo.UpdateStatus(ctx, entry.ID, []model.FailureStatus{model.FailureStatusPending}, model.FailureStatusReplaying)
		if errors.Is(err, ErrFailureLogNotFound) {
			continue // moved on concurrently
		}
		if err != nil {
			return replayed, fmt.Errorf("mark replaying: %w", err)
		}

		msg := model.RetryMessage{
			MessageID:  uuid.NewString(),
			Payload:    entry.Payload,
			OccurredAt: entry.FirstSeenAt,
			Reason:     fmt.Sprintf("replay of failure %d", entry.ID),
		}
		if err := s.publisher.Publish(ctx, msg); err != nil {
			if rbErr := s.repo.UpdateStatus(ctx, entry.ID, []model.FailureStatus{model.FailureStatusReplaying}, model.FailureStatusPending); rbErr != nil {
				log.Error().Err(rbErr).Int64("failure_id", entry.ID).Msg("could not reopen failure after publish error")
			}
			return replayed, fmt.Errorf("publish replay: %w", err)
		}
		replayed++
	}

	log.Info().Int("replayed", replayed).Int("matched", len(entries)).Msg("failure log replay finished")
	return replayed, nil
}

// Resolve closes an entry after external reconciliation. Resolving a
// resolved entry is a no-op.
func (s *FailureLogService) Resolve(ctx context.Context, id int64) (*model.FailureLogEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get failure: %w", err)
	}
	if entry == nil {
		return nil, ErrFailureLogNotFound
	}
	if entry.Status == model.FailureStatusResolved {
		return entry, nil
	}

	err = s.repo.UpdateStatus(ctx, id, openFailureStatuses, model.FailureStatusResolved)
	if errors.Is(err, ErrFailureLogNotFound) {
		// Lost a race with another resolve or a settling retry.
		current, getErr := s.repo.GetByID(ctx, id)
		if getErr == nil && current != nil && current.Status == model.FailureStatusResolved {
			return current, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve failure: %w", err)
	}
	entry.Status = model.FailureStatusResolved
	return entry, nil
}

// truncateReason cuts reason to MaxFailureReasonLength runes.
func truncateReason(reason string) string {
	if utf8.RuneCountInString(reason) <= MaxFailureReasonLength {
		return reason
	}
	return string([]rune(reason)[:MaxFailureReasonLength])
}
