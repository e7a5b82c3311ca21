package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/HonoraryIndians/axon-sub001/internal/metrics"
	"github.com/HonoraryIndians/axon-sub001/internal/model"
	"github.com/HonoraryIndians/axon-sub001/pkg/database"
)

// Admitter grants activity slots.
type Admitter interface {
	TryAdmit(ctx context.Context, req model.AdmissionRequest, onAdmit AdmitHook) (*model.AdmissionSlot, error)
}

// AdmissionService turns an admission request into a stored reservation token.
type AdmissionService struct {
	ledger Admitter
	issuer *TokenIssuer
	tokens TokenRepositoryInterface
}

// NewAdmissionService creates a new AdmissionService.
func NewAdmissionService(ledger Admitter, issuer *TokenIssuer, tokens TokenRepositoryInterface) *AdmissionService {
	return &AdmissionService{
		ledger: ledger,
		issuer: issuer,
		tokens: tokens,
	}
}

// Admit runs the admission and persists the issued token in the same transaction.
func (s *AdmissionService) Admit(ctx context.Context, req model.AdmissionRequest) (*model.AdmissionResponse, error) {
	var issued *model.ReservationToken

	slot, err := s.ledger.TryAdmit(ctx, req, func(ctx context.Context, tx database.TxQuerier, slot model.AdmissionSlot) error {
		token, err := s.issuer.Issue(slot)
		if err != nil {
			return err
		}
		if err := s.tokens.Insert(ctx, tx, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		issued = token
		return nil
	})
	if err != nil {
		metrics.RecordAdmission(string(KindOf(err)))
		log.Debug().
			Err(err).
			Int64("activity_id", req.ActivityID).
			Int64("user_id", req.UserID).
			Msg("admission rejected")
		return nil, err
	}
	metrics.RecordAdmission("ADMITTED")

	return &model.AdmissionResponse{
		Token:     issued.Token,
		Order:     slot.Order,
		ExpiresAt: issued.ExpiresAt,
		Payload:   issued.Payload,
	}, nil
}
