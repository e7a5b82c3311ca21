package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
	"github.com/HonoraryIndians/axon-sub001/internal/service"
)

// PaymentServiceInterface defines the interface for settlement business logic.
type PaymentServiceInterface interface {
	Confirm(ctx context.Context, req model.ConfirmPaymentRequest) (*model.Purchase, error)
}

var paymentFields = map[string]string{
	"Token":  "token",
	"UserID": "user_id",
}

// PaymentHandler handles HTTP requests for payment confirmation.
type PaymentHandler struct {
	service   PaymentServiceInterface
	validator *validator.Validate
}

// NewPaymentHandler creates a new PaymentHandler with the given service and validator.
func NewPaymentHandler(svc PaymentServiceInterface, v *validator.Validate) *PaymentHandler {
	return &PaymentHandler{service: svc, validator: v}
}

// Confirm handles POST /api/payments/confirm requests.
// Returns 201 with the purchase, 202 when settlement was deferred to the
// retry path, or an error body with a reason code.
func (h *PaymentHandler) Confirm(c *fiber.Ctx) error {
	var req model.ConfirmPaymentRequest

	if err := c.BodyParser(&req); err != nil {
		return respondBadRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondBadRequest(c, formatValidationError(err, paymentFields))
	}

	purchase, err := h.service.Confirm(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, service.ErrSettlementDeferred) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"status": "PENDING",
				"reason": string(service.KindOf(err)),
			})
		}
		return respondError(c, err)
	}

	log.Info().
		Str("request_id", requestID(c)).
		Int64("user_id", purchase.UserID).
		Int64("activity_id", purchase.CampaignActivityID).
		Msg("payment confirmed")

	return c.Status(fiber.StatusCreated).JSON(purchase)
}
