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

// FailureLogServiceInterface defines the interface for payment failure reconciliation.
type FailureLogServiceInterface interface {
	List(ctx context.Context, filter model.FailureLogFilter) ([]model.FailureLogEntry, error)
	Replay(ctx context.Context, filter model.FailureLogFilter) (int, error)
	Resolve(ctx context.Context, id int64) (*model.FailureLogEntry, error)
}

var failureFilterFields = map[string]string{
	"Status":             "status",
	"CampaignActivityID": "activity_id",
	"UserID":             "user_id",
	"Limit":              "limit",
}

// FailureLogHandler exposes the payment failure log to operators.
type FailureLogHandler struct {
	service   FailureLogServiceInterface
	validator *validator.Validate
}

// NewFailureLogHandler creates a new FailureLogHandler with the given service and validator.
func NewFailureLogHandler(svc FailureLogServiceInterface, v *validator.Validate) *FailureLogHandler {
	return &FailureLogHandler{service: svc, validator: v}
}

// List handles GET /api/admin/payment-failures requests.
func (h *FailureLogHandler) List(c *fiber.Ctx) error {
	var filter model.FailureLogFilter
	if err := c.QueryParser(&filter); err != nil {
		return respondBadRequest(c, "invalid query parameters")
	}
	if err := h.validator.Struct(filter); err != nil {
		return respondBadRequest(c, formatValidationError(err, failureFilterFields))
	}

	entries, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"items": entries, "count": len(entries)})
}

// Replay handles POST /api/admin/payment-failures/replay requests.
// The body is an optional filter; only PENDING entries are replayed.
func (h *FailureLogHandler) Replay(c *fiber.Ctx) error {
	var filter model.FailureLogFilter
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&filter); err != nil {
			return respondBadRequest(c, "invalid request body")
		}
	}
	if err := h.validator.Struct(filter); err != nil {
		return respondBadRequest(c, formatValidationError(err, failureFilterFields))
	}

	replayed, err := h.service.Replay(c.UserContext(), filter)
	if err != nil {
		log.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Int("replayed", replayed).
			Msg("failure log replay stopped early")
		return respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"replayed": replayed})
}

// Resolve handles POST /api/admin/payment-failures/:id/resolve requests.
func (h *FailureLogHandler) Resolve(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondBadRequest(c, "invalid request: id must be a positive integer")
	}

	entry, err := h.service.Resolve(c.UserContext(), int64(id))
	if err != nil {
		if errors.Is(err, service.ErrFailureLogNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":  "payment failure not found",
				"reason": "FAILURE_NOT_FOUND",
			})
		}
		return respondError(c, err)
	}

	log.Info().
		Str("request_id", requestID(c)).
		Int64("failure_id", entry.ID).
		Int64("user_id", entry.UserID).
		Int64("activity_id", entry.CampaignActivityID).
		Msg("payment failure resolved")

	return c.JSON(entry)
}
