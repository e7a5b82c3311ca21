package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// AdmissionServiceInterface defines the interface for admission business logic.
type AdmissionServiceInterface interface {
	Admit(ctx context.Context, req model.AdmissionRequest) (*model.AdmissionResponse, error)
}

var admissionFields = map[string]string{
	"ActivityID": "activity_id",
	"UserID":     "user_id",
	"ProductID":  "product_id",
	"Quantity":   "quantity",
}

// AdmissionHandler handles HTTP requests for activity admissions.
type AdmissionHandler struct {
	service   AdmissionServiceInterface
	validator *validator.Validate
}

// NewAdmissionHandler creates a new AdmissionHandler with the given service and validator.
func NewAdmissionHandler(svc AdmissionServiceInterface, v *validator.Validate) *AdmissionHandler {
	return &AdmissionHandler{service: svc, validator: v}
}

// Admit handles POST /api/admissions requests.
// Returns 201 with the reservation token or an error body with a reason code.
func (h *AdmissionHandler) Admit(c *fiber.Ctx) error {
	var req model.AdmissionRequest

	if err := c.BodyParser(&req); err != nil {
		return respondBadRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondBadRequest(c, formatValidationError(err, admissionFields))
	}

	resp, err := h.service.Admit(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	log.Info().
		Str("request_id", requestID(c)).
		Int64("activity_id", req.ActivityID).
		Int64("user_id", req.UserID).
		Int("order", resp.Order).
		Msg("admission granted")

	return c.Status(fiber.StatusCreated).JSON(resp)
}
