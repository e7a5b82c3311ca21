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

// ActivityServiceInterface defines the interface for activity business logic.
type ActivityServiceInterface interface {
	Create(ctx context.Context, req *model.CreateActivityRequest) (*model.CampaignActivity, error)
	GetByID(ctx context.Context, id int64) (*model.ActivityResponse, error)
	ChangeStatus(ctx context.Context, id int64, to model.ActivityStatus) (*model.CampaignActivity, error)
}

var activityFields = map[string]string{
	"CampaignID":   "campaign_id",
	"ProductID":    "product_id",
	"Name":         "name",
	"ActivityType": "activity_type",
	"LimitCount":   "limit_count",
	"StartDate":    "start_date",
	"EndDate":      "end_date",
	"Price":        "price",
	"Filters":      "filters",
	"Status":       "status",
	"Type":         "filters.type",
	"Operator":     "filters.operator",
	"Values":       "filters.values",
	"Phase":        "filters.phase",
}

// ActivityHandler handles HTTP requests for campaign activity management.
type ActivityHandler struct {
	service   ActivityServiceInterface
	validator *validator.Validate
}

// NewActivityHandler creates a new ActivityHandler with the given service and validator.
func NewActivityHandler(svc ActivityServiceInterface, v *validator.Validate) *ActivityHandler {
	return &ActivityHandler{service: svc, validator: v}
}

// CreateActivity handles POST /api/activities requests.
func (h *ActivityHandler) CreateActivity(c *fiber.Ctx) error {
	var req model.CreateActivityRequest

	if err := c.BodyParser(&req); err != nil {
		return respondBadRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondBadRequest(c, formatValidationError(err, activityFields))
	}

	activity, err := h.service.Create(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}

	log.Info().
		Int64("activity_id", activity.ID).
		Str("activity_type", string(activity.ActivityType)).
		Int("limit_count", activity.LimitCount).
		Msg("campaign activity created")

	return c.Status(fiber.StatusCreated).JSON(activity)
}

// GetActivity handles GET /api/activities/:id requests.
func (h *ActivityHandler) GetActivity(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondBadRequest(c, "invalid request: id must be a positive integer")
	}

	activity, err := h.service.GetByID(c.UserContext(), int64(id))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(activity)
}

// ChangeStatus handles PATCH /api/activities/:id/status requests.
func (h *ActivityHandler) ChangeStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondBadRequest(c, "invalid request: id must be a positive integer")
	}

	var req model.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return respondBadRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondBadRequest(c, formatValidationError(err, activityFields))
	}

	activity, err := h.service.ChangeStatus(c.UserContext(), int64(id), req.Status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  "invalid status transition",
				"reason": "INVALID_TRANSITION",
			})
		}
		return respondError(c, err)
	}

	log.Info().
		Int64("activity_id", activity.ID).
		Str("status", string(activity.Status)).
		Msg("campaign activity status changed")

	return c.JSON(activity)
}
