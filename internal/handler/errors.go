package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/HonoraryIndians/axon-sub001/internal/service"
)

type errorMapping struct {
	status  int
	message string
}

var kindMappings = map[service.FailureKind]errorMapping{
	service.KindCapacityExhausted: {fiber.StatusConflict, "campaign activity is sold out"},
	service.KindDuplicateEntry:    {fiber.StatusConflict, "user already entered this campaign activity"},
	service.KindAlreadyRedeemed:   {fiber.StatusConflict, "reservation token already redeemed"},
	service.KindActivityClosed:    {fiber.StatusConflict, "campaign activity is not open"},
	service.KindIneligibleUser:    {fiber.StatusForbidden, "user is not eligible for this campaign activity"},
	service.KindInvalidToken:      {fiber.StatusBadRequest, "invalid reservation token"},
	service.KindInvalidPayload:    {fiber.StatusBadRequest, "invalid request"},
	service.KindActivityNotFound:  {fiber.StatusNotFound, "campaign activity not found"},
	service.KindTransientStore:    {fiber.StatusServiceUnavailable, "temporarily unavailable, try again"},
	service.KindSystemError:       {fiber.StatusInternalServerError, "internal server error"},
}

// respondError writes the JSON error body for err: a human message and the
// stable reason code. Server-side failures are logged with request context.
func respondError(c *fiber.Ctx, err error) error {
	kind := service.KindOf(err)
	m, ok := kindMappings[kind]
	if !ok {
		m = kindMappings[service.KindSystemError]
	}

	if m.status >= fiber.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("reason", string(kind)).
			Msg("request failed")
	}

	return c.Status(m.status).JSON(fiber.Map{
		"error":  m.message,
		"reason": string(kind),
	})
}

// respondBadRequest is used for malformed bodies and failed validation.
func respondBadRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  message,
		"reason": string(service.KindInvalidPayload),
	})
}

// formatValidationError turns the first validator error into a client message
// using the JSON field name.
func formatValidationError(err error, jsonNames map[string]string) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	field, ok := jsonNames[fe.Field()]
	if !ok {
		field = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return "invalid request: " + field + " is required"
	case "notblank":
		return "invalid request: " + field + " cannot be whitespace only"
	case "max", "lte":
		return "invalid request: " + field + " exceeds maximum of " + fe.Param()
	case "gte":
		return "invalid request: " + field + " must be at least " + fe.Param()
	case "gt":
		return "invalid request: " + field + " must be greater than " + fe.Param()
	case "oneof":
		return "invalid request: " + field + " must be one of " + fe.Param()
	case "gtfield":
		return "invalid request: " + field + " must be after " + fe.Param()
	}
	return "invalid request: " + field + " is invalid"
}

func requestID(c *fiber.Ctx) string {
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
