package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every HTTP handler the service exposes.
type Handlers struct {
	Health     *HealthHandler
	Admission  *AdmissionHandler
	Payment    *PaymentHandler
	Activity   *ActivityHandler
	FailureLog *FailureLogHandler
}

// Register mounts all routes on app.
func Register(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	api.Post("/admissions", h.Admission.Admit)
	api.Post("/payments/confirm", h.Payment.Confirm)

	api.Post("/activities", h.Activity.CreateActivity)
	api.Get("/activities/:id", h.Activity.GetActivity)
	api.Patch("/activities/:id/status", h.Activity.ChangeStatus)

	admin := api.Group("/admin/payment-failures")
	admin.Get("/", h.FailureLog.List)
	admin.Post("/replay", h.FailureLog.Replay)
	admin.Post("/:id/resolve", h.FailureLog.Resolve)
}
