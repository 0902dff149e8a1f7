package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/observation-tools/observation-tools/internal/config"
	"github.com/observation-tools/observation-tools/internal/handler"
	"github.com/observation-tools/observation-tools/internal/middleware"
	"github.com/observation-tools/observation-tools/model"
)

// registerRoutes mounts the HTTP API. Mutating routes carry the API key
// middleware and their body limits; read-only routes stay open.
func registerRoutes(app *fiber.App, cfg *config.Config, deps *Dependencies) {
	app.Get("/health", handler.Health(appVersion))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	requireKey := middleware.RequireAPIKey(cfg.Auth.APISecret)

	api := app.Group("/api")

	// Executions.
	api.Post("/exe", requireKey, deps.Executions.Create)
	api.Get("/exe", deps.Executions.List)
	api.Get("/exe/:id", deps.Executions.Get)

	// Observations.
	api.Post("/exe/:executionId/obs",
		requireKey,
		middleware.MaxBody(model.MaxObservationBatchSize),
		deps.Observations.Create)
	api.Get("/exe/:executionId/obs", deps.Observations.List)
	api.Get("/exe/:executionId/obs/:observationId", deps.Observations.Get)
	api.Get("/exe/:executionId/obs/:observationId/content", deps.Observations.GetContent)

	// Groups.
	api.Get("/groups/:groupId", deps.Groups.Get)

	// Out-of-band blob upload; bounded by the app-level body limit.
	api.Post("/exe/:executionId/obs/:observationId/blob",
		requireKey,
		deps.Observations.UploadBlob)
}
