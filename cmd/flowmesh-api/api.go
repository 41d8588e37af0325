// Package main provides the flowmesh API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/flowmesh/flowmesh/pkg/router"
	"github.com/flowmesh/flowmesh/pkg/services"
	"github.com/flowmesh/flowmesh/pkg/web"
)

type API struct {
	logger  *slog.Logger
	service *services.WorkflowService
	router  *router.Router
}

func NewAPI(logger *slog.Logger, service *services.WorkflowService, r *router.Router) *API {
	return &API{
		logger:  logger,
		service: service,
		router:  r,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.service, a.router)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowmesh API")
	})

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Get("/:id/events", handlers.GetWorkflowEvents)
	w.Post("/:id/steps", handlers.AddStep)
	w.Post("/:id/connections", handlers.ConnectSteps)
	w.Post("/:id/start-step", handlers.SetStartStep)
	w.Post("/:id/end-steps", handlers.MarkEndStep)
	w.Post("/:id/validate", handlers.ValidateWorkflow)
	w.Post("/:id/start", handlers.StartWorkflow)
	w.Post("/:id/steps/:stepID/complete", handlers.CompleteStep)
	w.Post("/:id/pause", handlers.PauseWorkflow)
	w.Post("/:id/resume", handlers.ResumeWorkflow)
	w.Post("/:id/fail", handlers.FailWorkflow)

	app.Get("/router/stats", handlers.GetRouterStats)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Starting flowmesh API", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
