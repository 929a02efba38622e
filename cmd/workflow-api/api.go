// Package main provides the workflow engine API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/eventbus"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/services"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/web"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	publisher := eventbus.NewEnginePublisher(a.eventBus)
	executor := workflow.NewExecutor(a.persistence, publisher, a.logger)

	transitionService := services.NewTransition(executor, a.persistence)
	configService := services.NewConfig(a.persistence, publisher, a.logger)
	analyticsService := services.NewAnalytics(workflow.NewAnalytics(a.persistence, a.logger), a.persistence, publisher, a.logger)

	handlers := web.NewAPIHandlers(transitionService, configService, analyticsService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Workflow Engine API")
	})

	tenants := app.Group("/tenants/:tenantID")

	// Work order endpoints:
	tenants.Post("/work-orders", handlers.RegisterWorkOrder)
	tenants.Get("/work-orders/:id", handlers.GetWorkOrder)
	tenants.Post("/work-orders/:id/transitions", handlers.ExecuteTransition)
	tenants.Get("/work-orders/:id/transitions", handlers.GetTransitionHistory)
	tenants.Get("/work-orders/:id/transitions/allowed", handlers.GetAllowedTargets)
	tenants.Get("/work-orders/:id/lifecycle", handlers.GetLifecycle)

	// Configuration endpoints:
	tenants.Get("/workflow-config", handlers.GetWorkflowConfig)
	tenants.Put("/workflow-config", handlers.PutWorkflowConfig)

	// Analytics endpoints:
	tenants.Get("/analytics/status-distribution", handlers.GetStatusDistribution)
	tenants.Get("/analytics/transition-frequency", handlers.GetTransitionFrequency)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
