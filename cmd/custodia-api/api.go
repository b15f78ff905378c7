// Package main provides the Custodia API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/custodia-hq/custodia/pkg/audit"
	"github.com/custodia-hq/custodia/pkg/eventbus"
	"github.com/custodia-hq/custodia/pkg/issues"
	"github.com/custodia-hq/custodia/pkg/orchestrator"
	"github.com/custodia-hq/custodia/pkg/persistence"
	"github.com/custodia-hq/custodia/pkg/registry"
	"github.com/custodia-hq/custodia/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		registry:    reg,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() (*fiber.App, error) {
	sink := audit.NewPersistedSink(a.persistence.Audit(), a.eventBus, a.logger)

	orch, err := orchestrator.NewOrchestrator(a.persistence, a.registry, sink, a.eventBus, a.logger)
	if err != nil {
		return nil, err
	}

	engine := issues.NewEngine(a.persistence, sink, a.eventBus, issues.DefaultConfig(), a.logger)

	handlers := web.NewAPIHandlers(orch, engine, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Custodia API")
	})

	cycles := app.Group("/cycles")
	cycles.Post("/", handlers.StartCycle)
	cycles.Get("/:id/status", handlers.GetCycleStatus)
	cycles.Post("/:id/pause", handlers.PauseCycle)
	cycles.Post("/:id/resume", handlers.ResumeCycle)
	cycles.Post("/:id/agents/:agentType/trigger", handlers.TriggerAgent)
	cycles.Get("/:id/agents/:agentType/dependencies", handlers.GetDependencyStatus)
	cycles.Post("/:id/tasks", handlers.CreateTask)
	cycles.Get("/:id/tasks", handlers.GetTasks)

	tasks := app.Group("/tasks")
	tasks.Post("/:id/complete", handlers.CompleteTask)
	tasks.Post("/:id/escalate", handlers.EscalateTask)

	issuesGroup := app.Group("/issues")
	issuesGroup.Post("/", handlers.CreateIssue)
	issuesGroup.Get("/metrics", handlers.GetIssueMetrics)
	issuesGroup.Post("/escalation-scan", handlers.RunEscalationScan)
	issuesGroup.Get("/:id", handlers.GetIssue)
	issuesGroup.Post("/:id/assign", handlers.AssignIssue)
	issuesGroup.Post("/:id/resolve", handlers.ResolveIssue)

	app.Get("/health", handlers.HealthCheck)

	return app, nil
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
