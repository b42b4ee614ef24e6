// Package main provides the Sentinel API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/finwatch/sentinel/pkg/abrouter"
	"github.com/finwatch/sentinel/pkg/cases"
	"github.com/finwatch/sentinel/pkg/engine"
	"github.com/finwatch/sentinel/pkg/eventbus"
	"github.com/finwatch/sentinel/pkg/fraud"
	"github.com/finwatch/sentinel/pkg/nodes"
	"github.com/finwatch/sentinel/pkg/persistence"
	"github.com/finwatch/sentinel/pkg/providers"
	"github.com/finwatch/sentinel/pkg/registry"
	"github.com/finwatch/sentinel/pkg/services"
	"github.com/finwatch/sentinel/pkg/web"
)

type API struct {
	logger          *slog.Logger
	persistence     persistence.Persistence
	eventBus        eventbus.EventBus
	invoker         providers.Invoker
	tracer          trace.Tracer
	anomalyProvider string
	apiKey          string
	validate        *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persist persistence.Persistence,
	eventBus eventbus.EventBus,
	invoker providers.Invoker,
	tracer trace.Tracer,
	anomalyProvider string,
	apiKey string,
) *API {
	return &API{
		logger:          logger,
		persistence:     persist,
		eventBus:        eventBus,
		invoker:         invoker,
		tracer:          tracer,
		anomalyProvider: anomalyProvider,
		apiKey:          apiKey,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	reg := registry.NewDefaultRegistry(a.logger, a.invoker, nodes.NewLogEffects(a.logger))
	router := abrouter.NewRouter(a.logger, a.persistence.PolicyRepository())
	eng := engine.NewEngine(a.logger, a.persistence, reg, router, a.eventBus, a.tracer)

	pipeline := fraud.NewDefaultPipeline(
		a.logger,
		a.persistence,
		cases.NewLogEscalator(a.logger),
		a.eventBus,
		a.tracer,
		a.invoker,
		a.anomalyProvider,
	)

	policyService := services.NewPolicyService(a.logger, a.persistence, a.validate, a.eventBus)

	handlers := web.NewAPIHandlers(a.logger, policyService, eng, pipeline, a.persistence, a.validate, reg)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))
	app.Use(web.APIKeyMiddleware(a.apiKey))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Sentinel API")
	})

	p := app.Group("/policies")
	p.Get("/", handlers.GetPolicies)
	p.Post("/", handlers.CreatePolicy)
	p.Get("/:id", handlers.GetPolicy)
	p.Put("/:id/definition", handlers.UpdatePolicyDefinition)
	p.Post("/:id/activate", handlers.ActivatePolicy)
	p.Post("/:id/pause", handlers.PausePolicy)
	p.Post("/:id/archive", handlers.ArchivePolicy)
	p.Post("/:id/execute", handlers.ExecutePolicy)
	p.Get("/:id/executions", handlers.GetPolicyExecutions)

	app.Get("/executions/:id", handlers.GetExecution)

	f := app.Group("/fraud")
	f.Post("/evaluate", handlers.EvaluateTransaction)

	app.Get("/transactions/:id/alerts", handlers.GetTransactionAlerts)
	app.Get("/node-kinds", handlers.GetNodeKinds)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
