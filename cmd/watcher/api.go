package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dukex/watcher/pkg/execution"
	"github.com/dukex/watcher/pkg/persistence"
	"github.com/dukex/watcher/pkg/trigger"
	"github.com/dukex/watcher/pkg/trigger/manual"
	"github.com/dukex/watcher/pkg/watch"
	"github.com/dukex/watcher/pkg/web"
)

type API struct {
	ctx          context.Context
	logger       *slog.Logger
	persistence  persistence.Persistence
	store        *watch.Store
	parser       *watch.Parser
	service      *execution.Service
	manager      *trigger.Manager
	manual       *manual.Engine
	validate     *validator.Validate
	historyLimit int

	app *fiber.App
}

func NewAPI(
	ctx context.Context,
	logger *slog.Logger,
	persistence persistence.Persistence,
	store *watch.Store,
	parser *watch.Parser,
	service *execution.Service,
	manager *trigger.Manager,
	manualEngine *manual.Engine,
	historyLimit int,
) *API {
	return &API{
		ctx:          ctx,
		logger:       logger,
		persistence:  persistence,
		store:        store,
		parser:       parser,
		service:      service,
		manager:      manager,
		manual:       manualEngine,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		historyLimit: historyLimit,
	}
}

func (a *API) App() *fiber.App {
	if a.app != nil {
		return a.app
	}

	handlers := web.NewAPIHandlers(a.store, a.parser, a.service, a.manager, a.manual, a.persistence, a.validate, a.historyLimit).
		WithContext(context.WithoutCancel(a.ctx))

	app := fiber.New(fiber.Config{Immutable: true})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.service.Started() && a.persistence.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Watcher API")
	})

	handlers.Register(app)

	a.app = app

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.App().ShutdownWithContext(ctx)
}
