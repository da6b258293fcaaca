// Package main provides the closeout API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/diligince/closeout/pkg/eventbus"
	"github.com/diligince/closeout/pkg/persistence"
	"github.com/diligince/closeout/pkg/render"
	"github.com/diligince/closeout/pkg/services"
	"github.com/diligince/closeout/pkg/storage"
	"github.com/diligince/closeout/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	store       storage.Store
	signer      *storage.Signer
	template    *services.ChecklistTemplate
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	store storage.Store,
	signer *storage.Signer,
	template *services.ChecklistTemplate,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		store:       store,
		signer:      signer,
		template:    template,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflows(a.persistence, a.logger)
	closeoutService := services.NewCloseout(
		a.persistence,
		a.store,
		a.signer,
		render.NewPDFRenderer(),
		a.eventBus,
		a.template,
		a.logger,
	)

	handlers := web.NewAPIHandlers(workflowService, closeoutService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Closeout API")
	})

	v1 := app.Group("/api/v1")

	w := v1.Group("/workflows")
	w.Get("/", handlers.ListWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)

	// Milestone facts feeding the closure gate.
	w.Post("/:id/milestones/:milestoneId/complete", handlers.CompleteMilestone)
	w.Post("/:id/milestones/:milestoneId/pay", handlers.PayMilestone)

	// Closeout lifecycle.
	w.Post("/:id/initiate-closeout", handlers.InitiateCloseout)
	w.Get("/:id/closeout-checklist", handlers.GetCloseoutStatus)
	w.Post("/:id/closeout-checklist/:itemId/document", handlers.UploadDocument)
	w.Get("/:id/closeout-checklist/:itemId/document/view", handlers.GetDocumentViewLink)
	w.Post("/:id/closeout-checklist/:itemId/verify", handlers.VerifyItem)
	w.Post("/:id/certificate", handlers.IssueCertificate)
	w.Get("/:id/certificate/view", handlers.GetCertificateViewLink)
	w.Post("/:id/retention/release", handlers.ReleaseRetention)
	w.Post("/:id/close", handlers.CloseWorkflow)

	// Signed view links resolve here.
	v1.Get("/documents/view", handlers.ViewDocument)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}

// signedURLTTL parses the configured link lifetime, falling back to 15
// minutes.
func signedURLTTL(value string) time.Duration {
	ttl, err := time.ParseDuration(value)
	if err != nil || ttl <= 0 {
		return 15 * time.Minute
	}

	return ttl
}
