package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aggpay/aggpay/app/controllers"
	"github.com/aggpay/aggpay/internal/pkg/cache"
	"github.com/aggpay/aggpay/internal/pkg/database"
	"github.com/aggpay/aggpay/internal/pkg/payment"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	db := database.GetDB()
	reconciler := payment.NewReconciler(payment.NewRepository(db), payment.NewRegistry())
	webhookController := controllers.NewWebhookController(reconciler)

	app.Get("/health", handleHealth)

	// Provider callbacks authenticate via signature, not API key.
	hooks := app.Group("/webhooks")
	hooks.Post("/:provider", webhookController.HandleProviderWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func handleHealth(c *fiber.Ctx) error {
	dbOK := false
	if sqlDB, err := database.GetDB().DB(); err == nil {
		dbOK = sqlDB.Ping() == nil
	}

	status := fiber.StatusOK
	if !dbOK {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"database": dbOK,
		"cache":    cache.IsAvailable(),
	})
}
