package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/aggpay/aggpay/app/controllers"
	"github.com/aggpay/aggpay/app/repository"
	"github.com/aggpay/aggpay/internal/pkg/database"
	"github.com/aggpay/aggpay/internal/pkg/env"
	"github.com/aggpay/aggpay/internal/pkg/middleware"
	"github.com/aggpay/aggpay/internal/pkg/payment"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	db := database.GetDB()
	repo := payment.NewRepository(db)
	registry := payment.NewRegistry()
	resolver := payment.NewResolver(
		repository.GetGlobalFactory().GetProviderRepository(),
		env.GetBool("ROUTE_CACHE_ENABLED", true),
	)

	paymentController := controllers.NewPaymentController(payment.NewService(repo, resolver, registry))
	installmentController := controllers.NewInstallmentController(payment.NewInstallmentService(repo))

	api := app.Group("/api", limiter.New())

	// API v1 routes, all behind client key auth
	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware())
	v1.Post("/payments", paymentController.HandleInitializePayment)
	v1.Get("/payments/:id", paymentController.HandleGetPayment)
	v1.Post("/payments/:id/refund", paymentController.HandleRefund)
	v1.Post("/installments", installmentController.HandleCreatePlan)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
