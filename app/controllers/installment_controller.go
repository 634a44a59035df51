package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/aggpay/aggpay/internal/pkg/payment"
)

// CreateInstallmentPlanRequest is the inbound payload for plan creation.
type CreateInstallmentPlanRequest struct {
	OrderID              uint `json:"orderId" validate:"required"`
	NumberOfInstallments int  `json:"numberOfInstallments" validate:"required,min=2,max=12"`
	IntervalDays         int  `json:"intervalDays" validate:"omitempty,gt=0"`
}

// InstallmentController serves the installment plan API surface.
type InstallmentController struct {
	service *payment.InstallmentService
}

// NewInstallmentController creates the installment controller.
func NewInstallmentController(service *payment.InstallmentService) *InstallmentController {
	return &InstallmentController{service: service}
}

// HandleCreatePlan splits an order total into a scheduled plan.
func (ic *InstallmentController) HandleCreatePlan(c *fiber.Ctx) error {
	var req CreateInstallmentPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationError(err))
	}

	plan, err := ic.service.CreatePlan(c.UserContext(), payment.CreatePlanInput{
		OrderID:              req.OrderID,
		NumberOfInstallments: req.NumberOfInstallments,
		IntervalDays:         req.IntervalDays,
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Order not found"})
		case errors.Is(err, payment.ErrInvalidInstallmentCount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_installments", "message": "Number of installments out of range"})
		}
		log.Errorf("create installment plan failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create installment plan"})
	}

	return c.Status(fiber.StatusCreated).JSON(plan)
}
